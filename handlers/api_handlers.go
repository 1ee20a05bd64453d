package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"tuition-receipts-go/export"
	"tuition-receipts-go/ledger"
	"tuition-receipts-go/models"
	"tuition-receipts-go/payments"
	"tuition-receipts-go/render"
)

const (
	defaultViewportW = 1280
	defaultViewportH = 800
)

// APIHandler holds the dependencies of the API handlers.
type APIHandler struct {
	Book      *ledger.Book
	Store     payments.Store
	Pipeline  *render.Pipeline
	PDF       *export.PDFRenderer
	Exports   *export.Orchestrator
	Clipboard export.Clipboard
	Notifier  export.Notifier
	MaxUpload int64 // Bytes
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(book *ledger.Book, store payments.Store, pipeline *render.Pipeline, pdf *export.PDFRenderer,
	exports *export.Orchestrator, clipboard export.Clipboard, notifier export.Notifier) *APIHandler {
	return &APIHandler{
		Book:      book,
		Store:     store,
		Pipeline:  pipeline,
		PDF:       pdf,
		Exports:   exports,
		Clipboard: clipboard,
		Notifier:  notifier,
		MaxUpload: 10 << 20,
	}
}

// studentRow is one line of the student table.
type studentRow struct {
	models.StudentRecord
	Key       models.StudentKey `json:"key"`
	Paid      bool              `json:"paid"`
	CopyState models.CopyState  `json:"copyState"`
}

func (h *APIHandler) notify(e models.Event) {
	if h.Notifier != nil {
		h.Notifier.Notify(e)
	}
}

// --- Ledger Handlers ---

// LoadLedger handles POST /api/ledger
func (h *APIHandler) LoadLedger(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log.Printf("Received workbook upload: %s (%s)", header.Filename, humanize.Bytes(uint64(header.Size)))

	l, err := h.Book.Load(file, header.Filename)
	if err != nil {
		log.Printf("Error loading workbook %s: %v", header.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read workbook: " + err.Error()})
		return
	}
	h.Exports.Copies().Reset()
	if n := h.Exports.DropFinished(); n > 0 {
		log.Printf("Dropped %d finished exports of the previous ledger", n)
	}
	h.notify(models.Event{Type: models.EventLedgerLoaded, Message: l.Source})

	c.JSON(http.StatusOK, gin.H{
		"source":   l.Source,
		"sheet":    l.Sheet,
		"students": len(l.Records),
		"loadedAt": l.LoadedAt,
	})
}

// ClearLedger handles DELETE /api/ledger
func (h *APIHandler) ClearLedger(c *gin.Context) {
	if err := h.Book.Clear(); err != nil {
		log.Printf("Error clearing ledger: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear ledger"})
		return
	}
	h.Exports.Copies().Reset()
	h.Exports.DropFinished()
	h.notify(models.Event{Type: models.EventLedgerCleared})
	c.Status(http.StatusNoContent)
}

// --- Student Handlers ---

// GetStudents handles GET /api/students?tab=
func (h *APIHandler) GetStudents(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	copies := h.Exports.Copies().States()
	rows := make([]studentRow, 0, len(view.Students))
	for _, s := range view.Students {
		key := s.Key()
		rows = append(rows, studentRow{
			StudentRecord: s,
			Key:           key,
			Paid:          view.Paid[key],
			CopyState:     copies[key],
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"tab":      view.Tab,
		"students": rows,
		"totals":   view.Totals,
	})
}

// GetTotals handles GET /api/totals
func (h *APIHandler) GetTotals(c *gin.Context) {
	view, err := payments.BuildView(h.Store, h.Book.Records(), models.TabAll)
	if err != nil {
		log.Printf("Error in GetTotals handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute totals"})
		return
	}
	c.JSON(http.StatusOK, view.Totals)
}

// TogglePaid handles POST /api/students/:key/toggle
func (h *APIHandler) TogglePaid(c *gin.Context) {
	s, ok := h.student(c)
	if !ok {
		return
	}
	paid, err := h.Store.Toggle(s.Key())
	if err != nil {
		log.Printf("Error toggling payment for %s: %v", s.Key(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment state"})
		return
	}
	h.notify(models.Event{Type: models.EventPaymentToggled, Key: s.Key(), Paid: &paid})
	c.JSON(http.StatusOK, gin.H{"key": s.Key(), "paid": paid})
}

// --- Receipt Handlers ---

// ReceiptPNG handles GET /api/students/:key/receipt.png
func (h *APIHandler) ReceiptPNG(c *gin.Context) {
	s, ok := h.student(c)
	if !ok {
		return
	}
	bmp, err := h.Pipeline.Render(c.Request.Context(), s)
	if err != nil {
		h.renderFailed(c, s, err)
		return
	}
	h.sendPNG(c, bmp, export.ReceiptFileName(s))
}

// ReceiptPDF handles GET /api/students/:key/receipt.pdf
func (h *APIHandler) ReceiptPDF(c *gin.Context) {
	s, ok := h.student(c)
	if !ok {
		return
	}
	data, err := h.PDF.Render(s)
	if err != nil {
		log.Printf("Error rendering PDF receipt for %s: %v", s.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create PDF receipt"})
		return
	}
	attachment(c, strings.TrimSuffix(export.ReceiptFileName(s), ".png")+".pdf")
	c.Data(http.StatusOK, "application/pdf", data)
}

// ReceiptHTML handles GET /api/students/:key/receipt.html
func (h *APIHandler) ReceiptHTML(c *gin.Context) {
	s, ok := h.student(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := receiptPage(h.Pipeline.Markup(s)).Render(c.Request.Context(), c.Writer); err != nil {
		log.Printf("Error writing HTML receipt for %s: %v", s.Name, err)
	}
}

// CopyReceipt handles POST /api/students/:key/copy
func (h *APIHandler) CopyReceipt(c *gin.Context) {
	s, ok := h.student(c)
	if !ok {
		return
	}
	started := h.Exports.CopyOne(c.Request.Context(), s)
	c.JSON(http.StatusOK, gin.H{
		"key":     s.Key(),
		"started": started,
		"state":   h.Exports.Copies().State(s.Key()),
	})
}

// Preview handles GET /api/students/:key/preview?w=&h=
func (h *APIHandler) Preview(c *gin.Context) {
	pv, ok := h.preview(c)
	if !ok {
		return
	}
	bmp, err := pv.Display()
	if err != nil {
		h.renderFailed(c, pv.Student, err)
		return
	}
	c.Header("X-Display-Scale", strconv.FormatFloat(pv.Scale(), 'f', 4, 64))
	h.sendPNG(c, bmp, "")
}

// PreviewCopy handles POST /api/students/:key/preview/copy
func (h *APIHandler) PreviewCopy(c *gin.Context) {
	pv, ok := h.preview(c)
	if !ok {
		return
	}
	if err := h.Exports.PreviewCopy(c.Request.Context(), pv); err != nil {
		var cerr *export.ClipboardError
		if errors.As(err, &cerr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Clipboard unavailable, download the receipt instead"})
			return
		}
		h.renderFailed(c, pv.Student, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": pv.Student.Key(), "copied": true})
}

// PreviewDownload handles GET /api/students/:key/preview/download
func (h *APIHandler) PreviewDownload(c *gin.Context) {
	pv, ok := h.preview(c)
	if !ok {
		return
	}
	name, data, err := h.Exports.PreviewDownload(pv)
	if err != nil {
		h.renderFailed(c, pv.Student, err)
		return
	}
	attachment(c, name)
	c.Data(http.StatusOK, "image/png", data)
}

// --- Export Handlers ---

// StartExport handles POST /api/exports?tab=
func (h *APIHandler) StartExport(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}
	id, err := h.Exports.SubmitBatch(view.Students, export.NewZipSink())
	if err != nil {
		log.Printf("Error queueing export: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue export: " + err.Error()})
		return
	}
	if id == "" {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id, "total": len(view.Students)})
}

// GetExport handles GET /api/exports/:id
func (h *APIHandler) GetExport(c *gin.Context) {
	status, err := h.Exports.Job(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetExportArchive handles GET /api/exports/:id/archive
func (h *APIHandler) GetExportArchive(c *gin.Context) {
	id := c.Param("id")
	status, err := h.Exports.Job(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export not found"})
		return
	}
	if !status.Progress.Done {
		c.JSON(http.StatusConflict, gin.H{"error": "Export still running", "progress": status.Progress})
		return
	}
	sink, err := h.Exports.JobSink(id)
	zs, ok := sink.(*export.ZipSink)
	if err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export has no archive"})
		return
	}
	data, err := zs.Bytes()
	if err != nil {
		log.Printf("Error finishing archive for export %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build archive"})
		return
	}
	log.Printf("Serving export %s: %d receipts, %s", id, zs.Count(), humanize.Bytes(uint64(len(data))))
	attachment(c, "phieu-hoc-phi.zip")
	c.Data(http.StatusOK, "application/zip", data)
}

// --- Misc Handlers ---

// GetClipboard handles GET /api/clipboard
func (h *APIHandler) GetClipboard(c *gin.Context) {
	mc, ok := h.Clipboard.(*export.MemoryClipboard)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clipboard is not readable"})
		return
	}
	data, at, ok := mc.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Clipboard is empty"})
		return
	}
	c.Header("Last-Modified", at.UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, "image/png", data)
}

// GetReport handles GET /api/report.xlsx
func (h *APIHandler) GetReport(c *gin.Context) {
	records := h.Book.Records()
	view, err := payments.BuildView(h.Store, records, models.TabAll)
	if err != nil {
		log.Printf("Error in GetReport handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read payment state"})
		return
	}
	data, err := ledger.WriteStatusReport(records, view.Paid, view.Totals)
	if err != nil {
		log.Printf("Error writing status report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}
	attachment(c, "hoc-phi.xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

// --- helpers ---

func (h *APIHandler) view(c *gin.Context) (payments.View, bool) {
	tab, err := models.ParseTabFilter(c.Query("tab"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return payments.View{}, false
	}
	view, err := payments.BuildView(h.Store, h.Book.Records(), tab)
	if err != nil {
		log.Printf("Error building %s view: %v", tab, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read payment state"})
		return payments.View{}, false
	}
	return view, true
}

func (h *APIHandler) student(c *gin.Context) (models.StudentRecord, bool) {
	key := models.StudentKey(c.Param("key"))
	s, err := h.Book.Find(key)
	switch {
	case err == nil:
		return s, true
	case errors.Is(err, ledger.ErrNoLedger):
		c.JSON(http.StatusNotFound, gin.H{"error": "No ledger loaded"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
	}
	return models.StudentRecord{}, false
}

func (h *APIHandler) preview(c *gin.Context) (*render.Preview, bool) {
	s, ok := h.student(c)
	if !ok {
		return nil, false
	}
	vw := queryFloat(c, "w", defaultViewportW)
	vh := queryFloat(c, "h", defaultViewportH)
	pv, err := h.Pipeline.OpenPreview(c.Request.Context(), s, vw, vh)
	if err != nil {
		h.renderFailed(c, s, err)
		return nil, false
	}
	return pv, true
}

func (h *APIHandler) renderFailed(c *gin.Context, s models.StudentRecord, err error) {
	log.Printf("Error rendering receipt for %s: %v", s.Name, err)
	var rerr *render.RasterError
	switch {
	case errors.Is(err, render.ErrReceiptNotFound):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Receipt not found, try again"})
	case errors.As(err, &rerr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rasterize receipt"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render receipt"})
	}
}

func (h *APIHandler) sendPNG(c *gin.Context, bmp *render.Bitmap, filename string) {
	data, err := bmp.PNG()
	if err != nil {
		log.Printf("Error encoding receipt: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode receipt"})
		return
	}
	if filename != "" {
		attachment(c, filename)
	}
	c.Data(http.StatusOK, "image/png", data)
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
}

func queryFloat(c *gin.Context, name string, def float64) float64 {
	v, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
