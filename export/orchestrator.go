package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"tuition-receipts-go/models"
	"tuition-receipts-go/render"
)

var (
	ErrQueueClosed = errors.New("export queue closed")
	ErrQueueFull   = errors.New("export queue full")
	ErrJobNotFound = errors.New("export job not found")
)

// Messages shown to the user.
const (
	msgRowCopyFailed     = "⚠️ Không thể copy. Thử mở phiếu và copy từ modal."
	msgRowRenderFailed   = "⚠️ Không tạo được phiếu. Thử lại."
	msgPreviewCopyFailed = "⚠️ Browser không hỗ trợ copy ảnh. Thử Download."
	msgPreviewCopied     = "✅ Đã copy ảnh phiếu về clipboard!"
)

// Format is the file type of exported receipts.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ReceiptRenderer produces a receipt bitmap. render.Pipeline is the real one.
type ReceiptRenderer interface {
	Render(ctx context.Context, s models.StudentRecord) (*render.Bitmap, error)
}

// Options tune copy and batch timing.
type Options struct {
	Pacing       time.Duration // Pause after each delivered receipt
	ToastWindow  time.Duration // How long the done status stays up
	CopiedWindow time.Duration // How long a row shows Copied
	Format       Format
	QueueSize    int
	JobRetention time.Duration // How long a finished job and its archive are kept
}

func DefaultOptions() Options {
	return Options{
		Pacing:       200 * time.Millisecond,
		ToastWindow:  2 * time.Second,
		CopiedWindow: 2 * time.Second,
		Format:       FormatPNG,
		QueueSize:    16,
		JobRetention: 10 * time.Minute,
	}
}

// JobStatus is a snapshot of a batch export.
type JobStatus struct {
	ID         string                `json:"id"`
	Progress   models.ExportProgress `json:"progress"`
	Failed     []string              `json:"failed"`
	Delivered  int                   `json:"delivered"`
	CreatedAt  time.Time             `json:"createdAt"`
	FinishedAt *time.Time            `json:"finishedAt,omitempty"`
}

type job struct {
	status  JobStatus
	records []models.StudentRecord
	sink    Sink
}

// Orchestrator runs single-row copies and batch exports. Batches go through
// one queue drained by one worker, so the off-screen surface is never
// entered by two exports at once.
type Orchestrator struct {
	receipts  ReceiptRenderer
	pdf       *PDFRenderer
	clipboard Clipboard
	notify    Notifier
	copies    *CopyTracker
	opts      Options

	queue chan *job

	mu     sync.Mutex
	jobs   map[string]*job
	closed bool
}

func NewOrchestrator(receipts ReceiptRenderer, pdf *PDFRenderer, clipboard Clipboard, notify Notifier, opts Options) *Orchestrator {
	if notify == nil {
		notify = nopNotifier{}
	}
	if clipboard == nil {
		clipboard = NoClipboard{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Format == "" {
		opts.Format = FormatPNG
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = DefaultOptions().JobRetention
	}
	return &Orchestrator{
		receipts:  receipts,
		pdf:       pdf,
		clipboard: clipboard,
		notify:    notify,
		copies:    NewCopyTracker(opts.CopiedWindow, notify),
		opts:      opts,
		queue:     make(chan *job, opts.QueueSize),
		jobs:      make(map[string]*job),
	}
}

// Copies exposes the per-student copy states.
func (o *Orchestrator) Copies() *CopyTracker {
	return o.copies
}

// CopyOne renders one receipt and puts it on the clipboard. It returns false
// without doing anything when a copy for the same student is loading or was
// just copied. Failures return the row to Idle and are reported as warnings,
// never to the caller.
func (o *Orchestrator) CopyOne(ctx context.Context, s models.StudentRecord) bool {
	key := s.Key()
	if !o.copies.Begin(key) {
		return false
	}

	if err := o.copyReceipt(ctx, s); err != nil {
		log.Warn("Copy failed", "student", s.Name, "err", err)
		if err := o.copies.Fail(key); err != nil {
			log.Debug("Copy state not reverted", "student", s.Name, "err", err)
		}
		var cerr *ClipboardError
		if errors.As(err, &cerr) {
			o.notify.Notify(warning(msgRowCopyFailed))
		} else {
			o.notify.Notify(warning(msgRowRenderFailed))
		}
		return true
	}
	if err := o.copies.Succeed(key); err != nil {
		log.Debug("Copy state not marked copied", "student", s.Name, "err", err)
	}
	return true
}

func (o *Orchestrator) copyReceipt(ctx context.Context, s models.StudentRecord) error {
	bmp, err := o.receipts.Render(ctx, s)
	if err != nil {
		return err
	}
	data, err := bmp.PNG()
	if err != nil {
		return err
	}
	return o.clipboard.WritePNG(ctx, data)
}

// SubmitBatch queues an export of records into sink and returns the job ID.
// An empty list queues nothing and returns an empty ID.
func (o *Orchestrator) SubmitBatch(records []models.StudentRecord, sink Sink) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	j := &job{
		status: JobStatus{
			ID:        uuid.NewString(),
			CreatedAt: time.Now(),
			Failed:    []string{},
		},
		records: append([]models.StudentRecord(nil), records...),
		sink:    sink,
	}
	j.status.Progress = models.ExportProgress{JobID: j.status.ID, Total: len(records)}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrQueueClosed
	}
	select {
	case o.queue <- j:
	default:
		return "", ErrQueueFull
	}
	o.jobs[j.status.ID] = j
	log.Info("Export queued", "job", j.status.ID, "receipts", len(records))
	return j.status.ID, nil
}

// Start drains the queue until ctx is done. Only one worker may run.
func (o *Orchestrator) Start(ctx context.Context) error {
	defer func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-o.queue:
			o.run(ctx, j)
		}
	}
}

// RunBatch exports records into sink on the calling goroutine.
func (o *Orchestrator) RunBatch(ctx context.Context, jobID string, records []models.StudentRecord, sink Sink) JobStatus {
	if len(records) == 0 {
		return JobStatus{ID: jobID, Failed: []string{}}
	}
	j := &job{
		status: JobStatus{
			ID:        jobID,
			CreatedAt: time.Now(),
			Failed:    []string{},
			Progress:  models.ExportProgress{JobID: jobID, Total: len(records)},
		},
		records: records,
		sink:    sink,
	}
	o.mu.Lock()
	o.jobs[jobID] = j
	o.mu.Unlock()
	o.run(ctx, j)

	o.mu.Lock()
	defer o.mu.Unlock()
	return j.snapshot()
}

func (o *Orchestrator) run(ctx context.Context, j *job) {
	defer o.expire(j.status.ID, o.opts.JobRetention)
	total := len(j.records)
	start := time.Now()
	o.progress(j, 0, fmt.Sprintf("Đang tạo 0 / %d phiếu...", total), false)

	for i, s := range j.records {
		if ctx.Err() != nil {
			log.Warn("Export stopped", "job", j.status.ID, "done", i, "total", total)
			return
		}
		if err := o.deliver(ctx, s, j.sink); err != nil {
			log.Warn("Receipt skipped", "job", j.status.ID, "student", s.Name, "err", err)
			o.mu.Lock()
			j.status.Failed = append(j.status.Failed, s.Name)
			o.mu.Unlock()
		} else {
			o.mu.Lock()
			j.status.Delivered++
			o.mu.Unlock()
			o.pace(ctx)
		}
		o.progress(j, i+1, fmt.Sprintf("Đang tạo phiếu %d / %d...", i+1, total), false)
	}

	o.progress(j, total, fmt.Sprintf("✅ Đã download %d phiếu!", total), true)
	log.Info("Export finished", "job", j.status.ID, "receipts", total, "failed", len(j.status.Failed),
		"took", time.Since(start).Round(time.Millisecond))

	jobID := j.status.ID
	time.AfterFunc(o.opts.ToastWindow, func() {
		o.notify.Notify(models.Event{Type: models.EventProgressCleared, Progress: &models.ExportProgress{JobID: jobID}})
	})
}

func (o *Orchestrator) deliver(ctx context.Context, s models.StudentRecord, sink Sink) error {
	name := ReceiptFileName(s)
	var data []byte
	switch o.opts.Format {
	case FormatPDF:
		if o.pdf == nil {
			return fmt.Errorf("PDF export not configured")
		}
		b, err := o.pdf.Render(s)
		if err != nil {
			return err
		}
		data, name = b, withExt(name, ".pdf")
	default:
		bmp, err := o.receipts.Render(ctx, s)
		if err != nil {
			return err
		}
		if data, err = bmp.PNG(); err != nil {
			return err
		}
	}
	if err := sink.Deliver(name, data); err != nil {
		return err
	}
	log.Debug("Receipt delivered", "file", name, "size", humanize.Bytes(uint64(len(data))))
	return nil
}

func (o *Orchestrator) pace(ctx context.Context) {
	if o.opts.Pacing <= 0 {
		return
	}
	t := time.NewTimer(o.opts.Pacing)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) progress(j *job, completed int, text string, done bool) {
	o.mu.Lock()
	total := j.status.Progress.Total
	p := models.ExportProgress{
		JobID:      j.status.ID,
		Completed:  completed,
		Total:      total,
		StatusText: text,
		Percent:    float64(completed) / float64(total) * 100,
		Done:       done,
	}
	j.status.Progress = p
	if done {
		now := time.Now()
		j.status.FinishedAt = &now
	}
	o.mu.Unlock()

	o.notify.Notify(models.Event{Type: models.EventProgress, Progress: &p})
}

// Job returns a snapshot of a batch export.
func (o *Orchestrator) Job(id string) (JobStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.snapshot(), nil
}

// snapshot copies the job status. The caller holds o.mu.
func (j *job) snapshot() JobStatus {
	status := j.status
	status.Failed = append([]string{}, j.status.Failed...)
	return status
}

// expire forgets a job, and the archive its sink holds, after d.
func (o *Orchestrator) expire(id string, d time.Duration) {
	time.AfterFunc(d, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.jobs[id]; ok {
			delete(o.jobs, id)
			log.Debug("Export expired", "job", id)
		}
	})
}

// DropFinished forgets every finished job at once and returns how many were
// dropped. Jobs still running are kept.
func (o *Orchestrator) DropFinished() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, j := range o.jobs {
		if j.status.FinishedAt != nil {
			delete(o.jobs, id)
			n++
		}
	}
	return n
}

// JobSink returns the sink a job delivers into.
func (o *Orchestrator) JobSink(id string) (Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.sink, nil
}

// PreviewCopy captures the on-screen receipt at full resolution and puts it
// on the clipboard. The user is told to download instead if that fails.
func (o *Orchestrator) PreviewCopy(ctx context.Context, pv *render.Preview) error {
	bmp, err := pv.Capture()
	if err != nil {
		return err
	}
	data, err := bmp.PNG()
	if err != nil {
		return err
	}
	if err := o.clipboard.WritePNG(ctx, data); err != nil {
		log.Warn("Preview copy failed", "student", pv.Student.Name, "err", err)
		o.notify.Notify(warning(msgPreviewCopyFailed))
		return err
	}
	o.notify.Notify(models.Event{Type: models.EventNotice, Key: pv.Student.Key(), Message: msgPreviewCopied})
	return nil
}

// PreviewDownload captures the on-screen receipt and returns it with its file
// name.
func (o *Orchestrator) PreviewDownload(pv *render.Preview) (string, []byte, error) {
	bmp, err := pv.Capture()
	if err != nil {
		return "", nil, err
	}
	data, err := bmp.PNG()
	if err != nil {
		return "", nil, err
	}
	return PreviewFileName(pv.Student), data, nil
}
