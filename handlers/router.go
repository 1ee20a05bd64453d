package handlers

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires every API route.
func NewRouter(h *APIHandler, hub *Hub) *gin.Engine {
	router := gin.New()
	// Student keys are names and may contain an escaped '/'.
	router.UseRawPath = true
	router.UnescapePathValues = true
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api")
	{
		// Ledger routes
		api.POST("/ledger", h.LoadLedger)
		api.DELETE("/ledger", h.ClearLedger)

		// Student routes
		api.GET("/students", h.GetStudents)
		api.GET("/totals", h.GetTotals)
		api.POST("/students/:key/toggle", h.TogglePaid)

		// Receipt routes
		api.GET("/students/:key/receipt.png", h.ReceiptPNG)
		api.GET("/students/:key/receipt.pdf", h.ReceiptPDF)
		api.GET("/students/:key/receipt.html", h.ReceiptHTML)
		api.POST("/students/:key/copy", h.CopyReceipt)
		api.GET("/students/:key/preview", h.Preview)
		api.POST("/students/:key/preview/copy", h.PreviewCopy)
		api.GET("/students/:key/preview/download", h.PreviewDownload)

		// Export routes
		api.POST("/exports", h.StartExport)
		api.GET("/exports/:id", h.GetExport)
		api.GET("/exports/:id/archive", h.GetExportArchive)

		api.GET("/clipboard", h.GetClipboard)
		api.GET("/report.xlsx", h.GetReport)
		if hub != nil {
			api.GET("/events", hub.Serve)
		}
		api.GET("/ping", PingHandler)
	}
	return router
}
