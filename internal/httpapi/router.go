package httpapi

import (
	"github.com/gin-gonic/gin"
)

// multipartOverhead is the slack allowed above the PDF size limit for the
// multipart framing of uploads.
const multipartOverhead = 1 << 20

// Setup configures the gin engine with all routes and middleware.
func Setup(h *Handler, maxFileSize int64) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(Recovery())
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(BodyLimit(maxFileSize + multipartOverhead))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")

	v1.POST("/page", h.LoadPage)
	v1.POST("/page/files", h.AttachFile)
	v1.GET("/page/html", h.HTML)
	v1.PUT("/page/viewer", h.SetViewer)
	v1.GET("/status", h.Status)

	v1.GET("/schema", h.Schema)
	v1.POST("/fill", h.Fill)
	v1.POST("/reset", h.Reset)

	v1.GET("/pdf", h.LocatePDF)
	v1.POST("/pdf/detect", h.Detect)
	v1.POST("/process", h.Process)
	v1.POST("/process/document", h.ProcessDocument)
	v1.POST("/summarize", h.Summarize)
	v1.POST("/upload", h.Upload)

	documents := v1.Group("/documents")
	documents.GET("/search", h.SearchDocuments)
	documents.POST("/:id/open", h.OpenDocument)

	v1.PUT("/endpoint", h.SetEndpoint)

	return r
}
