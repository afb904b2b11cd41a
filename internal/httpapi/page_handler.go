package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-form-filler/internal/page"
	"github.com/a3tai/mcp-form-filler/internal/workflow"
)

// Handler serves the tab's page, form and processing endpoints.
type Handler struct {
	session *workflow.Session
}

// NewHandler creates a new Handler.
func NewHandler(session *workflow.Session) *Handler {
	return &Handler{session: session}
}

// LoadPageRequest carries the markup of the page to load.
type LoadPageRequest struct {
	HTML string `json:"html" binding:"required"`
	URL  string `json:"url"`
}

// SetViewerRequest carries the new viewer iframe source.
type SetViewerRequest struct {
	Src string `json:"src" binding:"required"`
}

// Health handles GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LoadPage handles POST /api/v1/page
func (h *Handler) LoadPage(c *gin.Context) {
	var req LoadPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	info, err := h.session.LoadPage(req.HTML, req.URL)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, info)
}

// AttachFile handles POST /api/v1/page/files
func (h *Handler) AttachFile(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
		return
	}

	insp, err := h.session.AttachPDF(c.PostForm("input"), page.File{
		Name: header.Filename,
		Data: data,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, insp)
}

// HTML handles GET /api/v1/page/html
func (h *Handler) HTML(c *gin.Context) {
	markup, err := h.session.HTML()
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

// SetViewer handles PUT /api/v1/page/viewer
func (h *Handler) SetViewer(c *gin.Context) {
	var req SetViewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := h.session.SetViewer(req.Src); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"src": req.Src})
}

// Status handles GET /api/v1/status
func (h *Handler) Status(c *gin.Context) {
	RespondOK(c, h.session.Status())
}
