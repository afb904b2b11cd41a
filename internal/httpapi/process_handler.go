package httpapi

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProcessDocumentRequest names a stored document. An empty id is read from
// the page.
type ProcessDocumentRequest struct {
	DocumentID string `json:"document_id"`
}

// OpenDocumentRequest names the file input a stored document is selected in.
type OpenDocumentRequest struct {
	Input string `json:"input"`
}

// SetEndpointRequest carries the processing endpoint to save.
type SetEndpointRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// bindOptionalJSON binds a JSON body that may be absent.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !stderrors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// LocatePDF handles GET /api/v1/pdf
func (h *Handler) LocatePDF(c *gin.Context) {
	src, err := h.session.LocatePDF(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, src)
}

// Detect handles POST /api/v1/pdf/detect
func (h *Handler) Detect(c *gin.Context) {
	d, err := h.session.Detect(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"detected": d != nil, "detection": d})
}

// Process handles POST /api/v1/process
func (h *Handler) Process(c *gin.Context) {
	report, err := h.session.FillFromDocument(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}

// ProcessDocument handles POST /api/v1/process/document
func (h *Handler) ProcessDocument(c *gin.Context) {
	var req ProcessDocumentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	report, err := h.session.ProcessByDocumentID(c.Request.Context(), req.DocumentID)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}

// Summarize handles POST /api/v1/summarize
func (h *Handler) Summarize(c *gin.Context) {
	report, err := h.session.Summarize(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}

// Upload handles POST /api/v1/upload
func (h *Handler) Upload(c *gin.Context) {
	id, err := h.session.UploadPDF(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, gin.H{"document_id": id})
}

// SearchDocuments handles GET /api/v1/documents/search
func (h *Handler) SearchDocuments(c *gin.Context) {
	results, err := h.session.SearchDocuments(c.Request.Context(), c.Query("query"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, results)
}

// OpenDocument handles POST /api/v1/documents/:id/open
func (h *Handler) OpenDocument(c *gin.Context) {
	var req OpenDocumentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	insp, err := h.session.OpenDocument(c.Request.Context(), c.Param("id"), req.Input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, insp)
}

// SetEndpoint handles PUT /api/v1/endpoint
func (h *Handler) SetEndpoint(c *gin.Context) {
	var req SetEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := h.session.SetEndpoint(req.Endpoint); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"endpoint": h.session.Endpoint()})
}
