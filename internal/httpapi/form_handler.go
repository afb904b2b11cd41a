package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FillRequest maps field keys to the values to write.
type FillRequest struct {
	Values map[string]any `json:"values" binding:"required"`
}

// Schema handles GET /api/v1/schema
func (h *Handler) Schema(c *gin.Context) {
	schema, err := h.session.Schema()
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, schema)
}

// Fill handles POST /api/v1/fill
func (h *Handler) Fill(c *gin.Context) {
	var req FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	outcome, err := h.session.Fill(req.Values)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"outcome":  outcome,
		"message":  outcome.Message(),
		"severity": outcome.Severity(),
	})
}

// Reset handles POST /api/v1/reset
func (h *Handler) Reset(c *gin.Context) {
	n, err := h.session.Reset()
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"reset": n})
}
