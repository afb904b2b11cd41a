package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-form-filler/internal/errors"
)

// APIResponse is the envelope of every API response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapError translates a cycle failure to an HTTP status and error code. The
// message is the failure itself, operators need it to fix the setup.
func MapError(err error) (status int, code, msg string) {
	t := errors.TypeOf(err)
	switch t {
	case errors.ErrorTypeConfig:
		status = http.StatusPreconditionFailed
	case errors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case errors.ErrorTypeValidation:
		status = http.StatusUnprocessableEntity
	case errors.ErrorTypeHTTP, errors.ErrorTypeFormat, errors.ErrorTypeBackend:
		status = http.StatusBadGateway
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
	return status, t.String(), err.Error()
}

// HandleError maps err and sends the matching error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapError(err)
	if status >= 500 {
		requestID, _ := c.Get(requestIDKey)
		log.Printf("[%s] request failed: %v", requestID, err)
	}
	RespondError(c, status, code, msg)
}
