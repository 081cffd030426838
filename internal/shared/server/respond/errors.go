package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/apperr"
	"docvault-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// AppError maps an application error to the matching HTTP response.
// Unclassified errors surface as 500 internal errors.
func AppError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindNotFound:
			Error(c, http.StatusNotFound, "not_found", appErr.Message, nil)
		case apperr.KindForbidden:
			Error(c, http.StatusForbidden, "forbidden", appErr.Message, nil)
		case apperr.KindBadRequest:
			Error(c, http.StatusBadRequest, "bad_request", appErr.Message, nil)
		default:
			Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}
		return
	}
	Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
}
