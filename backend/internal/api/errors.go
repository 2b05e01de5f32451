package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lookbook/backend/internal/social"
	apperrors "lookbook/backend/pkg/errors"
)

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, social.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, social.ErrPrivateContent):
		return http.StatusForbidden
	case apperrors.IsErrorType(err, apperrors.ErrorTypePrecondition):
		return http.StatusConflict
	case apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) && !apperrors.IsErrorType(err, apperrors.ErrorTypeCascade):
		return http.StatusNotFound
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext) && !apperrors.IsErrorType(err, apperrors.ErrorTypeCascade):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes the user-facing message for err. Server-side failures
// are logged with the full error.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("viewer_id", viewerID(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{
		"error":     apperrors.UserMessage(err),
		"retryable": apperrors.IsRetryable(err),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
