package handlers

import (
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/logger"
)

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidInput, apperror.KindInvalidRequest:
		return nethttp.StatusBadRequest
	case apperror.KindNotFound:
		return nethttp.StatusNotFound
	case apperror.KindForbidden:
		return nethttp.StatusForbidden
	case apperror.KindDuplicateRequest, apperror.KindInvalidState, apperror.KindConflict:
		return nethttp.StatusConflict
	case apperror.KindUnauthorized:
		return nethttp.StatusUnauthorized
	case apperror.KindStorageUnavailable:
		return nethttp.StatusServiceUnavailable
	default:
		return nethttp.StatusInternalServerError
	}
}

// respondError writes {"error", "code"} for err. Storage and unknown errors
// are logged and their details withheld from the client.
func respondError(c *gin.Context, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		logger.Get().Error("unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
		return
	}

	if appErr.Kind == apperror.KindStorageUnavailable {
		logger.Get().Error("storage unavailable", zap.String("path", c.Request.URL.Path), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(statusFor(appErr.Kind), gin.H{"error": appErr.Message, "code": appErr.Code()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(nethttp.StatusBadRequest, gin.H{"error": message, "code": apperror.KindInvalidInput})
}
