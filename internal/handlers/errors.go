package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// statusFor maps an error category to its HTTP status.
func statusFor(err error) int {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Status
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrStateConflict), errors.Is(err, apperrors.ErrReferential), errors.Is(err, apperrors.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrBusinessRule):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes {"error", "code"}. Unexpected failures are logged and
// replaced by fallback so internals never reach the client.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(fallback, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	body := gin.H{"error": err.Error()}
	if code := apperrors.Code(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{"error": msg + ": " + err.Error()})
}
