package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/tracker"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, alarm.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, alarm.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, alarm.ErrAlreadyExists),
		errors.Is(err, alarm.ErrConflict),
		errors.Is(err, alarm.ErrInvariantViolation):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrNotificationsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
