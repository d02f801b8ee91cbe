package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/export"
)

// parseRange reads either ?preset= or ?start=&end= (RFC 3339). With neither,
// the last 24 hours are used.
func (h *Handler) parseRange(c *gin.Context) (alarm.TimeRange, error) {
	now := h.svc.Now()
	start, end := c.Query("start"), c.Query("end")
	if start == "" && end == "" {
		return aggregate.Preset(c.Query("preset"), now, h.loc)
	}
	if c.Query("preset") != "" {
		return alarm.TimeRange{}, fmt.Errorf("use either preset or start/end")
	}
	if start == "" || end == "" {
		return alarm.TimeRange{}, fmt.Errorf("start and end must be given together")
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return alarm.TimeRange{}, fmt.Errorf("invalid start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return alarm.TimeRange{}, fmt.Errorf("invalid end: %w", err)
	}
	if e.Before(s) {
		return alarm.TimeRange{}, fmt.Errorf("end is before start")
	}
	return alarm.TimeRange{Start: s.UTC(), End: e.UTC()}, nil
}

// GetAnalytics handles GET /api/analytics.
func (h *Handler) GetAnalytics(c *gin.Context) {
	r, err := h.parseRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rep, err := h.svc.Analytics(c.Request.Context(), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ExportAnalytics handles GET /api/analytics/export?format=csv|xlsx|pdf.
func (h *Handler) ExportAnalytics(c *gin.Context) {
	r, err := h.parseRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	format := c.DefaultQuery("format", export.FormatCSV)

	rep, err := h.svc.Analytics(c.Request.Context(), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, contentType, filename, err := export.Render(format, rep)
	if errors.Is(err, export.ErrUnsupportedFormat) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
