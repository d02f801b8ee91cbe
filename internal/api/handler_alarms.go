package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alarm-tracker-backend/internal/alarm"
)

type listAlarmsResponse struct {
	Alarms []alarm.Alarm `json:"alarms"`
	Active int           `json:"active"`
	Total  int           `json:"total"`
	Mode   string        `json:"mode"`
}

// ListAlarms handles GET /api/alarms.
func (h *Handler) ListAlarms(c *gin.Context) {
	alarms, err := h.svc.Alarms(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listAlarmsResponse{
		Alarms: alarms,
		Active: alarm.CountActive(alarms),
		Total:  len(alarms),
		Mode:   h.svc.Mode(),
	})
}

type createAlarmRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// CreateAlarm handles POST /api/alarms.
func (h *Handler) CreateAlarm(c *gin.Context) {
	var req createAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	a, err := h.svc.Create(c.Request.Context(), req.ID, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

type updateAlarmRequest struct {
	Description *string `json:"description" binding:"required"`
}

// UpdateAlarm handles PATCH /api/alarms/:id.
func (h *Handler) UpdateAlarm(c *gin.Context) {
	var req updateAlarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	a, err := h.svc.Describe(c.Request.Context(), c.Param("id"), *req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// ToggleAlarm handles POST /api/alarms/:id/toggle.
func (h *Handler) ToggleAlarm(c *gin.Context) {
	a, err := h.svc.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type notifyRequest struct {
	To []string `json:"to"`
}

// NotifyAlarm handles POST /api/alarms/:id/notify. The body is optional.
func (h *Handler) NotifyAlarm(c *gin.Context) {
	var req notifyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	recipients := make([]string, 0, len(req.To))
	for _, to := range req.To {
		if to != "" {
			recipients = append(recipients, to)
		}
	}

	err := h.svc.Notify(c.Request.Context(), c.Param("id"), recipients)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			// delivery failed upstream
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
