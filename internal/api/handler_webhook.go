package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/events"
	"alarm-tracker-backend/internal/notification"
)

// WebhookSecretHeader carries the shared secret on webhook calls.
const WebhookSecretHeader = "X-Webhook-Secret"

// webhookRecord is one row image as sent by database change webhooks.
type webhookRecord struct {
	ID                   string     `json:"id"`
	Description          string     `json:"description"`
	Status               *int       `json:"status"`
	LastStatusChangeTime *time.Time `json:"last_status_change_time"`
}

// webhookEvent accepts both the record/old_record and new/old spellings.
type webhookEvent struct {
	Record    *webhookRecord `json:"record"`
	OldRecord *webhookRecord `json:"old_record"`
	New       *webhookRecord `json:"new"`
	Old       *webhookRecord `json:"old"`
}

// AlarmWebhook handles POST /api/webhooks/alarm. A change in status is
// announced to clients and queued for notification; anything else is
// acknowledged and ignored.
func (h *Handler) AlarmWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook secret is not configured"})
		return
	}
	given := c.GetHeader(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.webhookSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var evt webhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		badRequest(c, "invalid request")
		return
	}
	rec, old := evt.Record, evt.OldRecord
	if rec == nil {
		rec = evt.New
	}
	if old == nil {
		old = evt.Old
	}
	if rec == nil || old == nil || rec.Status == nil || old.Status == nil || *rec.Status == *old.Status {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	msg := notification.Message{
		AlarmID:     rec.ID,
		Description: rec.Description,
		Status:      alarm.StatusInactive,
	}
	if *rec.Status == int(alarm.StatusActive) {
		msg.Status = alarm.StatusActive
	}
	if rec.LastStatusChangeTime != nil {
		msg.LastStatusChangeTime = rec.LastStatusChangeTime.UTC()
	} else {
		msg.LastStatusChangeTime = h.svc.Now()
	}

	h.svc.Publish(c.Request.Context(), events.NewEvent(events.KindToggled, msg.AlarmID, msg.Status.String(), msg.LastStatusChangeTime))
	h.svc.DispatchChange(msg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
