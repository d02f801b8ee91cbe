package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAliveInterval keeps idle proxies from closing the stream.
const keepAliveInterval = 25 * time.Second

// StreamEvents handles GET /api/events as a server-sent event stream. Each
// change is sent as an "alarm" event; clients re-fetch on receipt.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "stream not ready"})
		return
	}

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"mode": h.svc.Mode()})
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("alarm", ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": h.svc.Now()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
