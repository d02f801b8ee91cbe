package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"alarm-tracker-backend/config"
	"alarm-tracker-backend/internal/logging"
	"alarm-tracker-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(h.logger))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": h.svc.Mode()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/alarms", h.ListAlarms)
		api.POST("/alarms", h.CreateAlarm)
		api.PATCH("/alarms/:id", h.UpdateAlarm)
		api.POST("/alarms/:id/toggle", h.ToggleAlarm)
		api.POST("/alarms/:id/notify", h.NotifyAlarm)

		api.GET("/analytics", h.GetAnalytics)
		api.GET("/analytics/export", h.ExportAnalytics)

		api.GET("/events", h.StreamEvents)

		api.GET("/simulation", h.GetSimulation)
		api.PUT("/simulation", h.PutSimulation)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		api.POST("/webhooks/alarm", h.AlarmWebhook)
	}

	return r
}
