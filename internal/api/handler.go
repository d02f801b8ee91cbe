package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"alarm-tracker-backend/internal/events"
	"alarm-tracker-backend/internal/simulation"
	"alarm-tracker-backend/internal/store"
	"alarm-tracker-backend/internal/tracker"
)

// Deps are the collaborators the handlers need. Store, Simulator and
// WebPush may be nil; the routes that need them answer 503 or 409.
type Deps struct {
	Service       *tracker.Service
	Store         store.Store
	Hub           *events.Hub
	Simulator     *simulation.Simulator
	WebPush       *webpush.Options
	WebhookSecret string
	Location      *time.Location
	Logger        *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc           *tracker.Service
	store         store.Store
	hub           *events.Hub
	sim           *simulation.Simulator
	webpush       *webpush.Options
	webhookSecret string
	loc           *time.Location
	logger        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:           d.Service,
		store:         d.Store,
		hub:           d.Hub,
		sim:           d.Simulator,
		webpush:       d.WebPush,
		webhookSecret: d.WebhookSecret,
		loc:           loc,
		logger:        logger,
	}
}
