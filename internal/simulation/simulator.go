// Package simulation randomly toggles alarms at a fixed interval so the
// dashboard has live data without real sensors.
package simulation

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/events"
	"alarm-tracker-backend/internal/metrics"
)

// singleToggleProbability is the chance that a tick toggles one alarm
// rather than two.
const singleToggleProbability = 0.6

// Service is the part of the tracker the simulator drives.
type Service interface {
	Alarms(ctx context.Context) ([]alarm.Alarm, error)
	Toggle(ctx context.Context, id string) (alarm.Alarm, error)
	Publish(ctx context.Context, ev events.Event)
	Now() time.Time
}

// FlagStore persists the enabled flag.
type FlagStore interface {
	LoadSimulation(ctx context.Context) bool
	SaveSimulation(ctx context.Context, enabled bool) error
}

// Rand is the subset of *rand.Rand the simulator uses.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Simulator toggles random alarms while enabled.
type Simulator struct {
	svc      Service
	flags    FlagStore
	interval time.Duration
	logger   *zap.Logger
	enabled  atomic.Bool

	randMu sync.Mutex
	rnd    Rand
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand replaces the random source.
func WithRand(r Rand) Option {
	return func(s *Simulator) { s.rnd = r }
}

// New creates a simulator and restores the persisted flag.
func New(ctx context.Context, svc Service, flags FlagStore, interval time.Duration, logger *zap.Logger, opts ...Option) *Simulator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Simulator{
		svc:      svc,
		flags:    flags,
		interval: interval,
		logger:   logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.enabled.Store(flags.LoadSimulation(ctx))
	return s
}

// Enabled reports whether ticks toggle alarms.
func (s *Simulator) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled persists the flag, then applies it.
func (s *Simulator) SetEnabled(ctx context.Context, on bool) error {
	if err := s.flags.SaveSimulation(ctx, on); err != nil {
		return err
	}
	if s.enabled.Swap(on) != on {
		s.logger.Info("simulation switched", zap.Bool("enabled", on))
		status := "off"
		if on {
			status = "on"
		}
		s.svc.Publish(ctx, events.NewEvent(events.KindSimulation, "", status, s.svc.Now()))
	}
	return nil
}

// Run ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("starting simulation loop", zap.Duration("interval", s.interval), zap.Bool("enabled", s.Enabled()))

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation loop shutting down")
			return
		case <-timer.C:
			if s.Enabled() {
				if _, err := s.TickOnce(ctx); err != nil {
					s.logger.Warn("simulation tick failed", zap.Error(err))
				}
			}
			timer.Reset(s.interval)
		}
	}
}

// TickOnce toggles one alarm, or two with probability 0.4. Picks are made
// independently, so the same alarm may be toggled twice. It returns the ids
// toggled.
func (s *Simulator) TickOnce(ctx context.Context) ([]string, error) {
	alarms, err := s.svc.Alarms(ctx)
	if err != nil {
		return nil, err
	}
	if len(alarms) == 0 {
		return nil, nil
	}

	picks := s.pick(len(alarms))
	toggled := make([]string, 0, len(picks))
	for _, idx := range picks {
		id := alarms[idx].ID
		if _, err := s.svc.Toggle(ctx, id); err != nil {
			return toggled, err
		}
		toggled = append(toggled, id)
	}
	metrics.IncSimulationTick()
	return toggled, nil
}

func (s *Simulator) pick(n int) []int {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	count := 2
	if s.rnd.Float64() < singleToggleProbability {
		count = 1
	}
	picks := make([]int, count)
	for i := range picks {
		picks[i] = s.rnd.Intn(n)
	}
	return picks
}
