package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/snapshot"
	"alarm-tracker-backend/internal/store"
)

// Backend owns the current alarm list.
type Backend interface {
	Mode() string
	Alarms(ctx context.Context) ([]alarm.Alarm, error)
	Toggle(ctx context.Context, id string, now time.Time) (alarm.Alarm, error)
	Create(ctx context.Context, a alarm.Alarm) error
	Describe(ctx context.Context, id, description string) (alarm.Alarm, error)
	Analytics(ctx context.Context, r alarm.TimeRange, now time.Time) (aggregate.Report, error)
}

// AlarmMirror holds database rows for locally kept alarms so that push
// subscriptions have something to reference. Satisfied by store.Store.
type AlarmMirror interface {
	MirrorAlarms(ctx context.Context, alarms []alarm.Alarm) (int64, error)
}

// LocalBackend keeps the list in memory and writes the whole list to the
// snapshot store on every change. A change is only committed in memory once
// it has been persisted.
type LocalBackend struct {
	mu     sync.RWMutex
	alarms []alarm.Alarm
	snap   *snapshot.Store
	mirror AlarmMirror
}

// NewLocalBackend loads the last snapshot, or a default set.
func NewLocalBackend(ctx context.Context, snap *snapshot.Store, now time.Time) *LocalBackend {
	return &LocalBackend{alarms: snap.Load(ctx, now), snap: snap}
}

func (b *LocalBackend) Mode() string { return "local" }

func (b *LocalBackend) Alarms(_ context.Context) ([]alarm.Alarm, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return alarm.CloneAll(b.alarms), nil
}

func (b *LocalBackend) Toggle(ctx context.Context, id string, now time.Time) (alarm.Alarm, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := alarm.Apply(b.alarms, id, now)
	if err != nil {
		return alarm.Alarm{}, err
	}
	if err := b.commit(ctx, next); err != nil {
		return alarm.Alarm{}, err
	}
	toggled, _ := alarm.Find(next, id)
	return toggled, nil
}

func (b *LocalBackend) Create(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if alarm.IndexOf(b.alarms, a.ID) >= 0 {
		return fmt.Errorf("%w: %s", alarm.ErrAlreadyExists, a.ID)
	}
	if b.mirror != nil {
		if _, err := b.mirror.MirrorAlarms(ctx, []alarm.Alarm{a}); err != nil {
			return err
		}
	}
	next := append(alarm.CloneAll(b.alarms), a.Clone())
	return b.commit(ctx, next)
}

func (b *LocalBackend) Describe(ctx context.Context, id, description string) (alarm.Alarm, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := alarm.IndexOf(b.alarms, id)
	if idx < 0 {
		return alarm.Alarm{}, fmt.Errorf("%w: %s", alarm.ErrNotFound, id)
	}
	next := alarm.CloneAll(b.alarms)
	next[idx].Description = description
	if err := b.commit(ctx, next); err != nil {
		return alarm.Alarm{}, err
	}
	return next[idx].Clone(), nil
}

func (b *LocalBackend) Analytics(_ context.Context, r alarm.TimeRange, now time.Time) (aggregate.Report, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return aggregate.Summarize(b.alarms, r, now), nil
}

// MirrorTo copies the current alarms to m and keeps it up to date as alarms
// are created.
func (b *LocalBackend) MirrorTo(ctx context.Context, m AlarmMirror) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := m.MirrorAlarms(ctx, b.alarms); err != nil {
		return err
	}
	b.mirror = m
	return nil
}

// Snapshot exposes the snapshot store for the simulation flag.
func (b *LocalBackend) Snapshot() *snapshot.Store {
	return b.snap
}

// commit must be called with mu held.
func (b *LocalBackend) commit(ctx context.Context, next []alarm.Alarm) error {
	if err := b.snap.Save(ctx, next); err != nil {
		return err
	}
	b.alarms = next
	return nil
}

// RemoteBackend delegates to the database, which is the system of record.
type RemoteBackend struct {
	store store.Store
}

// NewRemoteBackend wraps s.
func NewRemoteBackend(s store.Store) *RemoteBackend {
	return &RemoteBackend{store: s}
}

func (b *RemoteBackend) Mode() string { return "remote" }

func (b *RemoteBackend) Alarms(ctx context.Context) ([]alarm.Alarm, error) {
	return b.store.FetchAll(ctx)
}

func (b *RemoteBackend) Toggle(ctx context.Context, id string, now time.Time) (alarm.Alarm, error) {
	return b.store.ApplyToggle(ctx, id, now)
}

func (b *RemoteBackend) Create(ctx context.Context, a alarm.Alarm) error {
	return b.store.CreateAlarm(ctx, a)
}

func (b *RemoteBackend) Describe(ctx context.Context, id, description string) (alarm.Alarm, error) {
	return b.store.UpdateDescription(ctx, id, description)
}

func (b *RemoteBackend) Analytics(ctx context.Context, r alarm.TimeRange, now time.Time) (aggregate.Report, error) {
	return b.store.ComputeAnalytics(ctx, r, now)
}
