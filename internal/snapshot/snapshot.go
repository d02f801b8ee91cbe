// Package snapshot persists the full alarm list as a single blob for the
// local mode. Loading never fails: anything unusable is replaced by a fresh
// default set.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alarm-tracker-backend/internal/alarm"
)

const (
	DefaultAlarmsKey     = "alarm-tracker:v1:alarms"
	DefaultSimulationKey = "alarm-tracker:v1:simulation"
)

// Store loads and saves the alarm list and the simulation flag.
type Store struct {
	blobs      BlobStore
	alarmsKey  string
	simKey     string
	alarmCount int
	logger     *zap.Logger
}

// New creates a snapshot store. An empty key selects DefaultAlarmsKey.
func New(blobs BlobStore, key string, alarmCount int, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultAlarmsKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:      blobs,
		alarmsKey:  key,
		simKey:     DefaultSimulationKey,
		alarmCount: alarmCount,
		logger:     logger,
	}
}

// Load returns the persisted list, or Initialize(alarmCount, now) when the
// blob is absent, unreadable, unparsable or inconsistent.
func (s *Store) Load(ctx context.Context, now time.Time) []alarm.Alarm {
	data, ok, err := s.blobs.Get(ctx, s.alarmsKey)
	if err != nil {
		s.logger.Warn("snapshot unreadable, using defaults", zap.String("key", s.alarmsKey), zap.Error(err))
		return alarm.Initialize(s.alarmCount, now)
	}
	if !ok {
		return alarm.Initialize(s.alarmCount, now)
	}

	alarms, err := Decode(data)
	if err != nil {
		s.logger.Warn("snapshot rejected, using defaults", zap.String("key", s.alarmsKey), zap.Error(err))
		return alarm.Initialize(s.alarmCount, now)
	}
	return alarms
}

// Save overwrites the snapshot with the full list.
func (s *Store) Save(ctx context.Context, alarms []alarm.Alarm) error {
	data, err := Encode(alarms)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, s.alarmsKey, data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSimulation reports whether the simulation flag is set. Missing or
// unreadable values read as off.
func (s *Store) LoadSimulation(ctx context.Context) bool {
	data, ok, err := s.blobs.Get(ctx, s.simKey)
	if err != nil {
		s.logger.Warn("simulation flag unreadable", zap.Error(err))
		return false
	}
	return ok && string(data) == "1"
}

// SaveSimulation persists the simulation flag.
func (s *Store) SaveSimulation(ctx context.Context, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	if err := s.blobs.Put(ctx, s.simKey, []byte(v)); err != nil {
		return fmt.Errorf("failed to save simulation flag: %w", err)
	}
	return nil
}

// Encode serializes the list. A nil list encodes as [].
func Encode(alarms []alarm.Alarm) ([]byte, error) {
	if alarms == nil {
		alarms = []alarm.Alarm{}
	}
	data, err := json.Marshal(alarms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and validates a serialized list.
func Decode(data []byte) ([]alarm.Alarm, error) {
	var alarms []alarm.Alarm
	if err := json.Unmarshal(data, &alarms); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if alarms == nil {
		return nil, fmt.Errorf("snapshot is not a list: %w", alarm.ErrInvariantViolation)
	}
	if err := alarm.ValidateAll(alarms); err != nil {
		return nil, err
	}
	return alarms, nil
}
