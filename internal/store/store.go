package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	FetchAll(ctx context.Context) ([]alarm.Alarm, error)
	Get(ctx context.Context, id string) (alarm.Alarm, error)
	ApplyToggle(ctx context.Context, id string, now time.Time) (alarm.Alarm, error)
	CreateAlarm(ctx context.Context, a alarm.Alarm) error
	UpdateDescription(ctx context.Context, id, description string) (alarm.Alarm, error)
	SeedDefaults(ctx context.Context, alarms []alarm.Alarm) (int64, error)
	MirrorAlarms(ctx context.Context, alarms []alarm.Alarm) (int64, error)
	ComputeAnalytics(ctx context.Context, r alarm.TimeRange, now time.Time) (aggregate.Report, error)

	PutSubscription(ctx context.Context, sub model.PushSubscription, alarmIDs []string) error
	GetSubscriptionAlarms(ctx context.Context, endpoint string) ([]string, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForAlarm(ctx context.Context, alarmID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// FetchAll returns every alarm with its full history, ordered by id.
func (s *gormStore) FetchAll(ctx context.Context) ([]alarm.Alarm, error) {
	var rows []model.Alarm
	if err := s.db.WithContext(ctx).
		Preload("Activations", orderActivations).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch alarms: %w", err)
	}
	return toDomainAll(rows), nil
}

// Get returns one alarm with its full history.
func (s *gormStore) Get(ctx context.Context, id string) (alarm.Alarm, error) {
	row, err := loadAlarm(s.db.WithContext(ctx), id)
	if err != nil {
		return alarm.Alarm{}, err
	}
	return toDomain(row), nil
}

// ApplyToggle flips one alarm inside a single transaction. The alarms row is
// updated conditionally on the status read at the start, so a concurrent
// toggle that committed first turns this one into ErrConflict.
func (s *gormStore) ApplyToggle(ctx context.Context, id string, now time.Time) (alarm.Alarm, error) {
	var toggled alarm.Alarm
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := loadAlarm(tx, id)
		if err != nil {
			return err
		}
		current := toDomain(row)
		if int(current.Status()) != row.Status {
			return fmt.Errorf("alarm %s: stored status %d disagrees with history: %w", id, row.Status, alarm.ErrInvariantViolation)
		}

		toggled = current.Toggled(now)

		if open := current.OpenIndex(); open >= 0 {
			// The open period is not necessarily the newest one.
			closed := toggled.ActivationHistory[open]
			res := tx.Model(&model.Activation{}).
				Where("alarm_id = ? AND deactivated_at IS NULL", id).
				Update("deactivated_at", *closed.DeactivatedAt)
			if res.Error != nil {
				return fmt.Errorf("failed to close activation for alarm %s: %w", id, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("alarm %s: open activation vanished: %w", id, alarm.ErrConflict)
			}
		} else {
			opened := toggled.ActivationHistory[len(toggled.ActivationHistory)-1]
			activation := model.Activation{AlarmID: id, ActivatedAt: opened.ActivatedAt}
			if err := tx.Create(&activation).Error; err != nil {
				return fmt.Errorf("failed to open activation for alarm %s: %w", id, err)
			}
		}

		res := tx.Model(&model.Alarm{}).
			Where("id = ? AND status = ?", id, row.Status).
			Updates(map[string]interface{}{
				"status":                  int(toggled.Status()),
				"last_status_change_time": toggled.LastStatusChangeTime,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update alarm %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("alarm %s changed concurrently: %w", id, alarm.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return alarm.Alarm{}, err
	}
	return toggled, nil
}

// CreateAlarm inserts a new alarm. Existing ids yield ErrAlreadyExists.
func (s *gormStore) CreateAlarm(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Alarm{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check alarm %s: %w", a.ID, err)
		}
		if count > 0 {
			return fmt.Errorf("alarm %s: %w", a.ID, alarm.ErrAlreadyExists)
		}
		row := fromDomain(a)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create alarm %s: %w", a.ID, err)
		}
		return nil
	})
}

// UpdateDescription changes the description and returns the updated alarm.
func (s *gormStore) UpdateDescription(ctx context.Context, id, description string) (alarm.Alarm, error) {
	res := s.db.WithContext(ctx).Model(&model.Alarm{}).
		Where("id = ?", id).
		Update("description", description)
	if res.Error != nil {
		return alarm.Alarm{}, fmt.Errorf("failed to update description of alarm %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return alarm.Alarm{}, fmt.Errorf("alarm %s: %w", id, alarm.ErrNotFound)
	}
	return s.Get(ctx, id)
}

// SeedDefaults inserts the given alarms when the table is empty and returns
// the number of rows inserted.
func (s *gormStore) SeedDefaults(ctx context.Context, alarms []alarm.Alarm) (int64, error) {
	if len(alarms) == 0 {
		return 0, nil
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&model.Alarm{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to count alarms: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}
	rows := make([]model.Alarm, len(alarms))
	for i, a := range alarms {
		rows[i] = fromDomain(a)
		rows[i].Activations = nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to seed alarms: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MirrorAlarms inserts a history-less row for every alarm id not yet in the
// table. Local mode keeps its list in the snapshot; the rows only give push
// subscriptions something to reference.
func (s *gormStore) MirrorAlarms(ctx context.Context, alarms []alarm.Alarm) (int64, error) {
	if len(alarms) == 0 {
		return 0, nil
	}
	rows := make([]model.Alarm, len(alarms))
	for i, a := range alarms {
		rows[i] = model.Alarm{
			ID:                   a.ID,
			Description:          a.Description,
			Status:               int(alarm.StatusInactive),
			LastStatusChangeTime: a.LastStatusChangeTime.UTC(),
		}
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mirror alarms: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ComputeAnalytics aggregates every alarm over r. Only activations that can
// touch the window are loaded; the arithmetic itself is the same as for the
// in-memory list.
func (s *gormStore) ComputeAnalytics(ctx context.Context, r alarm.TimeRange, now time.Time) (aggregate.Report, error) {
	var rows []model.Alarm
	err := s.db.WithContext(ctx).
		Preload("Activations", func(db *gorm.DB) *gorm.DB {
			return db.
				Where("activated_at <= ? AND (deactivated_at IS NULL OR deactivated_at >= ?)", r.End.UTC(), r.Start.UTC()).
				Order("activated_at")
		}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return aggregate.Report{}, fmt.Errorf("failed to load activations for analytics: %w", err)
	}
	return aggregate.Summarize(toDomainAll(rows), r, now), nil
}

// PutSubscription creates or replaces a push subscription and its alarm set.
// Unknown alarm ids are rejected with ErrInvalidID and nothing is written.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, alarmIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		var alarms []model.Alarm
		if len(alarmIDs) > 0 {
			if err := tx.Where("id IN ?", alarmIDs).Find(&alarms).Error; err != nil {
				return fmt.Errorf("failed to resolve subscribed alarms: %w", err)
			}
		}
		if missing := missingIDs(alarmIDs, alarms); len(missing) > 0 {
			return fmt.Errorf("%w: unknown alarms %s", alarm.ErrInvalidID, strings.Join(missing, ", "))
		}

		if err := tx.Model(&sub).Association("Alarms").Replace(&alarms); err != nil {
			return fmt.Errorf("failed to replace subscribed alarms: %w", err)
		}
		return nil
	})
}

// GetSubscriptionAlarms returns the alarm ids an endpoint is subscribed to.
func (s *gormStore) GetSubscriptionAlarms(ctx context.Context, endpoint string) ([]string, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Alarms").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription: %w", alarm.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	ids := make([]string, len(sub.Alarms))
	for i, a := range sub.Alarms {
		ids[i] = a.ID
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteSubscription removes a subscription and its mapping rows.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Alarms").Clear(); err != nil {
			return fmt.Errorf("failed to clear subscribed alarms: %w", err)
		}
		if err := tx.Delete(&sub).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscriptionsForAlarm returns the subscriptions watching the given alarm.
func (s *gormStore) SubscriptionsForAlarm(ctx context.Context, alarmID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_alarm_mapping ON subscription_alarm_mapping.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("subscription_alarm_mapping.alarm_id = ?", alarmID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for alarm %s: %w", alarmID, err)
	}
	return subs, nil
}

// --- Helpers ---

func missingIDs(want []string, found []model.Alarm) []string {
	known := make(map[string]struct{}, len(found))
	for _, a := range found {
		known[a.ID] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func orderActivations(db *gorm.DB) *gorm.DB {
	return db.Order("activated_at")
}

func loadAlarm(db *gorm.DB, id string) (model.Alarm, error) {
	var row model.Alarm
	if err := db.Preload("Activations", orderActivations).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Alarm{}, fmt.Errorf("alarm %s: %w", id, alarm.ErrNotFound)
		}
		return model.Alarm{}, fmt.Errorf("failed to load alarm %s: %w", id, err)
	}
	return row, nil
}

func toDomain(row model.Alarm) alarm.Alarm {
	history := make([]alarm.ActivationPeriod, len(row.Activations))
	for i, act := range row.Activations {
		p := alarm.ActivationPeriod{ActivatedAt: act.ActivatedAt.UTC()}
		if act.DeactivatedAt != nil {
			end := act.DeactivatedAt.UTC()
			p.DeactivatedAt = &end
		}
		history[i] = p
	}
	return alarm.Alarm{
		ID:                   row.ID,
		Description:          row.Description,
		LastStatusChangeTime: row.LastStatusChangeTime.UTC(),
		ActivationHistory:    history,
	}
}

func toDomainAll(rows []model.Alarm) []alarm.Alarm {
	out := make([]alarm.Alarm, len(rows))
	for i, row := range rows {
		out[i] = toDomain(row)
	}
	return out
}

func fromDomain(a alarm.Alarm) model.Alarm {
	acts := make([]model.Activation, len(a.ActivationHistory))
	for i, p := range a.ActivationHistory {
		acts[i] = model.Activation{AlarmID: a.ID, ActivatedAt: p.ActivatedAt.UTC()}
		if p.DeactivatedAt != nil {
			end := p.DeactivatedAt.UTC()
			acts[i].DeactivatedAt = &end
		}
	}
	return model.Alarm{
		ID:                   a.ID,
		Description:          a.Description,
		Status:               int(a.Status()),
		LastStatusChangeTime: a.LastStatusChangeTime.UTC(),
		Activations:          acts,
	}
}
