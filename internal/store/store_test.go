package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
	"alarm-tracker-backend/internal/db"
	"alarm-tracker-backend/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore returns a migrated store on a private in-memory database.
func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return NewGormStore(gormDB)
}

func seed(t *testing.T, s Store, n int) {
	t.Helper()
	inserted, err := s.SeedDefaults(context.Background(), alarm.Initialize(n, t0))
	require.NoError(t, err)
	require.EqualValues(t, n, inserted)
}

func TestGormStore_SeedDefaults(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 3)

	again, err := s.SeedDefaults(ctx, alarm.Initialize(3, t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, again)

	alarms, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 3)
	for i, a := range alarms {
		assert.Equal(t, fmt.Sprintf("ALM-%03d", i+1), a.ID)
		assert.False(t, a.IsActive())
		assert.Empty(t, a.ActivationHistory)
		assert.True(t, a.LastStatusChangeTime.Equal(t0))
	}
}

func TestGormStore_ApplyToggle(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 2)

	on, err := s.ApplyToggle(ctx, "ALM-001", t0)
	require.NoError(t, err)
	assert.True(t, on.IsActive())
	require.Len(t, on.ActivationHistory, 1)
	assert.True(t, on.ActivationHistory[0].IsOpen())

	off, err := s.ApplyToggle(ctx, "ALM-001", t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, off.IsActive())
	assert.True(t, off.LastStatusChangeTime.Equal(t0.Add(30*time.Second)))

	stored, err := s.Get(ctx, "ALM-001")
	require.NoError(t, err)
	require.Len(t, stored.ActivationHistory, 1)
	period := stored.ActivationHistory[0]
	assert.True(t, period.ActivatedAt.Equal(t0))
	require.NotNil(t, period.DeactivatedAt)
	assert.True(t, period.DeactivatedAt.Equal(t0.Add(30*time.Second)))
	assert.NoError(t, stored.Validate())

	other, err := s.Get(ctx, "ALM-002")
	require.NoError(t, err)
	assert.Empty(t, other.ActivationHistory)
}

func TestGormStore_ApplyToggle_Errors(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 1)

	_, err := s.ApplyToggle(ctx, "ALM-404", t0)
	assert.ErrorIs(t, err, alarm.ErrNotFound)

	// A status column that disagrees with the history is refused.
	require.NoError(t, s.DB().Model(&model.Alarm{}).Where("id = ?", "ALM-001").Update("status", 1).Error)
	_, err = s.ApplyToggle(ctx, "ALM-001", t0)
	assert.ErrorIs(t, err, alarm.ErrInvariantViolation)

	var count int64
	require.NoError(t, s.DB().Model(&model.Activation{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormStore_ApplyToggle_Conflict(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "alarms"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "description", "status", "last_status_change_time"}).
			AddRow("ALM-001", "pump", 0, t0))
	mock.ExpectQuery(`SELECT \* FROM "alarm_activations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "alarm_id", "activated_at", "deactivated_at"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "alarm_activations"`)).
		WithArgs("ALM-001", Any{}, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "alarms" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.ApplyToggle(context.Background(), "ALM-001", t0.Add(time.Minute))
	assert.ErrorIs(t, err, alarm.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateAndDescribe(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 1)

	err := s.CreateAlarm(ctx, alarm.New("ALM-001", "dup", t0))
	assert.ErrorIs(t, err, alarm.ErrAlreadyExists)

	require.NoError(t, s.CreateAlarm(ctx, alarm.New("BOILER-1", "Boiler pressure", t0)))
	got, err := s.Get(ctx, "BOILER-1")
	require.NoError(t, err)
	assert.Equal(t, "Boiler pressure", got.Description)

	updated, err := s.UpdateDescription(ctx, "BOILER-1", "Boiler pressure (east)")
	require.NoError(t, err)
	assert.Equal(t, "Boiler pressure (east)", updated.Description)

	_, err = s.UpdateDescription(ctx, "ALM-404", "x")
	assert.ErrorIs(t, err, alarm.ErrNotFound)

	err = s.CreateAlarm(ctx, alarm.Alarm{})
	assert.Error(t, err)
}

func TestGormStore_ComputeAnalytics(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 3)

	toggles := []struct {
		id string
		at time.Duration
	}{
		{"ALM-001", 0},
		{"ALM-001", 30 * time.Second},
		{"ALM-002", 10 * time.Second},
		{"ALM-001", 2 * time.Minute},
		{"ALM-002", 20 * time.Second},
		{"ALM-002", 40 * time.Minute},
	}
	for _, tg := range toggles {
		_, err := s.ApplyToggle(ctx, tg.id, t0.Add(tg.at))
		require.NoError(t, err)
	}

	now := t0.Add(time.Hour)
	all, err := s.FetchAll(ctx)
	require.NoError(t, err)

	windows := []alarm.TimeRange{
		{Start: t0.Add(-time.Hour), End: now},
		{Start: t0, End: t0.Add(30 * time.Second)},
		{Start: t0.Add(30 * time.Second), End: t0.Add(time.Minute)},
		{Start: t0.Add(5 * time.Minute), End: t0.Add(10 * time.Minute)},
		{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)},
	}
	for _, w := range windows {
		t.Run(w.Start.Format(time.RFC3339), func(t *testing.T) {
			got, err := s.ComputeAnalytics(ctx, w, now)
			require.NoError(t, err)
			want := aggregate.Summarize(all, w, now)
			assert.Equal(t, want.Rows, got.Rows)
			assert.Equal(t, want.Total, got.Total)
			assert.Equal(t, want.Activations, got.Activations)
		})
	}

	rep, err := s.ComputeAnalytics(ctx, alarm.TimeRange{Start: t0, End: t0.Add(30 * time.Second)}, now)
	require.NoError(t, err)
	row := rep.Rows[0]
	assert.Equal(t, "ALM-001", row.ID)
	assert.Equal(t, 30*time.Second, row.Total)
	assert.Equal(t, 1, row.Activations)
}

func TestGormStore_Subscriptions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 2)

	sub := model.PushSubscription{Endpoint: "https://push.example/abc", P256DH: "key", Auth: "auth"}
	err := s.PutSubscription(ctx, sub, []string{"ALM-002", "GHOST"})
	assert.ErrorIs(t, err, alarm.ErrInvalidID)
	assert.Contains(t, err.Error(), "GHOST")
	_, err = s.GetSubscriptionAlarms(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, alarm.ErrNotFound, "a rejected subscription is not stored")

	require.NoError(t, s.PutSubscription(ctx, sub, []string{"ALM-002", "ALM-001"}))

	ids, err := s.GetSubscriptionAlarms(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALM-001", "ALM-002"}, ids)

	// Replacing narrows the set.
	require.NoError(t, s.PutSubscription(ctx, sub, []string{"ALM-002"}))
	ids, err = s.GetSubscriptionAlarms(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALM-002"}, ids)

	watching, err := s.SubscriptionsForAlarm(ctx, "ALM-002")
	require.NoError(t, err)
	require.Len(t, watching, 1)
	assert.Equal(t, sub.Endpoint, watching[0].Endpoint)

	watching, err = s.SubscriptionsForAlarm(ctx, "ALM-001")
	require.NoError(t, err)
	assert.Empty(t, watching)

	require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
	_, err = s.GetSubscriptionAlarms(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, alarm.ErrNotFound)
}

func TestGormStore_MirrorAlarms(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	// Mirrored rows never carry history, even when the local alarm does.
	local := alarm.Initialize(2, t0)
	local[0] = local[0].Toggled(t0.Add(time.Minute))

	inserted, err := s.MirrorAlarms(ctx, local)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inserted)

	// Existing ids are left alone; new ones are added.
	more := append(alarm.Initialize(2, t0), alarm.New("ALM-003", "Boiler", t0))
	inserted, err = s.MirrorAlarms(ctx, more)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inserted)

	alarms, err := s.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 3)
	for _, a := range alarms {
		assert.False(t, a.IsActive())
		assert.Empty(t, a.ActivationHistory)
	}
	assert.Equal(t, "Boiler", alarms[2].Description)

	// The rows are valid subscription targets.
	sub := model.PushSubscription{Endpoint: "https://push.example/mirror", P256DH: "key", Auth: "auth"}
	require.NoError(t, s.PutSubscription(ctx, sub, []string{"ALM-001", "ALM-003"}))
	watching, err := s.SubscriptionsForAlarm(ctx, "ALM-003")
	require.NoError(t, err)
	assert.Len(t, watching, 1)
}

func TestGormStore_ApplyToggle_ClosesOlderOpenPeriod(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seed(t, s, 1)

	// An open period that is older than a closed one, as left behind by
	// writers with skewed clocks.
	closedEnd := t0.Add(20 * time.Minute)
	require.NoError(t, s.DB().Create(&[]model.Activation{
		{AlarmID: "ALM-001", ActivatedAt: t0},
		{AlarmID: "ALM-001", ActivatedAt: t0.Add(10 * time.Minute), DeactivatedAt: &closedEnd},
	}).Error)
	require.NoError(t, s.DB().Model(&model.Alarm{}).Where("id = ?", "ALM-001").Update("status", 1).Error)

	off, err := s.ApplyToggle(ctx, "ALM-001", t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, off.IsActive())

	stored, err := s.Get(ctx, "ALM-001")
	require.NoError(t, err)
	require.Len(t, stored.ActivationHistory, 2)
	require.NotNil(t, stored.ActivationHistory[0].DeactivatedAt)
	assert.True(t, stored.ActivationHistory[0].DeactivatedAt.Equal(t0.Add(30*time.Minute)))
	require.NotNil(t, stored.ActivationHistory[1].DeactivatedAt)
	assert.True(t, stored.ActivationHistory[1].DeactivatedAt.Equal(closedEnd))

	// The returned alarm matches what was stored.
	require.Len(t, off.ActivationHistory, 2)
	for i := range off.ActivationHistory {
		assert.True(t, off.ActivationHistory[i].ActivatedAt.Equal(stored.ActivationHistory[i].ActivatedAt))
		assert.True(t, off.ActivationHistory[i].DeactivatedAt.Equal(*stored.ActivationHistory[i].DeactivatedAt))
	}
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
