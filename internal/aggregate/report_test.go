package aggregate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alarm-tracker-backend/internal/alarm"
)

func TestSummarize(t *testing.T) {
	alarms := alarm.Initialize(3, t0)
	alarms = alarm.Toggle(alarms, "ALM-001", at(time.Minute))
	alarms = alarm.Toggle(alarms, "ALM-001", at(3*time.Minute))
	alarms = alarm.Toggle(alarms, "ALM-003", at(5*time.Minute))
	r := alarm.TimeRange{Start: t0, End: at(10 * time.Minute)}

	rep := Summarize(alarms, r, at(10*time.Minute))

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, Row{ID: "ALM-001", Total: 2 * time.Minute, Activations: 1}, rep.Rows[0])
	assert.Equal(t, Row{ID: "ALM-002"}, rep.Rows[1])
	assert.Equal(t, Row{ID: "ALM-003", Total: 5 * time.Minute, Activations: 1}, rep.Rows[2])
	assert.Equal(t, 7*time.Minute, rep.Total)
	assert.Equal(t, 2, rep.Activations)
	assert.Equal(t, r, rep.Range)
}

func TestReport_JSON(t *testing.T) {
	rep := NewReport([]Row{{ID: "ALM-001", Total: 3661 * time.Second, Activations: 2}},
		alarm.TimeRange{Start: t0, End: at(2 * time.Hour)}, at(2*time.Hour))

	raw, err := json.Marshal(rep)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, float64(3661000), got["totalMs"])
	assert.Equal(t, "01:01:01", got["total"])
	assert.Equal(t, float64(2), got["activations"])
	rows := got["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "ALM-001", row["id"])
	assert.Equal(t, float64(3661000), row["totalMs"])
	assert.Equal(t, "01:01:01", row["total"])
}

func TestReport_JSONEmptyRows(t *testing.T) {
	raw, err := json.Marshal(NewReport(nil, DefaultRange(t0), t0))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rows":[]`)
}

func TestPreset(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	now := time.Date(2025, 3, 1, 20, 30, 0, 0, time.UTC) // 04:30 on Mar 2 in CST

	r, err := Preset(PresetLastHour, now, nil)
	require.NoError(t, err)
	assert.Equal(t, alarm.TimeRange{Start: now.Add(-time.Hour), End: now}, r)

	r, err = Preset(PresetLast24h, now, nil)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), r.Start)

	r, err = Preset(PresetToday, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)

	r, err = Preset(PresetToday, now, shanghai)
	require.NoError(t, err)
	assert.True(t, r.Start.Equal(time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)))
	assert.Equal(t, now, r.End)

	_, err = Preset("lastWeek", now, nil)
	assert.Error(t, err)
}
