package aggregate

import (
	"encoding/json"
	"time"

	"alarm-tracker-backend/internal/alarm"
)

// Row is the per-alarm aggregate for one window.
type Row struct {
	ID          string
	Total       time.Duration
	Activations int
}

type rowJSON struct {
	ID          string `json:"id"`
	TotalMs     int64  `json:"totalMs"`
	Total       string `json:"total"`
	Activations int    `json:"activations"`
}

// MarshalJSON reports the duration in milliseconds and as HH:MM:SS.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		ID:          r.ID,
		TotalMs:     r.Total.Milliseconds(),
		Total:       FormatDuration(r.Total),
		Activations: r.Activations,
	})
}

// Report is the analytics table for a window: one row per alarm plus totals.
type Report struct {
	Range       alarm.TimeRange `json:"range"`
	EvaluatedAt time.Time       `json:"evaluatedAt"`
	Rows        []Row           `json:"rows"`
	Total       time.Duration   `json:"-"`
	Activations int             `json:"activations"`
}

// MarshalJSON adds the formatted total next to the raw value.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	a := alias(r)
	a.Rows = rows
	return json.Marshal(struct {
		alias
		TotalMs        int64  `json:"totalMs"`
		TotalFormatted string `json:"total"`
	}{alias: a, TotalMs: r.Total.Milliseconds(), TotalFormatted: FormatDuration(r.Total)})
}

// RowFor computes the aggregate row of a single alarm.
func RowFor(a alarm.Alarm, r alarm.TimeRange, now time.Time) Row {
	return Row{
		ID:          a.ID,
		Total:       TotalActiveDuration(a, r, now),
		Activations: ActivationCount(a, r, now),
	}
}

// Rows computes one row per alarm, preserving input order.
func Rows(alarms []alarm.Alarm, r alarm.TimeRange, now time.Time) []Row {
	rows := make([]Row, 0, len(alarms))
	for _, a := range alarms {
		rows = append(rows, RowFor(a, r, now))
	}
	return rows
}

// NewReport wraps precomputed rows and fills in the totals.
func NewReport(rows []Row, r alarm.TimeRange, now time.Time) Report {
	rep := Report{Range: r, EvaluatedAt: now, Rows: rows}
	for _, row := range rows {
		rep.Total += row.Total
		rep.Activations += row.Activations
	}
	return rep
}

// Summarize aggregates every alarm over r.
func Summarize(alarms []alarm.Alarm, r alarm.TimeRange, now time.Time) Report {
	return NewReport(Rows(alarms, r, now), r, now)
}
