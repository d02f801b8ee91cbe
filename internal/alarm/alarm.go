package alarm

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the binary state of an alarm. The numeric values are part of the
// wire format and the database schema.
type Status int

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

// String returns the upper-case label used in notifications.
func (s Status) String() string {
	if s == StatusActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// ActivationPeriod is one interval during which an alarm was active.
// A nil DeactivatedAt means the interval is still open.
type ActivationPeriod struct {
	ActivatedAt   time.Time  `json:"activatedAt"`
	DeactivatedAt *time.Time `json:"deactivatedAt,omitempty"`
}

// IsOpen reports whether the period has not been closed yet.
func (p ActivationPeriod) IsOpen() bool {
	return p.DeactivatedAt == nil
}

// End returns the effective end of the period. Open periods run through now.
func (p ActivationPeriod) End(now time.Time) time.Time {
	if p.DeactivatedAt != nil {
		return *p.DeactivatedAt
	}
	return now
}

func (p ActivationPeriod) clone() ActivationPeriod {
	if p.DeactivatedAt == nil {
		return ActivationPeriod{ActivatedAt: p.ActivatedAt}
	}
	end := *p.DeactivatedAt
	return ActivationPeriod{ActivatedAt: p.ActivatedAt, DeactivatedAt: &end}
}

// Alarm is a named monitoring point. Its status is not stored: it is derived
// from whether ActivationHistory ends in an open period.
type Alarm struct {
	ID                   string
	Description          string
	LastStatusChangeTime time.Time
	ActivationHistory    []ActivationPeriod
}

// New returns an inactive alarm with an empty history.
func New(id, description string, now time.Time) Alarm {
	return Alarm{
		ID:                   id,
		Description:          description,
		LastStatusChangeTime: now.UTC(),
		ActivationHistory:    []ActivationPeriod{},
	}
}

// Status derives the alarm state from its history.
func (a Alarm) Status() Status {
	if a.OpenIndex() >= 0 {
		return StatusActive
	}
	return StatusInactive
}

// IsActive is shorthand for Status() == StatusActive.
func (a Alarm) IsActive() bool {
	return a.Status() == StatusActive
}

// OpenIndex returns the index of the most recent open period, or -1.
func (a Alarm) OpenIndex() int {
	for i := len(a.ActivationHistory) - 1; i >= 0; i-- {
		if a.ActivationHistory[i].IsOpen() {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy that shares no memory with a.
func (a Alarm) Clone() Alarm {
	out := a
	out.ActivationHistory = make([]ActivationPeriod, len(a.ActivationHistory))
	for i, p := range a.ActivationHistory {
		out.ActivationHistory[i] = p.clone()
	}
	return out
}

// Validate checks the history invariants: every period has a start, closed
// periods do not end before they start, and at most one period is open.
func (a Alarm) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvariantViolation)
	}
	open := 0
	for i, p := range a.ActivationHistory {
		if p.ActivatedAt.IsZero() {
			return fmt.Errorf("%w: %s period %d has no activation time", ErrInvariantViolation, a.ID, i)
		}
		if p.DeactivatedAt == nil {
			open++
			continue
		}
		if p.DeactivatedAt.Before(p.ActivatedAt) {
			return fmt.Errorf("%w: %s period %d ends before it starts", ErrInvariantViolation, a.ID, i)
		}
	}
	if open > 1 {
		return fmt.Errorf("%w: %s has %d open periods", ErrInvariantViolation, a.ID, open)
	}
	return nil
}

// wireAlarm is the persisted and transmitted form. It carries the status so
// that other consumers of the snapshot can read it without replaying history.
type wireAlarm struct {
	ID                   string             `json:"id"`
	Description          string             `json:"description"`
	Status               *Status            `json:"status,omitempty"`
	LastStatusChangeTime time.Time          `json:"lastStatusChangeTime"`
	ActivationHistory    []ActivationPeriod `json:"activationHistory"`
}

// MarshalJSON writes the alarm together with its derived status.
func (a Alarm) MarshalJSON() ([]byte, error) {
	status := a.Status()
	history := a.ActivationHistory
	if history == nil {
		history = []ActivationPeriod{}
	}
	return json.Marshal(wireAlarm{
		ID:                   a.ID,
		Description:          a.Description,
		Status:               &status,
		LastStatusChangeTime: a.LastStatusChangeTime,
		ActivationHistory:    history,
	})
}

// UnmarshalJSON decodes an alarm and rejects it when the stored status
// disagrees with the history or the history itself is malformed.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	var w wireAlarm
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded := Alarm{
		ID:                   w.ID,
		Description:          w.Description,
		LastStatusChangeTime: w.LastStatusChangeTime,
		ActivationHistory:    w.ActivationHistory,
	}
	if decoded.ActivationHistory == nil {
		decoded.ActivationHistory = []ActivationPeriod{}
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	if w.Status != nil && *w.Status != decoded.Status() {
		return fmt.Errorf("%w: %s stored status %s but history says %s",
			ErrInvariantViolation, w.ID, *w.Status, decoded.Status())
	}
	*a = decoded
	return nil
}

// TimeRange is an absolute window used to scope aggregation. Start <= End is
// expected but not enforced.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start, which may be negative for inverted ranges.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
