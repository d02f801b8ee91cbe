package alarm

import (
	"fmt"
	"time"

	"alarm-tracker-backend/internal/parse"
)

// Initialize produces n inactive alarms with sequential ids and empty histories.
func Initialize(n int, now time.Time) []Alarm {
	alarms := make([]Alarm, 0, n)
	for i := 1; i <= n; i++ {
		alarms = append(alarms, New(parse.FormatAlarmID(i), DefaultDescription(i), now))
	}
	return alarms
}

// DefaultDescription is the label given to the i-th generated alarm.
func DefaultDescription(i int) string {
	return fmt.Sprintf("Alarm %d - Monitoring point", i)
}

// Toggled returns a copy of a with its status flipped at now.
//
// Deactivation closes the most recent open period. Activation appends a new
// open period. LastStatusChangeTime moves with the history in the same value,
// so no caller can observe one without the other.
func (a Alarm) Toggled(now time.Time) Alarm {
	now = now.UTC()
	next := a.Clone()
	if i := next.OpenIndex(); i >= 0 {
		end := now
		// Keep deactivatedAt >= activatedAt under clock skew.
		if end.Before(next.ActivationHistory[i].ActivatedAt) {
			end = next.ActivationHistory[i].ActivatedAt
		}
		next.ActivationHistory[i].DeactivatedAt = &end
	} else {
		next.ActivationHistory = append(next.ActivationHistory, ActivationPeriod{ActivatedAt: now})
	}
	next.LastStatusChangeTime = now
	return next
}

// Toggle returns a new list in which the alarm with the given id has its status
// flipped. Unknown ids leave the list unchanged. The input is never modified.
func Toggle(alarms []Alarm, id string, now time.Time) []Alarm {
	out, err := Apply(alarms, id, now)
	if err != nil {
		return CloneAll(alarms)
	}
	return out
}

// Apply is the strict form of Toggle: an unknown id is reported as ErrNotFound.
func Apply(alarms []Alarm, id string, now time.Time) ([]Alarm, error) {
	idx := IndexOf(alarms, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := CloneAll(alarms)
	out[idx] = alarms[idx].Toggled(now)
	return out, nil
}

// IndexOf returns the position of id in alarms, or -1.
func IndexOf(alarms []Alarm, id string) int {
	for i := range alarms {
		if alarms[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns a copy of the alarm with the given id.
func Find(alarms []Alarm, id string) (Alarm, bool) {
	if i := IndexOf(alarms, id); i >= 0 {
		return alarms[i].Clone(), true
	}
	return Alarm{}, false
}

// CloneAll deep-copies a list of alarms.
func CloneAll(alarms []Alarm) []Alarm {
	out := make([]Alarm, len(alarms))
	for i := range alarms {
		out[i] = alarms[i].Clone()
	}
	return out
}

// CountActive returns how many alarms are currently active.
func CountActive(alarms []Alarm) int {
	n := 0
	for _, a := range alarms {
		if a.IsActive() {
			n++
		}
	}
	return n
}

// ValidateAll validates every alarm and rejects duplicate ids.
func ValidateAll(alarms []Alarm) error {
	seen := make(map[string]struct{}, len(alarms))
	for _, a := range alarms {
		if err := a.Validate(); err != nil {
			return err
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvariantViolation, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
