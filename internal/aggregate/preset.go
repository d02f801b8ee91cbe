package aggregate

import (
	"fmt"
	"time"

	"alarm-tracker-backend/internal/alarm"
)

// Range presets offered by the dashboard.
const (
	PresetLastHour = "lastHour"
	PresetToday    = "today"
	PresetLast24h  = "last24h"
)

// DefaultRange is the window shown before the user picks one.
func DefaultRange(now time.Time) alarm.TimeRange {
	return alarm.TimeRange{Start: now.Add(-24 * time.Hour), End: now}
}

// Preset resolves a named window ending at now. "today" starts at local
// midnight in loc.
func Preset(name string, now time.Time, loc *time.Location) (alarm.TimeRange, error) {
	switch name {
	case PresetLastHour:
		return alarm.TimeRange{Start: now.Add(-time.Hour), End: now}, nil
	case PresetToday:
		if loc == nil {
			loc = time.UTC
		}
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return alarm.TimeRange{Start: midnight.UTC(), End: now}, nil
	case PresetLast24h, "":
		return DefaultRange(now), nil
	default:
		return alarm.TimeRange{}, fmt.Errorf("unknown range preset %q", name)
	}
}
