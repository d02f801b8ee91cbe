// Package aggregate intersects activation histories with time windows.
//
// Every function takes the evaluation instant explicitly: an open period is
// treated as running through now, so results for windows that touch the
// present change from call to call. Callers that display live values poll.
package aggregate

import (
	"fmt"
	"time"

	"alarm-tracker-backend/internal/alarm"
)

// TotalActiveDuration sums the overlap of every activation period with r.
// Periods outside the window contribute zero, never a negative amount.
func TotalActiveDuration(a alarm.Alarm, r alarm.TimeRange, now time.Time) time.Duration {
	var total time.Duration
	for _, p := range a.ActivationHistory {
		total += overlap(p, r, now)
	}
	return total
}

func overlap(p alarm.ActivationPeriod, r alarm.TimeRange, now time.Time) time.Duration {
	start := p.ActivatedAt
	if r.Start.After(start) {
		start = r.Start
	}
	end := p.End(now)
	if r.End.Before(end) {
		end = r.End
	}
	if d := end.Sub(start); d > 0 {
		return d
	}
	return 0
}

// ActivationCount counts periods that touch r. The test is inclusive on both
// ends, so a period meeting the window at a single instant counts even though
// it adds nothing to TotalActiveDuration.
func ActivationCount(a alarm.Alarm, r alarm.TimeRange, now time.Time) int {
	n := 0
	for _, p := range a.ActivationHistory {
		if !p.ActivatedAt.After(r.End) && !p.End(now).Before(r.Start) {
			n++
		}
	}
	return n
}

// FormatDuration renders d as HH:MM:SS. Hours are not wrapped at 24, the
// sub-second remainder is dropped and negative input renders as zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return formatSeconds(int64(d / time.Second))
}

// FormatMillis is FormatDuration for a millisecond count. It works on the
// count directly, so spans beyond the range of time.Duration still render.
func FormatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return formatSeconds(ms / 1000)
}

func formatSeconds(total int64) string {
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
