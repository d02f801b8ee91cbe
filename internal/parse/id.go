package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AlarmIDPrefix is the prefix shared by generated alarm identifiers.
const AlarmIDPrefix = "ALM-"

var (
	seqRe = regexp.MustCompile(`^(?i)ALM\s*-\s*(\d+)$`)
	idRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)
)

// ParseAlarmID extracts the sequence number from a generated id such as "ALM-007".
func ParseAlarmID(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	m := seqRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse alarm id: %q", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("unable to parse alarm sequence from %q: %w", raw, err)
	}
	return n, nil
}

// FormatAlarmID renders a sequence number as a zero-padded alarm id.
func FormatAlarmID(seq int) string {
	return fmt.Sprintf("%s%03d", AlarmIDPrefix, seq)
}

// NextAlarmID returns the id following the highest generated id in ids.
// Ids that do not follow the generated pattern are ignored.
func NextAlarmID(ids []string) string {
	highest := 0
	for _, id := range ids {
		if n, err := ParseAlarmID(id); err == nil && n > highest {
			highest = n
		}
	}
	return FormatAlarmID(highest + 1)
}

// ValidAlarmID reports whether raw is usable as a stable alarm key.
func ValidAlarmID(raw string) bool {
	return idRe.MatchString(raw)
}
