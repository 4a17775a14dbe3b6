package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTimestamp parses a user supplied instant. Anything dateparse recognises is
// accepted; values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseDuration parses duration strings supporting a 'd' (days) unit on top of
// time.ParseDuration. Examples: "7d", "24h", "1h30m", "45m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if daysStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid days value: %s", daysStr)
		}
		if days < 0 {
			return 0, fmt.Errorf("days cannot be negative: %d", days)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// ParseSince resolves a --since value: a duration before now ("2h", "7d") or an
// absolute timestamp.
func ParseSince(s string) (time.Time, error) {
	return parseSinceAt(s, time.Now())
}

func parseSinceAt(s string, now time.Time) (time.Time, error) {
	if d, err := ParseDuration(s); err == nil {
		return now.Add(-d).UTC(), nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a duration or timestamp", s)
	}
	return t, nil
}

// containsLower reports whether s contains needle, which must already be lower case.
func containsLower(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}
