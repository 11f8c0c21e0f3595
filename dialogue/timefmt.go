package dialogue

import (
	"fmt"
	"math"
	"time"
)

// TimestampLayout is the canonical message timestamp format (UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// formatEpoch renders unix seconds in TimestampLayout. Zero is treated as unset.
func formatEpoch(sec float64) string {
	if sec == 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return ""
	}
	whole := math.Floor(sec)
	ns := int64(math.Round((sec - whole) * 1e9))
	return time.Unix(int64(whole), ns).UTC().Format(TimestampLayout)
}

// parseTimestamp parses a TimestampLayout string; anything else is unparseable.
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formatDuration renders d as "H:MM:SS", prefixed with "N day(s), " past 24h.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	days := total / 86400
	rem := total % 86400
	clock := fmt.Sprintf("%d:%02d:%02d", rem/3600, (rem%3600)/60, rem%60)
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}
