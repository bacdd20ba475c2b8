package clock

import (
	"math"
	"time"
)

const layout = "2006-01-02T15:04:05Z"

func Now() string {
	return time.Now().UTC().Format(layout)
}

// Stamp returns the current UTC time at the precision MongoDB keeps,
// so values read back from the store compare equal to the ones written.
func Stamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CeilHours converts a duration to whole hours, rounding up;
// zero or negative durations give 0
func CeilHours(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours()))
}
