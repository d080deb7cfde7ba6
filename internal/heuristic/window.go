// Package heuristic holds the offline food safety rules used when no external
// model produces a verdict.
package heuristic

import (
	"time"

	"github.com/sells-group/foodshare/internal/resilience"
)

// ExpiryLayout is the accepted expiry date format.
const ExpiryLayout = time.DateOnly

// ParseExpiry parses a YYYY-MM-DD expiry date.
func ParseExpiry(s string) (time.Time, error) {
	t, err := time.Parse(ExpiryLayout, s)
	if err != nil {
		return time.Time{}, &resilience.InvalidInputError{Field: "expiry_date", Value: s, Err: err}
	}
	return t, nil
}

// DaysLeft returns the number of calendar days from today until expiry.
// Negative values mean the item is already past expiry. Time of day and
// location offsets are ignored.
func DaysLeft(expiry, today time.Time) int {
	return int(civil(expiry).Sub(civil(today)) / (24 * time.Hour))
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
