package ledger

import "time"

// Clock supplies the current time so cooldown and daily-window logic can be
// tested without touching the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// DayKey formats t as the UTC calendar day the daily counter is bucketed by.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
