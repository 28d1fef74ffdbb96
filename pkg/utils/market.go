package utils

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// IndiaLocation is the timezone the strategy schedule is expressed in.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Clock abstracts wall-clock reads and sleeps so polling loops can be driven in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock, reporting IST.
type SystemClock struct{}

// Now returns the current time in IST.
func (SystemClock) Now() time.Time {
	return time.Now().In(IndiaLocation)
}

// Sleep blocks for d or until ctx is cancelled.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	return SleepContext(ctx, d)
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants.
func MustParseTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

// On returns the instant of this time of day on day's calendar date, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// String formats as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TargetExpiry returns the expiry date to trade at now: today before the
// cutoff, tomorrow from the cutoff onward.
func TargetExpiry(now time.Time, cutoff TimeOfDay) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(cutoff.On(now)) {
		return day
	}
	return day.AddDate(0, 0, 1)
}

// IsOneOfWeekdays reports whether t falls on one of the named weekdays.
func IsOneOfWeekdays(t time.Time, weekdays []string) bool {
	for _, w := range weekdays {
		if strings.EqualFold(strings.TrimSpace(w), t.Weekday().String()) {
			return true
		}
	}
	return false
}
