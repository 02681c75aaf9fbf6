// Package shifttime holds the pure time math shared by scheduling and
// attendance: local time-of-day parsing, shift window derivation, and the
// late-arrival / early-departure predicates.
package shifttime

import (
	"regexp"
	"time"

	"hums/internal/domain"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// Clock is a time of day within a single calendar date.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses a strict HH:MM[:SS] string. Anything else is a
// validation error.
func ParseClock(s string) (Clock, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, domain.Validationf("malformed time of day %q", s)
	}
	c := Clock{
		Hour:   atoi(m[1]),
		Minute: atoi(m[2]),
	}
	if m[3] != "" {
		c.Second = atoi(m[3])
	}
	if c.Hour > 23 || c.Minute > 59 || c.Second > 59 {
		return Clock{}, domain.Validationf("time of day %q out of range", s)
	}
	return c, nil
}

// atoi converts digits already matched by clockPattern.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// Duration returns the offset of the clock from midnight.
func (c Clock) Duration() time.Duration {
	return time.Duration(c.Hour)*time.Hour +
		time.Duration(c.Minute)*time.Minute +
		time.Duration(c.Second)*time.Second
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	return c.Duration() < other.Duration()
}

// OnDay combines the clock with the UTC calendar date of day.
func (c Clock) OnDay(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, time.UTC)
}

// ShiftDuration is the length of a shift running from start to end on the
// same day. The generator rejects overnight shifts before this is reached,
// so the result is always positive for valid schedules.
func ShiftDuration(start, end Clock) time.Duration {
	return end.Duration() - start.Duration()
}

// Window derives the absolute [from, to) window of an occurrence that begins
// at startAt for a schedule running start..end.
func Window(startAt time.Time, start, end Clock) (time.Time, time.Time) {
	return startAt, startAt.Add(ShiftDuration(start, end))
}

// Grace holds the configurable thresholds for lateness accounting.
type Grace struct {
	// LateAfter: arriving more than this after the scheduled start counts
	// as late.
	LateAfter time.Duration
	// EarlyBefore: leaving more than this before the scheduled end counts
	// as leaving early.
	EarlyBefore time.Duration
}

// IsArrivalLate reports whether timeIn is past the scheduled start plus
// grace.
func (g Grace) IsArrivalLate(scheduledStart, timeIn time.Time) bool {
	return timeIn.After(scheduledStart.Add(g.LateAfter))
}

// IsDepartureEarly reports whether timeOut precedes the scheduled end by
// more than the grace.
func (g Grace) IsDepartureEarly(scheduledEnd, timeOut time.Time) bool {
	return timeOut.Before(scheduledEnd.Add(-g.EarlyBefore))
}
