package schedule

import (
	"time"

	"hums/internal/domain"
	"hums/internal/shifttime"
)

// week is the recurrence stride. All arithmetic is whole weeks on UTC
// instants, so daylight-saving shifts cannot drift the emitted times.
const week = 7 * 24 * time.Hour

// GenerateTimestamps expands a weekly schedule into the absolute instants at
// which it recurs within the period. Every emitted t satisfies
// period.Start <= t < period.End and t's UTC weekday equals the schedule's
// day of week. Returns nil when the period bounds are absent or inverted.
func GenerateTimestamps(p Period, s ShiftSchedule) ([]time.Time, error) {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return nil, domain.Validationf("day of week %d out of range", s.DayOfWeek)
	}
	clock, err := shifttime.ParseClock(s.StartTime)
	if err != nil {
		return nil, err
	}
	if p.Start.IsZero() || p.End.IsZero() || !p.Start.Before(p.End) {
		return nil, nil
	}

	start := p.Start.UTC()
	end := p.End.UTC()

	// First UTC date >= period start whose weekday matches; the start date
	// itself is a candidate when it matches.
	offset := (s.DayOfWeek - int(start.Weekday()) + 7) % 7
	candidate := clock.OnDay(start.AddDate(0, 0, offset))
	if candidate.Before(start) {
		candidate = candidate.Add(week)
	}

	var out []time.Time
	for candidate.Before(end) {
		out = append(out, candidate)
		candidate = candidate.Add(week)
	}
	return out, nil
}

// FilterExceptions drops timestamps suppressed by an exception window.
// A recurrence t is suppressed iff exc.Start <= t < exc.End for any
// exception, matching the half-open convention used everywhere else.
func FilterExceptions(ts []time.Time, exceptions []PeriodException) []time.Time {
	if len(exceptions) == 0 {
		return ts
	}
	out := make([]time.Time, 0, len(ts))
	for _, t := range ts {
		suppressed := false
		for _, exc := range exceptions {
			if !t.Before(exc.Start) && t.Before(exc.End) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			out = append(out, t)
		}
	}
	return out
}
