package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestGenerateTimestamps(t *testing.T) {
	// September 2024 starts on a Sunday.
	period := Period{Start: utc(2024, time.September, 1, 0, 0), End: utc(2024, time.October, 1, 0, 0)}

	t.Run("weekly stride on matching weekday", func(t *testing.T) {
		sched := ShiftSchedule{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Slots: 1}
		ts, err := GenerateTimestamps(period, sched)
		require.NoError(t, err)
		require.Len(t, ts, 5)
		assert.Equal(t, utc(2024, time.September, 2, 9, 0), ts[0])
		assert.Equal(t, utc(2024, time.September, 30, 9, 0), ts[4])
		for i := 1; i < len(ts); i++ {
			assert.Equal(t, 7*24*time.Hour, ts[i].Sub(ts[i-1]))
		}
	})

	t.Run("start day itself is a candidate", func(t *testing.T) {
		sched := ShiftSchedule{DayOfWeek: 0, StartTime: "00:00", EndTime: "01:00", Slots: 1}
		ts, err := GenerateTimestamps(period, sched)
		require.NoError(t, err)
		require.NotEmpty(t, ts)
		assert.Equal(t, period.Start, ts[0])
	})

	t.Run("clock before period start rolls to next week", func(t *testing.T) {
		// Period starts Sunday 12:00; a Sunday 09:00 shift that week has
		// already passed.
		p := Period{Start: utc(2024, time.September, 1, 12, 0), End: utc(2024, time.October, 1, 0, 0)}
		sched := ShiftSchedule{DayOfWeek: 0, StartTime: "09:00", EndTime: "11:00", Slots: 1}
		ts, err := GenerateTimestamps(p, sched)
		require.NoError(t, err)
		require.NotEmpty(t, ts)
		assert.Equal(t, utc(2024, time.September, 8, 9, 0), ts[0])
	})

	t.Run("end bound is exclusive", func(t *testing.T) {
		p := Period{Start: utc(2024, time.September, 1, 0, 0), End: utc(2024, time.September, 8, 9, 0)}
		sched := ShiftSchedule{DayOfWeek: 0, StartTime: "09:00", EndTime: "11:00", Slots: 1}
		ts, err := GenerateTimestamps(p, sched)
		require.NoError(t, err)
		require.Len(t, ts, 1)
		assert.Equal(t, utc(2024, time.September, 1, 9, 0), ts[0])
	})

	t.Run("inverted or missing bounds yield nothing", func(t *testing.T) {
		sched := ShiftSchedule{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Slots: 1}
		ts, err := GenerateTimestamps(Period{Start: period.End, End: period.Start}, sched)
		require.NoError(t, err)
		assert.Empty(t, ts)

		ts, err = GenerateTimestamps(Period{}, sched)
		require.NoError(t, err)
		assert.Empty(t, ts)
	})

	t.Run("bad day of week rejected", func(t *testing.T) {
		_, err := GenerateTimestamps(period, ShiftSchedule{DayOfWeek: 7, StartTime: "09:00"})
		assert.Error(t, err)
	})

	t.Run("bad clock rejected", func(t *testing.T) {
		_, err := GenerateTimestamps(period, ShiftSchedule{DayOfWeek: 1, StartTime: "25:00"})
		assert.Error(t, err)
	})
}

func TestFilterExceptions(t *testing.T) {
	mondays := []time.Time{
		utc(2024, time.September, 2, 9, 0),
		utc(2024, time.September, 9, 9, 0),
		utc(2024, time.September, 16, 9, 0),
	}

	t.Run("removes instants inside the window", func(t *testing.T) {
		exc := PeriodException{Start: utc(2024, time.September, 2, 0, 0), End: utc(2024, time.September, 3, 0, 0)}
		got := FilterExceptions(mondays, []PeriodException{exc})
		require.Len(t, got, 2)
		assert.Equal(t, mondays[1], got[0])
	})

	t.Run("end boundary is exclusive, start inclusive", func(t *testing.T) {
		exc := PeriodException{Start: utc(2024, time.September, 2, 9, 0), End: utc(2024, time.September, 9, 9, 0)}
		got := FilterExceptions(mondays, []PeriodException{exc})
		// First Monday is exactly at exc.Start (suppressed); second is
		// exactly at exc.End (kept).
		require.Len(t, got, 2)
		assert.Equal(t, mondays[1], got[0])
		assert.Equal(t, mondays[2], got[1])
	})

	t.Run("no exceptions passes through", func(t *testing.T) {
		assert.Equal(t, mondays, FilterExceptions(mondays, nil))
	})
}
