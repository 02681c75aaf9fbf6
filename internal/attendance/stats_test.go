package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timedRecord(status Status, start time.Time, length time.Duration, in, out *time.Time) Record {
	return Record{
		Status:         status,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(length),
		TimeIn:         in,
		TimeOut:        out,
	}
}

func TestCalculateStats(t *testing.T) {
	base := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	ptr := func(t time.Time) *time.Time { return &t }

	t.Run("upcoming and dropped excluded from the rate", func(t *testing.T) {
		in := ptr(base)
		out := ptr(base.Add(3 * time.Hour))
		records := []Record{
			timedRecord(StatusPresent, base, 3*time.Hour, in, out),
			timedRecord(StatusExcused, base.Add(24*time.Hour), 3*time.Hour, nil, nil),
			timedRecord(StatusDropped, base.Add(48*time.Hour), 3*time.Hour, nil, nil),
			timedRecord(StatusUpcoming, base.Add(72*time.Hour), 3*time.Hour, nil, nil),
		}
		st := CalculateStats(records)
		assert.Equal(t, 4, st.TotalShifts)
		assert.Equal(t, 2, st.EligibleShifts)
		assert.Equal(t, 100.0, st.AttendanceRate)
	})

	t.Run("absence drags the rate down", func(t *testing.T) {
		in := ptr(base)
		out := ptr(base.Add(3 * time.Hour))
		records := []Record{
			timedRecord(StatusPresent, base, 3*time.Hour, in, out),
			timedRecord(StatusAbsent, base.Add(24*time.Hour), 3*time.Hour, nil, nil),
		}
		st := CalculateStats(records)
		assert.Equal(t, 50.0, st.AttendanceRate)
	})

	t.Run("hours worked from tap data, excused gets full credit", func(t *testing.T) {
		in := ptr(base.Add(30 * time.Minute))
		out := ptr(base.Add(3 * time.Hour))
		records := []Record{
			timedRecord(StatusPresent, base, 3*time.Hour, in, out),
			timedRecord(StatusExcused, base.Add(24*time.Hour), 2*time.Hour, nil, nil),
		}
		st := CalculateStats(records)
		assert.Equal(t, 5.0, st.TotalScheduledHours)
		assert.Equal(t, 4.5, st.TotalHoursWorked)
		assert.InDelta(t, 90.0, st.TimeOnShiftPercentage, 1e-9)
	})

	t.Run("absent shift counts scheduled hours but no worked hours", func(t *testing.T) {
		records := []Record{timedRecord(StatusAbsent, base, 3*time.Hour, nil, nil)}
		st := CalculateStats(records)
		assert.Equal(t, 3.0, st.TotalScheduledHours)
		assert.Equal(t, 0.0, st.TotalHoursWorked)
		assert.Equal(t, 0.0, st.TimeOnShiftPercentage)
	})

	t.Run("empty input", func(t *testing.T) {
		st := CalculateStats(nil)
		assert.Equal(t, 0, st.TotalShifts)
		assert.Equal(t, 0.0, st.AttendanceRate)
	})

	t.Run("late and early flags are counted", func(t *testing.T) {
		rec := timedRecord(StatusPresent, base, 3*time.Hour, ptr(base), ptr(base.Add(3*time.Hour)))
		rec.DidArriveLate = true
		rec.DidLeaveEarly = true
		st := CalculateStats([]Record{rec})
		assert.Equal(t, 1, st.LateCount)
		assert.Equal(t, 1, st.LeftEarlyCount)
	})
}

func TestNeedsAdminReview(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want bool
	}{
		{"clean present", Record{Status: StatusPresent}, false},
		{"absent", Record{Status: StatusAbsent}, true},
		{"dropped", Record{Status: StatusDropped}, true},
		{"late arrival", Record{Status: StatusPresent, DidArriveLate: true}, true},
		{"early departure", Record{Status: StatusPresent, DidLeaveEarly: true}, true},
		{"excused absence", Record{Status: StatusExcused, IsExcused: true}, false},
		{"excused late arrival", Record{Status: StatusPresent, DidArriveLate: true, IsExcused: true}, false},
		{"upcoming", Record{Status: StatusUpcoming}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsAdminReview(tc.rec))
		})
	}
}

func TestCategorizeIssue(t *testing.T) {
	cases := []struct {
		name string
		rec  Record
		want Issue
	}{
		{"dropped beats everything", Record{Status: StatusDropped, DidArriveLate: true}, IssueDropped},
		{"absent", Record{Status: StatusAbsent}, IssueAbsent},
		{"late and early is partial", Record{Status: StatusPresent, DidArriveLate: true, DidLeaveEarly: true}, IssuePartial},
		{"late only", Record{Status: StatusPresent, DidArriveLate: true}, IssueLate},
		{"early only", Record{Status: StatusPresent, DidLeaveEarly: true}, IssueLeftEarly},
		{"clean", Record{Status: StatusPresent}, IssueNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategorizeIssue(tc.rec))
		})
	}
}
