package attendance

import "time"

// Stats aggregates a set of attendance records.
//
// Upcoming and dropped shifts are excluded from the rate denominator;
// excused shifts count as full credit in both the numerator and the hours
// worked.
type Stats struct {
	TotalShifts int `json:"total_shifts"`

	Present       int `json:"present"`
	Absent        int `json:"absent"`
	Excused       int `json:"excused"`
	Dropped       int `json:"dropped"`
	DroppedMakeup int `json:"dropped_makeup"`
	Upcoming      int `json:"upcoming"`

	EligibleShifts int     `json:"eligible_shifts"`
	AttendanceRate float64 `json:"attendance_rate"`

	TotalScheduledHours   float64 `json:"total_scheduled_hours"`
	TotalHoursWorked      float64 `json:"total_hours_worked"`
	TimeOnShiftPercentage float64 `json:"time_on_shift_percentage"`

	LateCount      int `json:"late_count"`
	LeftEarlyCount int `json:"left_early_count"`
}

// CalculateStats computes aggregate attendance statistics for a set of
// records.
func CalculateStats(records []Record) Stats {
	var st Stats
	st.TotalShifts = len(records)

	var scheduled, worked time.Duration
	for _, r := range records {
		switch r.Status {
		case StatusPresent:
			st.Present++
		case StatusAbsent:
			st.Absent++
		case StatusExcused:
			st.Excused++
		case StatusDropped:
			st.Dropped++
		case StatusDroppedMakeup:
			st.DroppedMakeup++
		case StatusUpcoming:
			st.Upcoming++
		}
		if r.DidArriveLate {
			st.LateCount++
		}
		if r.DidLeaveEarly {
			st.LeftEarlyCount++
		}

		switch r.Status {
		case StatusUpcoming, StatusDropped, StatusDroppedMakeup:
			continue
		}
		st.EligibleShifts++
		duration := r.ScheduledEnd.Sub(r.ScheduledStart)
		scheduled += duration

		switch {
		case r.Status == StatusExcused:
			// Full credit even without tap data.
			worked += duration
		case r.Status == StatusPresent && r.TimeIn != nil && r.TimeOut != nil:
			worked += r.TimeOut.Sub(*r.TimeIn)
		}
	}

	credited := st.Present + st.Excused
	if st.EligibleShifts > 0 {
		st.AttendanceRate = 100 * float64(credited) / float64(st.EligibleShifts)
	}
	st.TotalScheduledHours = scheduled.Hours()
	st.TotalHoursWorked = worked.Hours()
	if scheduled > 0 {
		st.TimeOnShiftPercentage = 100 * worked.Hours() / scheduled.Hours()
	}
	return st
}
