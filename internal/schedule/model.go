// Package schedule owns the shift scheduling core: periods and their
// exceptions, weekly shift schedules, generated occurrences, and the
// assignment of users to occurrence slots.
package schedule

import "time"

// Period is an administrative date range [Start, End) bounding when shifts
// exist, e.g. an academic term. Optional sub-windows control visibility and
// when users may sign up for or modify their schedules.
type Period struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	VisibleStart *time.Time `json:"visible_start,omitempty"`
	VisibleEnd   *time.Time `json:"visible_end,omitempty"`
	SignupStart  *time.Time `json:"signup_start,omitempty"`
	SignupEnd    *time.Time `json:"signup_end,omitempty"`
	ModifyStart  *time.Time `json:"modify_start,omitempty"`
	ModifyEnd    *time.Time `json:"modify_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PeriodException is an override sub-range [Start, End) inside its parent
// period. Schedule recurrences whose instant falls inside an exception are
// suppressed.
type PeriodException struct {
	ID       int64     `json:"id"`
	PeriodID int64     `json:"period_id"`
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// ShiftType labels what kind of work an occurrence is, and supplies the
// display fields for calendar export.
type ShiftType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// ShiftSchedule is a weekly recurring template: a day of week, a local
// start/end time of day, and the number of parallel slots at that time.
type ShiftSchedule struct {
	ID          int64  `json:"id"`
	PeriodID    int64  `json:"period_id"`
	ShiftTypeID int64  `json:"shift_type_id"`
	DayOfWeek   int    `json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Slots       int    `json:"slots"`
}

// Occurrence is one concrete slot of a schedule at an absolute UTC instant.
// A schedule with N slots materializes N occurrences per recurrence.
type Occurrence struct {
	ID         int64     `json:"id"`
	ScheduleID int64     `json:"schedule_id"`
	Slot       int       `json:"slot_index"`
	At         time.Time `json:"occurs_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Registration records that a user signed up for a schedule. The balancer
// resyncs registrations against the occurrence set after regeneration.
type Registration struct {
	ScheduleID int64     `json:"schedule_id"`
	UserID     int64     `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssignmentStatusAssigned is the only assignment status written today.
const AssignmentStatusAssigned = "assigned"

// Assignment attaches a user to a specific occurrence slot.
type Assignment struct {
	OccurrenceID int64  `json:"occurrence_id"`
	UserID       int64  `json:"user_id"`
	Status       string `json:"status"`
}
