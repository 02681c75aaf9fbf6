// Package attendance derives and mutates attendance records from tap-in and
// tap-out events, administrative overrides, and the absence sweep, and
// computes aggregate attendance statistics.
package attendance

import "time"

// Status is the attendance state of one (user, occurrence) pair.
type Status string

const (
	StatusUpcoming      Status = "upcoming"
	StatusPresent       Status = "present"
	StatusAbsent        Status = "absent"
	StatusExcused       Status = "excused"
	StatusDropped       Status = "dropped"
	StatusDroppedMakeup Status = "dropped_makeup"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusPresent, StatusAbsent, StatusExcused, StatusDropped, StatusDroppedMakeup:
		return true
	}
	return false
}

// Protected reports whether s is immune to tap-driven mutation. Tap events
// are asynchronous hardware signals and must not fight administrative
// overrides, so a protected record silently ignores them.
func (s Status) Protected() bool {
	return s == StatusDropped || s == StatusDroppedMakeup
}

// Record is one attendance row. ScheduledStart and ScheduledEnd are derived
// from the occurrence and its schedule when the record is loaded; they are
// not persisted on the row itself.
type Record struct {
	ID           int64      `json:"id"`
	OccurrenceID int64      `json:"occurrence_id"`
	UserID       int64      `json:"user_id"`
	Status       Status     `json:"status"`
	TimeIn       *time.Time `json:"time_in,omitempty"`
	TimeOut      *time.Time `json:"time_out,omitempty"`

	IsExcused     bool `json:"is_excused"`
	IsMakeup      bool `json:"is_makeup"`
	DidArriveLate bool `json:"did_arrive_late"`
	DidLeaveEarly bool `json:"did_leave_early"`

	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Issue classifies what is wrong with a record, highest severity first.
type Issue string

const (
	IssueDropped   Issue = "dropped"
	IssueAbsent    Issue = "absent"
	IssuePartial   Issue = "partial"
	IssueLate      Issue = "late"
	IssueLeftEarly Issue = "left_early"
	IssueNone      Issue = ""
)

// NeedsAdminReview reports whether a record should appear in the admin
// review queue: unexcused absences and drops, and unexcused late arrivals
// or early departures.
func NeedsAdminReview(r Record) bool {
	if r.IsExcused {
		return false
	}
	if r.Status == StatusAbsent || r.Status == StatusDropped {
		return true
	}
	return r.DidArriveLate || r.DidLeaveEarly
}

// CategorizeIssue returns the most severe issue a record exhibits.
func CategorizeIssue(r Record) Issue {
	switch {
	case r.Status == StatusDropped:
		return IssueDropped
	case r.Status == StatusAbsent:
		return IssueAbsent
	case r.DidArriveLate && r.DidLeaveEarly:
		return IssuePartial
	case r.DidArriveLate:
		return IssueLate
	case r.DidLeaveEarly:
		return IssueLeftEarly
	}
	return IssueNone
}
