package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hums/internal/store"
)

// Repository persists scheduling data in Postgres. It operates over a
// store.DBTX so callers choose whether queries run on the pool or inside an
// open transaction.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo bound to the given handle.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const periodColumns = `id, name, start_at, end_at, visible_start_at, visible_end_at,
	signup_start_at, signup_end_at, modify_start_at, modify_end_at, created_at, updated_at`

func scanPeriod(row interface{ Scan(...any) error }) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Name, &p.Start, &p.End, &p.VisibleStart, &p.VisibleEnd,
		&p.SignupStart, &p.SignupEnd, &p.ModifyStart, &p.ModifyEnd, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPeriod returns a period by id, or nil when it does not exist.
func (r *Repository) GetPeriod(ctx context.Context, id int64) (*Period, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, id)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListPeriods returns all periods ordered by start.
func (r *Repository) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertPeriod writes a new period and returns it with generated fields.
func (r *Repository) InsertPeriod(ctx context.Context, p Period) (Period, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO periods (name, start_at, end_at, visible_start_at, visible_end_at,
			signup_start_at, signup_end_at, modify_start_at, modify_end_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Start, p.End, p.VisibleStart, p.VisibleEnd,
		p.SignupStart, p.SignupEnd, p.ModifyStart, p.ModifyEnd)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Period{}, err
	}
	return p, nil
}

// UpdatePeriod rewrites a period's fields. Returns false when no row matched.
func (r *Repository) UpdatePeriod(ctx context.Context, p Period) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE periods SET name = $2, start_at = $3, end_at = $4,
			visible_start_at = $5, visible_end_at = $6,
			signup_start_at = $7, signup_end_at = $8,
			modify_start_at = $9, modify_end_at = $10, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Start, p.End, p.VisibleStart, p.VisibleEnd,
		p.SignupStart, p.SignupEnd, p.ModifyStart, p.ModifyEnd)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeletePeriod removes a period; schedules, exceptions, occurrences and
// their assignments cascade in the database.
func (r *Repository) DeletePeriod(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetException returns an exception by id, or nil when missing.
func (r *Repository) GetException(ctx context.Context, id int64) (*PeriodException, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, period_id, name, start_at, end_at FROM period_exceptions WHERE id = $1
	`, id)
	var e PeriodException
	if err := row.Scan(&e.ID, &e.PeriodID, &e.Name, &e.Start, &e.End); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListExceptions returns a period's exceptions ordered by start.
func (r *Repository) ListExceptions(ctx context.Context, periodID int64) ([]PeriodException, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, period_id, name, start_at, end_at
		FROM period_exceptions WHERE period_id = $1 ORDER BY start_at
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PeriodException
	for rows.Next() {
		var e PeriodException
		if err := rows.Scan(&e.ID, &e.PeriodID, &e.Name, &e.Start, &e.End); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertException writes a new exception.
func (r *Repository) InsertException(ctx context.Context, e PeriodException) (PeriodException, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO period_exceptions (period_id, name, start_at, end_at)
		VALUES ($1,$2,$3,$4) RETURNING id
	`, e.PeriodID, e.Name, e.Start, e.End)
	if err := row.Scan(&e.ID); err != nil {
		return PeriodException{}, err
	}
	return e, nil
}

// UpdateException rewrites an exception's fields.
func (r *Repository) UpdateException(ctx context.Context, e PeriodException) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE period_exceptions SET name = $2, start_at = $3, end_at = $4 WHERE id = $1
	`, e.ID, e.Name, e.Start, e.End)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteException removes an exception.
func (r *Repository) DeleteException(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM period_exceptions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetShiftType returns a shift type by id, or nil when missing.
func (r *Repository) GetShiftType(ctx context.Context, id int64) (*ShiftType, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, location, description FROM shift_types WHERE id = $1
	`, id)
	var t ShiftType
	if err := row.Scan(&t.ID, &t.Name, &t.Location, &t.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListShiftTypes returns all shift types.
func (r *Repository) ListShiftTypes(ctx context.Context) ([]ShiftType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, location, description FROM shift_types ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShiftType
	for rows.Next() {
		var t ShiftType
		if err := rows.Scan(&t.ID, &t.Name, &t.Location, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertShiftType writes a new shift type.
func (r *Repository) InsertShiftType(ctx context.Context, t ShiftType) (ShiftType, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO shift_types (name, location, description)
		VALUES ($1,$2,$3) RETURNING id
	`, t.Name, t.Location, t.Description)
	if err := row.Scan(&t.ID); err != nil {
		return ShiftType{}, err
	}
	return t, nil
}

// DeleteShiftType removes a shift type.
func (r *Repository) DeleteShiftType(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shift_types WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSchedule returns a schedule by id, or nil when missing.
func (r *Repository) GetSchedule(ctx context.Context, id int64) (*ShiftSchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, period_id, shift_type_id, day_of_week, start_time, end_time, slots
		FROM shift_schedules WHERE id = $1
	`, id)
	var s ShiftSchedule
	if err := row.Scan(&s.ID, &s.PeriodID, &s.ShiftTypeID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.Slots); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns a period's schedules.
func (r *Repository) ListSchedules(ctx context.Context, periodID int64) ([]ShiftSchedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, period_id, shift_type_id, day_of_week, start_time, end_time, slots
		FROM shift_schedules WHERE period_id = $1 ORDER BY day_of_week, start_time
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShiftSchedule
	for rows.Next() {
		var s ShiftSchedule
		if err := rows.Scan(&s.ID, &s.PeriodID, &s.ShiftTypeID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.Slots); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertSchedule writes a new schedule.
func (r *Repository) InsertSchedule(ctx context.Context, s ShiftSchedule) (ShiftSchedule, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO shift_schedules (period_id, shift_type_id, day_of_week, start_time, end_time, slots)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id
	`, s.PeriodID, s.ShiftTypeID, s.DayOfWeek, s.StartTime, s.EndTime, s.Slots)
	if err := row.Scan(&s.ID); err != nil {
		return ShiftSchedule{}, err
	}
	return s, nil
}

// UpdateSchedule rewrites a schedule's fields.
func (r *Repository) UpdateSchedule(ctx context.Context, s ShiftSchedule) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shift_schedules SET shift_type_id = $2, day_of_week = $3,
			start_time = $4, end_time = $5, slots = $6
		WHERE id = $1
	`, s.ID, s.ShiftTypeID, s.DayOfWeek, s.StartTime, s.EndTime, s.Slots)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteSchedule removes a schedule; occurrences cascade.
func (r *Repository) DeleteSchedule(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shift_schedules WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListOccurrences returns a schedule's occurrences in timestamp then slot
// order. The balancer depends on this ordering for deterministic tie-breaks.
func (r *Repository) ListOccurrences(ctx context.Context, scheduleID int64) ([]Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shift_schedule_id, slot_index, occurs_at, updated_at
		FROM shift_occurrences WHERE shift_schedule_id = $1
		ORDER BY occurs_at, slot_index
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Occurrence
	for rows.Next() {
		var o Occurrence
		if err := rows.Scan(&o.ID, &o.ScheduleID, &o.Slot, &o.At, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOccurrence materializes one slot at one instant.
func (r *Repository) InsertOccurrence(ctx context.Context, scheduleID int64, slot int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_occurrences (shift_schedule_id, slot_index, occurs_at)
		VALUES ($1,$2,$3)
	`, scheduleID, slot, at)
	return err
}

// DeleteOccurrence removes one occurrence; assignments and attendance
// cascade.
func (r *Repository) DeleteOccurrence(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM shift_occurrences WHERE id = $1`, id)
	return err
}

// ListAssignments returns every assignment attached to a schedule's
// occurrences.
func (r *Repository) ListAssignments(ctx context.Context, scheduleID int64) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.shift_occurrence_id, a.user_id, a.status
		FROM shift_assignments a
		JOIN shift_occurrences o ON o.id = a.shift_occurrence_id
		WHERE o.shift_schedule_id = $1
		ORDER BY o.occurs_at, o.slot_index
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.OccurrenceID, &a.UserID, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAssignment attaches a user to a slot. Returns the number of rows
// written; a conflicting existing assignment writes nothing.
func (r *Repository) InsertAssignment(ctx context.Context, occurrenceID, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_assignments (shift_occurrence_id, user_id, status)
		VALUES ($1,$2,$3)
		ON CONFLICT (shift_occurrence_id, user_id) DO NOTHING
	`, occurrenceID, userID, AssignmentStatusAssigned)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAssignmentsForUser removes all of a user's assignments under a
// schedule.
func (r *Repository) DeleteAssignmentsForUser(ctx context.Context, scheduleID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM shift_assignments
		WHERE user_id = $2 AND shift_occurrence_id IN (
			SELECT id FROM shift_occurrences WHERE shift_schedule_id = $1
		)
	`, scheduleID, userID)
	return err
}

// ListRegisteredUsers returns the users registered to a schedule in signup
// order.
func (r *Repository) ListRegisteredUsers(ctx context.Context, scheduleID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM shift_registrations
		WHERE shift_schedule_id = $1 ORDER BY created_at, user_id
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertRegistration records a schedule signup.
func (r *Repository) InsertRegistration(ctx context.Context, scheduleID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_registrations (shift_schedule_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT (shift_schedule_id, user_id) DO NOTHING
	`, scheduleID, userID)
	return err
}

// DeleteRegistration removes a schedule signup.
func (r *Repository) DeleteRegistration(ctx context.Context, scheduleID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM shift_registrations WHERE shift_schedule_id = $1 AND user_id = $2
	`, scheduleID, userID)
	return err
}
