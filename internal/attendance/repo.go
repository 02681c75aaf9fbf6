package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hums/internal/shifttime"
	"hums/internal/store"
)

// Repository persists attendance data in Postgres over the caller's handle.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo bound to the given handle.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

const recordColumns = `att.id, att.shift_occurrence_id, att.user_id, att.status,
	att.time_in, att.time_out, att.is_excused, att.is_makeup,
	att.did_arrive_late, att.did_leave_early, att.updated_at,
	o.occurs_at, s.start_time, s.end_time`

const recordJoins = `
	FROM shift_attendance att
	JOIN shift_occurrences o ON o.id = att.shift_occurrence_id
	JOIN shift_schedules s ON s.id = o.shift_schedule_id`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var (
		r          Record
		status     string
		start, end string
	)
	err := row.Scan(&r.ID, &r.OccurrenceID, &r.UserID, &status,
		&r.TimeIn, &r.TimeOut, &r.IsExcused, &r.IsMakeup,
		&r.DidArriveLate, &r.DidLeaveEarly, &r.UpdatedAt,
		&r.ScheduledStart, &start, &end)
	if err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	startClock, err := shifttime.ParseClock(start)
	if err != nil {
		return Record{}, err
	}
	endClock, err := shifttime.ParseClock(end)
	if err != nil {
		return Record{}, err
	}
	r.ScheduledStart, r.ScheduledEnd = shifttime.Window(r.ScheduledStart.UTC(), startClock, endClock)
	return r, nil
}

// Get returns the record for one (occurrence, user) pair, or nil when none
// exists yet.
func (r *Repository) Get(ctx context.Context, occurrenceID, userID int64) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+recordJoins+`
		WHERE att.shift_occurrence_id = $1 AND att.user_id = $2
	`, occurrenceID, userID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record and returns its id.
func (r *Repository) Insert(ctx context.Context, rec Record) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO shift_attendance (shift_occurrence_id, user_id, status,
			time_in, time_out, is_excused, is_makeup, did_arrive_late, did_leave_early)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id
	`, rec.OccurrenceID, rec.UserID, string(rec.Status),
		rec.TimeIn, rec.TimeOut, rec.IsExcused, rec.IsMakeup,
		rec.DidArriveLate, rec.DidLeaveEarly)
	var id int64
	err := row.Scan(&id)
	return id, err
}

// Update rewrites a record's mutable fields.
func (r *Repository) Update(ctx context.Context, rec Record) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE shift_attendance SET status = $2, time_in = $3, time_out = $4,
			is_excused = $5, is_makeup = $6, did_arrive_late = $7,
			did_leave_early = $8, updated_at = NOW()
		WHERE id = $1
	`, rec.ID, string(rec.Status), rec.TimeIn, rec.TimeOut,
		rec.IsExcused, rec.IsMakeup, rec.DidArriveLate, rec.DidLeaveEarly)
	return err
}

// AssignedOccurrence is an occurrence slot a user holds, with its absolute
// window derived from the schedule clocks.
type AssignedOccurrence struct {
	OccurrenceID int64
	UserID       int64
	Start        time.Time
	End          time.Time
}

// ListAssignedAround returns the user's assigned occurrences whose start
// lies within the 24 hours up to at, or up to lookahead after it. Shifts
// never span a day, so this covers every window already containing at plus
// the ones an early arrival could bind to.
func (r *Repository) ListAssignedAround(ctx context.Context, userID int64, at time.Time, lookahead time.Duration) ([]AssignedOccurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, a.user_id, o.occurs_at, s.start_time, s.end_time
		FROM shift_assignments a
		JOIN shift_occurrences o ON o.id = a.shift_occurrence_id
		JOIN shift_schedules s ON s.id = o.shift_schedule_id
		WHERE a.user_id = $1
		  AND o.occurs_at > $2 - interval '24 hours'
		  AND o.occurs_at <= $3
		ORDER BY o.occurs_at
	`, userID, at, at.Add(lookahead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssigned(rows)
}

// OccurrenceExists reports whether an occurrence row exists.
func (r *Repository) OccurrenceExists(ctx context.Context, occurrenceID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM shift_occurrences WHERE id = $1
	`, occurrenceID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListOpenForTapOut returns the user's records with no tap-out, not in a
// protected status, whose scheduled start is at or before at.
func (r *Repository) ListOpenForTapOut(ctx context.Context, userID int64, at time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+recordJoins+`
		WHERE att.user_id = $1
		  AND att.time_out IS NULL
		  AND att.status NOT IN ('dropped', 'dropped_makeup')
		  AND o.occurs_at <= $2
		ORDER BY o.occurs_at
	`, userID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListForUser returns a user's records within a period.
func (r *Repository) ListForUser(ctx context.Context, userID, periodID int64) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+recordJoins+`
		WHERE att.user_id = $1 AND s.period_id = $2
		ORDER BY o.occurs_at
	`, userID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListForPeriod returns every record within a period.
func (r *Repository) ListForPeriod(ctx context.Context, periodID int64) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+recordJoins+`
		WHERE s.period_id = $1
		ORDER BY o.occurs_at, att.user_id
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListUnrecordedBefore returns assignment slots starting before the cutoff
// for which no attendance record exists yet.
func (r *Repository) ListUnrecordedBefore(ctx context.Context, cutoff time.Time) ([]AssignedOccurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, a.user_id, o.occurs_at, s.start_time, s.end_time
		FROM shift_assignments a
		JOIN shift_occurrences o ON o.id = a.shift_occurrence_id
		JOIN shift_schedules s ON s.id = o.shift_schedule_id
		LEFT JOIN shift_attendance att
			ON att.shift_occurrence_id = a.shift_occurrence_id AND att.user_id = a.user_id
		WHERE att.id IS NULL AND o.occurs_at < $1
		ORDER BY o.occurs_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssigned(rows)
}

func scanAssigned(rows *sql.Rows) ([]AssignedOccurrence, error) {
	var out []AssignedOccurrence
	for rows.Next() {
		var (
			occ        AssignedOccurrence
			start, end string
		)
		if err := rows.Scan(&occ.OccurrenceID, &occ.UserID, &occ.Start, &start, &end); err != nil {
			return nil, err
		}
		startClock, err := shifttime.ParseClock(start)
		if err != nil {
			return nil, err
		}
		endClock, err := shifttime.ParseClock(end)
		if err != nil {
			return nil, err
		}
		occ.Start, occ.End = shifttime.Window(occ.Start.UTC(), startClock, endClock)
		out = append(out, occ)
	}
	return out, rows.Err()
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
