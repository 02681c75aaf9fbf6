package calendar

import (
	"context"

	"hums/internal/shifttime"
	"hums/internal/store"
)

// Repository reads the occurrences a user is assigned to, shaped for
// export.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo bound to the given handle.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// ListEntriesForUser returns every occurrence the user holds a slot in,
// with shift-type display fields, ordered by start.
func (r *Repository) ListEntriesForUser(ctx context.Context, userID int64) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, t.id, t.name, t.location, t.description,
			o.occurs_at, s.start_time, s.end_time, o.updated_at
		FROM shift_assignments a
		JOIN shift_occurrences o ON o.id = a.shift_occurrence_id
		JOIN shift_schedules s ON s.id = o.shift_schedule_id
		JOIN shift_types t ON t.id = s.shift_type_id
		WHERE a.user_id = $1
		ORDER BY o.occurs_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			start, end string
		)
		if err := rows.Scan(&e.OccurrenceID, &e.ShiftTypeID, &e.Summary, &e.Location, &e.Description,
			&e.Start, &start, &end, &e.UpdatedAt); err != nil {
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
		e.Start, e.End = shifttime.Window(e.Start.UTC(), startClock, endClock)
		out = append(out, e)
	}
	return out, rows.Err()
}
