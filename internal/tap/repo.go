package tap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hums/internal/store"
)

// Repository persists kiosk and tap-event data in Postgres.
type Repository struct {
	db store.DBTX
}

// NewRepository creates a repo bound to the given handle.
func NewRepository(db store.DBTX) *Repository {
	return &Repository{db: db}
}

// UpsertKiosk ensures a kiosk record exists.
func (r *Repository) UpsertKiosk(ctx context.Context, kioskID string) error {
	if kioskID == "" {
		return errors.New("kiosk id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kiosks (kiosk_id)
		VALUES ($1)
		ON CONFLICT (kiosk_id) DO NOTHING
	`, kioskID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, kioskID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (kiosk_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, kioskID, token, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// RecentEvent returns the user's latest event for a direction within the
// provided window.
func (r *Repository) RecentEvent(ctx context.Context, userID int64, direction string, window time.Duration) (*Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, kiosk_id, direction, session_type, occurred_at, status, created_at
		FROM tap_events
		WHERE user_id = $1 AND direction = $2 AND occurred_at >= NOW() - ($3 * interval '1 second')
		ORDER BY occurred_at DESC
		LIMIT 1
	`, userID, direction, window.Seconds())
	var evt Event
	if err := row.Scan(&evt.ID, &evt.UserID, &evt.KioskID, &evt.Direction, &evt.SessionType, &evt.OccurredAt, &evt.Status, &evt.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &evt, nil
}

// InsertEvent writes a new event.
func (r *Repository) InsertEvent(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if evt.Status == "" {
		evt.Status = StatusPending
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tap_events (id, user_id, kiosk_id, direction, session_type, occurred_at, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, evt.ID, evt.UserID, evt.KioskID, string(evt.Direction), string(evt.SessionType), evt.OccurredAt, evt.Status)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// GetEvent returns a single event by id.
func (r *Repository) GetEvent(ctx context.Context, id string) (Event, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, kiosk_id, direction, session_type, occurred_at, status, created_at
		FROM tap_events WHERE id = $1
	`, id)
	var evt Event
	if err := row.Scan(&evt.ID, &evt.UserID, &evt.KioskID, &evt.Direction, &evt.SessionType, &evt.OccurredAt, &evt.Status, &evt.CreatedAt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// UpdateEventStatus updates status after processing.
func (r *Repository) UpdateEventStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tap_events SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

// ListEvents returns events with basic filters.
func (r *Repository) ListEvents(ctx context.Context, kioskID string, userID int64, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, user_id, kiosk_id, direction, session_type, occurred_at, status, created_at FROM tap_events`
	args := []any{}
	clauses := []string{}
	if kioskID != "" {
		clauses = append(clauses, "kiosk_id = $"+itoa(len(args)+1))
		args = append(args, kioskID)
	}
	if userID != 0 {
		clauses = append(clauses, "user_id = $"+itoa(len(args)+1))
		args = append(args, userID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY occurred_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.UserID, &evt.KioskID, &evt.Direction, &evt.SessionType, &evt.OccurredAt, &evt.Status, &evt.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
