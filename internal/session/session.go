// Package session tracks open-ended user presence intervals. A staffing
// session's start and end are the triggers for attendance tap-in/tap-out
// side effects; regular sessions have none.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"hums/internal/domain"
	"hums/internal/store"
)

// Type distinguishes presence kinds.
type Type string

const (
	TypeRegular  Type = "regular"
	TypeStaffing Type = "staffing"
)

// Valid reports whether t is a known session type.
func (t Type) Valid() bool {
	return t == TypeRegular || t == TypeStaffing
}

// Session is one presence interval. EndedAt is nil while the user is
// tapped in.
type Session struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	Type      Type       `json:"session_type"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Attendance is the hook the session layer fires for staffing sessions.
type Attendance interface {
	TapIn(ctx context.Context, tx store.DBTX, userID int64, at time.Time) (int, error)
	TapOut(ctx context.Context, tx store.DBTX, userID int64, at time.Time) (int, error)
}

// Service manages session lifecycle and fires attendance side effects.
type Service struct {
	attendance Attendance
}

// NewService creates a service. attendance may be nil in read-only contexts.
func NewService(attendance Attendance) *Service {
	return &Service{attendance: attendance}
}

// Open returns the user's open session, or nil when there is none.
func (s *Service) Open(ctx context.Context, tx store.DBTX, userID int64) (*Session, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, session_type, started_at, ended_at
		FROM sessions WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1
	`, userID)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Type, &sess.StartedAt, &sess.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// Start opens a session at the given instant, closing any session the user
// left open first. A staffing start also taps the user into any active
// shift window.
func (s *Service) Start(ctx context.Context, tx store.DBTX, userID int64, typ Type, at time.Time) (Session, error) {
	if !typ.Valid() {
		return Session{}, domain.Validationf("unknown session type %q", typ)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET ended_at = $2 WHERE user_id = $1 AND ended_at IS NULL
	`, userID, at); err != nil {
		return Session{}, err
	}

	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		StartedAt: at.UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, session_type, started_at)
		VALUES ($1,$2,$3,$4)
	`, sess.ID, sess.UserID, string(sess.Type), sess.StartedAt); err != nil {
		return Session{}, err
	}

	if typ == TypeStaffing && s.attendance != nil {
		if _, err := s.attendance.TapIn(ctx, tx, userID, at); err != nil {
			return Session{}, err
		}
	}
	return sess, nil
}

// End closes the user's open session. A staffing end also taps the user out
// of open attendance records. NotFound when no session is open.
func (s *Service) End(ctx context.Context, tx store.DBTX, userID int64, at time.Time) (Session, error) {
	open, err := s.Open(ctx, tx, userID)
	if err != nil {
		return Session{}, err
	}
	if open == nil {
		return Session{}, domain.NotFoundf("no open session for user %d", userID)
	}

	ended := at.UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET ended_at = $2 WHERE id = $1
	`, open.ID, ended); err != nil {
		return Session{}, err
	}
	open.EndedAt = &ended

	if open.Type == TypeStaffing && s.attendance != nil {
		if _, err := s.attendance.TapOut(ctx, tx, userID, at); err != nil {
			return Session{}, err
		}
	}
	return *open, nil
}
