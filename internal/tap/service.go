// Package tap records hardware tap events from kiosks and applies their
// session and attendance side effects.
package tap

import (
	"context"
	"time"

	"hums/internal/domain"
	"hums/internal/session"
	"hums/internal/store"
)

// Direction is which way the user tapped.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Event processing statuses.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// Event represents a recorded tap event awaiting or done processing.
type Event struct {
	ID          string       `json:"id"`
	UserID      int64        `json:"user_id"`
	KioskID     string       `json:"kiosk_id"`
	Direction   Direction    `json:"direction"`
	SessionType session.Type `json:"session_type"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Service records tap events with deduplication and applies their side
// effects.
type Service struct {
	repo        *Repository
	sessions    *session.Service
	dedupWindow time.Duration
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, sessions *session.Service, dedupWindow time.Duration) *Service {
	if dedupWindow <= 0 {
		dedupWindow = time.Minute
	}
	return &Service{repo: repo, sessions: sessions, dedupWindow: dedupWindow}
}

// RegisterKiosk validates and persists kiosk metadata.
func (s *Service) RegisterKiosk(ctx context.Context, kioskID string) error {
	if kioskID == "" {
		return domain.Validationf("kiosk id required")
	}
	return s.repo.UpsertKiosk(ctx, kioskID)
}

// Record persists a new tap event. A repeated tap in the same direction
// within the dedup window returns the earlier event instead of writing a
// duplicate; card readers routinely emit doubles.
func (s *Service) Record(ctx context.Context, userID int64, kioskID string, direction Direction, sessionType session.Type) (Event, error) {
	if userID == 0 || kioskID == "" {
		return Event{}, domain.Validationf("user and kiosk required")
	}
	if !direction.Valid() {
		return Event{}, domain.Validationf("unknown direction %q", direction)
	}
	if !sessionType.Valid() {
		return Event{}, domain.Validationf("unknown session type %q", sessionType)
	}
	if recent, err := s.repo.RecentEvent(ctx, userID, string(direction), s.dedupWindow); err != nil {
		return Event{}, err
	} else if recent != nil {
		return *recent, nil
	}

	evt := Event{
		UserID:      userID,
		KioskID:     kioskID,
		Direction:   direction,
		SessionType: sessionType,
		OccurredAt:  time.Now().UTC(),
		Status:      StatusPending,
	}
	return s.repo.InsertEvent(ctx, evt)
}

// Apply runs an event's side effects inside the caller's transaction: a tap
// in starts a session, which taps the user into attendance when the session
// is a staffing one; a tap out ends the open session.
func (s *Service) Apply(ctx context.Context, tx store.DBTX, evt Event) error {
	switch evt.Direction {
	case DirectionIn:
		_, err := s.sessions.Start(ctx, tx, evt.UserID, evt.SessionType, evt.OccurredAt)
		return err
	case DirectionOut:
		_, err := s.sessions.End(ctx, tx, evt.UserID, evt.OccurredAt)
		return err
	}
	return domain.Validationf("unknown direction %q", evt.Direction)
}
