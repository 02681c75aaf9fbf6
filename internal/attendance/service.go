package attendance

import (
	"context"
	"time"

	"hums/internal/domain"
	"hums/internal/metrics"
	"hums/internal/shifttime"
	"hums/internal/store"
)

// Service applies tap events and administrative overrides to attendance
// records. Every method takes the caller's transaction handle.
type Service struct {
	grace shifttime.Grace
	now   func() time.Time
}

// NewService creates a service with the given grace thresholds. A nil now
// falls back to time.Now.
func NewService(grace shifttime.Grace, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{grace: grace, now: now}
}

// applyTapIn promotes a record to present. Returns false when the record is
// protected or already has tap data: the first tap-in wins, and later taps
// are idempotent no-ops.
func applyTapIn(r *Record, at time.Time, grace shifttime.Grace) bool {
	if r.Status.Protected() || r.TimeIn != nil || r.TimeOut != nil {
		return false
	}
	in := at
	if in.Before(r.ScheduledStart) {
		in = r.ScheduledStart
	}
	r.Status = StatusPresent
	r.TimeIn = &in
	r.DidArriveLate = grace.IsArrivalLate(r.ScheduledStart, in)
	return true
}

// applyTapOut closes a record. Returns false when the record is protected or
// already closed: the first tap-out wins and is never overwritten.
func applyTapOut(r *Record, at time.Time, grace shifttime.Grace) bool {
	if r.Status.Protected() || r.TimeOut != nil {
		return false
	}
	out := at
	if out.After(r.ScheduledEnd) {
		out = r.ScheduledEnd
	}
	r.TimeOut = &out
	r.DidLeaveEarly = grace.IsDepartureEarly(r.ScheduledEnd, out)
	return true
}

// earlyTapWindow bounds how far before the scheduled start an arrival can
// bind to a shift. Arrivals earlier than this are treated as unrelated to
// the shift rather than clamped to its start.
const earlyTapWindow = time.Hour

// tapInFor computes the record an arrival at time at produces for one
// assigned occurrence, or nil when the tap does not touch it: the window has
// already closed, or the record refuses the tap. An arrival before the
// scheduled start binds with timeIn clamped to the start and is not late.
func tapInFor(occ AssignedOccurrence, rec *Record, at time.Time, grace shifttime.Grace) *Record {
	if !at.Before(occ.End) {
		return nil
	}
	if rec == nil {
		rec = &Record{
			OccurrenceID:   occ.OccurrenceID,
			UserID:         occ.UserID,
			Status:         StatusUpcoming,
			ScheduledStart: occ.Start,
			ScheduledEnd:   occ.End,
		}
	}
	if !applyTapIn(rec, at, grace) {
		return nil
	}
	return rec
}

// TapIn records an arrival at time at for every assigned occurrence whose
// window contains at or opens within earlyTapWindow of it. Returns the
// number of records touched.
func (s *Service) TapIn(ctx context.Context, tx store.DBTX, userID int64, at time.Time) (int, error) {
	repo := NewRepository(tx)
	occs, err := repo.ListAssignedAround(ctx, userID, at, earlyTapWindow)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, occ := range occs {
		rec, err := repo.Get(ctx, occ.OccurrenceID, userID)
		if err != nil {
			return touched, err
		}
		applied := tapInFor(occ, rec, at, s.grace)
		if applied == nil {
			continue
		}
		if applied.ID == 0 {
			if _, err := repo.Insert(ctx, *applied); err != nil {
				return touched, err
			}
		} else if err := repo.Update(ctx, *applied); err != nil {
			return touched, err
		}
		touched++
	}
	metrics.TapEvents.WithLabelValues("in").Inc()
	return touched, nil
}

// TapOut records a departure at time at for every open record whose
// scheduled start has passed. Returns the number of records closed.
func (s *Service) TapOut(ctx context.Context, tx store.DBTX, userID int64, at time.Time) (int, error) {
	repo := NewRepository(tx)
	open, err := repo.ListOpenForTapOut(ctx, userID, at)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range open {
		if applyTapOut(&open[i], at, s.grace) {
			if err := repo.Update(ctx, open[i]); err != nil {
				return closed, err
			}
			closed++
		}
	}
	metrics.TapEvents.WithLabelValues("out").Inc()
	return closed, nil
}

// ensureRecord loads or lazily creates the record for an override. Creating
// requires the occurrence to exist so the scheduled window can be derived.
func (s *Service) ensureRecord(ctx context.Context, repo *Repository, occurrenceID, userID int64) (*Record, error) {
	rec, err := repo.Get(ctx, occurrenceID, userID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	ok, err := repo.OccurrenceExists(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFoundf("occurrence %d", occurrenceID)
	}
	fresh := Record{
		OccurrenceID: occurrenceID,
		UserID:       userID,
		Status:       StatusUpcoming,
	}
	id, err := repo.Insert(ctx, fresh)
	if err != nil {
		return nil, err
	}
	rec, err = repo.Get(ctx, occurrenceID, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.NotFoundf("attendance record %d", id)
	}
	return rec, nil
}

// Excuse marks a record excused. Excused shifts keep full attendance credit
// and are excluded from the review queue.
func (s *Service) Excuse(ctx context.Context, tx store.DBTX, occurrenceID, userID int64) (Record, error) {
	repo := NewRepository(tx)
	rec, err := s.ensureRecord(ctx, repo, occurrenceID, userID)
	if err != nil {
		return Record{}, err
	}
	rec.Status = StatusExcused
	rec.IsExcused = true
	return *rec, repo.Update(ctx, *rec)
}

// Drop marks a record dropped, or dropped_makeup when the user will make the
// shift up. Dropped records are terminal for tap events.
func (s *Service) Drop(ctx context.Context, tx store.DBTX, occurrenceID, userID int64, makeup bool) (Record, error) {
	repo := NewRepository(tx)
	rec, err := s.ensureRecord(ctx, repo, occurrenceID, userID)
	if err != nil {
		return Record{}, err
	}
	rec.Status = StatusDropped
	if makeup {
		rec.Status = StatusDroppedMakeup
	}
	rec.IsMakeup = makeup
	return *rec, repo.Update(ctx, *rec)
}

// Reinstate clears an administrative override, restoring the status the tap
// data implies: present when a tap-in exists, absent when the window has
// passed without one, upcoming otherwise.
func (s *Service) Reinstate(ctx context.Context, tx store.DBTX, occurrenceID, userID int64) (Record, error) {
	repo := NewRepository(tx)
	rec, err := repo.Get(ctx, occurrenceID, userID)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, domain.NotFoundf("attendance for occurrence %d user %d", occurrenceID, userID)
	}
	rec.IsExcused = false
	rec.IsMakeup = false
	switch {
	case rec.TimeIn != nil:
		rec.Status = StatusPresent
	case s.now().After(rec.ScheduledEnd):
		rec.Status = StatusAbsent
	default:
		rec.Status = StatusUpcoming
	}
	return *rec, repo.Update(ctx, *rec)
}

// MarkAbsent creates absent records for assignment slots whose window closed
// before the cutoff without any tap data. Returns the number of records
// created.
func (s *Service) MarkAbsent(ctx context.Context, tx store.DBTX, cutoff time.Time) (int, error) {
	repo := NewRepository(tx)
	slots, err := repo.ListUnrecordedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, slot := range slots {
		if slot.End.After(cutoff) {
			continue
		}
		rec := Record{
			OccurrenceID: slot.OccurrenceID,
			UserID:       slot.UserID,
			Status:       StatusAbsent,
		}
		if _, err := repo.Insert(ctx, rec); err != nil {
			return marked, err
		}
		marked++
	}
	metrics.AbsencesMarked.Add(float64(marked))
	return marked, nil
}
