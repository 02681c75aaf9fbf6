package schedule

import (
	"context"
	"fmt"
	"time"

	"hums/internal/domain"
	"hums/internal/metrics"
	"hums/internal/store"
)

// PlanPlacements decides which occurrence slots a user should be inserted
// into. Occurrences sharing a timestamp form one group of parallel slots;
// for each group where the user holds no slot yet, the least-loaded slot
// wins, ties broken by encounter order. Groups where the user already holds
// a slot are skipped, which makes assignment idempotent.
//
// Occurrences must arrive ordered by timestamp then slot, as the repository
// returns them.
func PlanPlacements(occurrences []Occurrence, assignments []Assignment, userID int64) []int64 {
	loads := make(map[int64]int, len(occurrences))
	taken := make(map[int64]bool)
	occByID := make(map[int64]Occurrence, len(occurrences))
	for _, o := range occurrences {
		occByID[o.ID] = o
	}
	for _, a := range assignments {
		loads[a.OccurrenceID]++
		if a.UserID == userID {
			taken[occByID[a.OccurrenceID].At.UnixMilli()] = true
		}
	}

	var targets []int64
	var groupAt int64
	var best int64
	flush := func() {
		if best != 0 && !taken[groupAt] {
			targets = append(targets, best)
		}
	}
	for _, o := range occurrences {
		at := o.At.UnixMilli()
		if best == 0 || at != groupAt {
			flush()
			groupAt = at
			best = o.ID
			continue
		}
		if loads[o.ID] < loads[best] {
			best = o.ID
		}
	}
	flush()
	return targets
}

// Assign places a user into one slot of every timestamp group of a schedule.
// A placement count that does not match the targeted group count is a fatal
// internal error; the caller must roll back the transaction.
func (s *Service) Assign(ctx context.Context, tx store.DBTX, scheduleID, userID int64) error {
	repo := NewRepository(tx)
	sched, err := repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched == nil {
		return domain.NotFoundf("schedule %d", scheduleID)
	}

	occurrences, err := repo.ListOccurrences(ctx, scheduleID)
	if err != nil {
		return err
	}
	assignments, err := repo.ListAssignments(ctx, scheduleID)
	if err != nil {
		return err
	}

	targets := PlanPlacements(occurrences, assignments, userID)
	var inserted int64
	for _, occID := range targets {
		n, err := repo.InsertAssignment(ctx, occID, userID)
		if err != nil {
			return err
		}
		inserted += n
	}
	if inserted != int64(len(targets)) {
		return fmt.Errorf("%w: placed user %d in %d of %d timestamp groups of schedule %d",
			domain.ErrPartialAssignment, userID, inserted, len(targets), scheduleID)
	}
	metrics.AssignmentsCreated.Add(float64(inserted))
	return nil
}

// Unassign removes all of a user's slot assignments under a schedule.
// Unconditional: removing a user who holds nothing is not an error.
func (s *Service) Unassign(ctx context.Context, tx store.DBTX, scheduleID, userID int64) error {
	return NewRepository(tx).DeleteAssignmentsForUser(ctx, scheduleID, userID)
}

// Resync re-runs Assign for every registered user so that occurrences
// created by regeneration pick up existing signups. The first failing user
// aborts the whole resync.
func (s *Service) Resync(ctx context.Context, tx store.DBTX, scheduleID int64) error {
	users, err := NewRepository(tx).ListRegisteredUsers(ctx, scheduleID)
	if err != nil {
		return err
	}
	for _, userID := range users {
		if err := s.Assign(ctx, tx, scheduleID, userID); err != nil {
			return err
		}
	}
	return nil
}

// Register signs a user up for a schedule and places them into its slots.
// When the parent period configures a signup window, registration outside it
// is rejected.
func (s *Service) Register(ctx context.Context, tx store.DBTX, scheduleID, userID int64) error {
	repo := NewRepository(tx)
	sched, err := repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched == nil {
		return domain.NotFoundf("schedule %d", scheduleID)
	}
	period, err := repo.GetPeriod(ctx, sched.PeriodID)
	if err != nil {
		return err
	}
	if period == nil {
		return domain.NotFoundf("period %d", sched.PeriodID)
	}
	if err := checkWindow("signup", period.SignupStart, period.SignupEnd, s.now()); err != nil {
		return err
	}
	if err := repo.InsertRegistration(ctx, scheduleID, userID); err != nil {
		return err
	}
	return s.Assign(ctx, tx, scheduleID, userID)
}

// Unregister removes a user's signup and all of their slot assignments.
func (s *Service) Unregister(ctx context.Context, tx store.DBTX, scheduleID, userID int64) error {
	repo := NewRepository(tx)
	if err := repo.DeleteRegistration(ctx, scheduleID, userID); err != nil {
		return err
	}
	return s.Unassign(ctx, tx, scheduleID, userID)
}

func checkWindow(name string, start, end *time.Time, now time.Time) error {
	if start != nil && now.Before(*start) {
		return domain.Validationf("%s window has not opened", name)
	}
	if end != nil && !now.Before(*end) {
		return domain.Validationf("%s window has closed", name)
	}
	return nil
}
