package schedule

import (
	"context"
	"time"

	"hums/internal/domain"
	"hums/internal/metrics"
	"hums/internal/store"
)

// RegenerateOptions tunes a regeneration run.
type RegenerateOptions struct {
	// SkipPast leaves occurrences whose timestamp has already passed
	// untouched: they are neither deleted nor recreated. Used when an
	// exception is deleted or shrunk, so regeneration cannot resurrect
	// attendance history the exception had previously suppressed.
	SkipPast bool
}

// RegenerateResult summarizes what a run changed.
type RegenerateResult struct {
	Inserted int
	Deleted  int
}

// OccurrenceKey identifies one slot at one instant within a schedule.
type OccurrenceKey struct {
	At   time.Time
	Slot int
}

type keyIndex struct {
	at   int64
	slot int
}

// PlanReconciliation diffs the should-exist set against persisted
// occurrences. With skipPast, both sides ignore instants before now, leaving
// past rows exactly as they are.
func PlanReconciliation(shouldExist []OccurrenceKey, existing []Occurrence, skipPast bool, now time.Time) (inserts []OccurrenceKey, deleteIDs []int64) {
	want := make(map[keyIndex]struct{}, len(shouldExist))
	for _, k := range shouldExist {
		if skipPast && k.At.Before(now) {
			continue
		}
		want[keyIndex{k.At.UnixMilli(), k.Slot}] = struct{}{}
	}

	have := make(map[keyIndex]struct{}, len(existing))
	for _, o := range existing {
		if skipPast && o.At.Before(now) {
			continue
		}
		k := keyIndex{o.At.UnixMilli(), o.Slot}
		have[k] = struct{}{}
		if _, ok := want[k]; !ok {
			deleteIDs = append(deleteIDs, o.ID)
		}
	}

	for _, k := range shouldExist {
		if skipPast && k.At.Before(now) {
			continue
		}
		if _, ok := have[keyIndex{k.At.UnixMilli(), k.Slot}]; !ok {
			inserts = append(inserts, k)
		}
	}
	return inserts, deleteIDs
}

// Regenerate recomputes the authoritative occurrence set for a period and
// reconciles it against the store, then resyncs every schedule's registered
// users. It must be called inside a single transaction: a partial run
// (occurrences written but assignments stale) is a correctness violation,
// so any error aborts the whole operation.
func (s *Service) Regenerate(ctx context.Context, tx store.DBTX, periodID int64, opts RegenerateOptions) (RegenerateResult, error) {
	timer := metrics.RegenerationTimer()
	defer timer.ObserveDuration()

	repo := NewRepository(tx)
	period, err := repo.GetPeriod(ctx, periodID)
	if err != nil {
		return RegenerateResult{}, err
	}
	if period == nil {
		return RegenerateResult{}, domain.NotFoundf("period %d", periodID)
	}

	exceptions, err := repo.ListExceptions(ctx, periodID)
	if err != nil {
		return RegenerateResult{}, err
	}
	schedules, err := repo.ListSchedules(ctx, periodID)
	if err != nil {
		return RegenerateResult{}, err
	}

	now := s.now()
	var result RegenerateResult
	for _, sched := range schedules {
		ts, err := GenerateTimestamps(*period, sched)
		if err != nil {
			return RegenerateResult{}, err
		}
		ts = FilterExceptions(ts, exceptions)

		shouldExist := make([]OccurrenceKey, 0, len(ts)*sched.Slots)
		for _, t := range ts {
			for slot := 0; slot < sched.Slots; slot++ {
				shouldExist = append(shouldExist, OccurrenceKey{At: t, Slot: slot})
			}
		}

		existing, err := repo.ListOccurrences(ctx, sched.ID)
		if err != nil {
			return RegenerateResult{}, err
		}

		inserts, deleteIDs := PlanReconciliation(shouldExist, existing, opts.SkipPast, now)
		for _, id := range deleteIDs {
			if err := repo.DeleteOccurrence(ctx, id); err != nil {
				return RegenerateResult{}, err
			}
		}
		for _, k := range inserts {
			if err := repo.InsertOccurrence(ctx, sched.ID, k.Slot, k.At); err != nil {
				return RegenerateResult{}, err
			}
		}
		result.Inserted += len(inserts)
		result.Deleted += len(deleteIDs)
	}

	// Newly created occurrences must pick up previously registered users.
	for _, sched := range schedules {
		if err := s.Resync(ctx, tx, sched.ID); err != nil {
			return RegenerateResult{}, err
		}
	}

	metrics.RegenerationRuns.Inc()
	metrics.OccurrencesInserted.Add(float64(result.Inserted))
	metrics.OccurrencesDeleted.Add(float64(result.Deleted))
	return result, nil
}
