package schedule

import (
	"context"
	"time"

	"hums/internal/domain"
	"hums/internal/shifttime"
	"hums/internal/store"
)

// Service coordinates validation, persistence and occurrence regeneration
// for scheduling mutations. Every method takes the caller's transaction
// handle; the service never opens its own.
type Service struct {
	now func() time.Time
}

// NewService creates a service. A nil now falls back to time.Now.
func NewService(now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{now: now}
}

func validatePeriod(p Period) error {
	if !p.Start.Before(p.End) {
		return domain.Validationf("period start must precede end")
	}
	windows := []struct {
		name       string
		start, end *time.Time
	}{
		{"visible", p.VisibleStart, p.VisibleEnd},
		{"signup", p.SignupStart, p.SignupEnd},
		{"modify", p.ModifyStart, p.ModifyEnd},
	}
	for _, w := range windows {
		if w.start != nil && w.end != nil && !w.start.Before(*w.end) {
			return domain.Validationf("%s window start must precede end", w.name)
		}
		for _, t := range []*time.Time{w.start, w.end} {
			if t != nil && (t.Before(p.Start) || t.After(p.End)) {
				return domain.Validationf("%s window must fall within the period", w.name)
			}
		}
	}
	return nil
}

func validateSchedule(s ShiftSchedule) error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return domain.Validationf("day of week %d out of range", s.DayOfWeek)
	}
	if s.Slots < 1 {
		return domain.Validationf("slots must be at least 1")
	}
	start, err := shifttime.ParseClock(s.StartTime)
	if err != nil {
		return err
	}
	end, err := shifttime.ParseClock(s.EndTime)
	if err != nil {
		return err
	}
	// Overnight wraparound is not supported by the generator.
	if !start.Before(end) {
		return domain.Validationf("shift start time must precede end time")
	}
	return nil
}

// CreatePeriod validates and writes a new period. A fresh period has no
// schedules yet, so no regeneration is needed.
func (s *Service) CreatePeriod(ctx context.Context, tx store.DBTX, p Period) (Period, error) {
	if err := validatePeriod(p); err != nil {
		return Period{}, err
	}
	return NewRepository(tx).InsertPeriod(ctx, p)
}

// UpdatePeriod rewrites a period's bounds and regenerates its occurrences,
// since moving the range changes which recurrences exist.
func (s *Service) UpdatePeriod(ctx context.Context, tx store.DBTX, p Period) (Period, error) {
	if err := validatePeriod(p); err != nil {
		return Period{}, err
	}
	ok, err := NewRepository(tx).UpdatePeriod(ctx, p)
	if err != nil {
		return Period{}, err
	}
	if !ok {
		return Period{}, domain.NotFoundf("period %d", p.ID)
	}
	if _, err := s.Regenerate(ctx, tx, p.ID, RegenerateOptions{}); err != nil {
		return Period{}, err
	}
	return p, nil
}

// DeletePeriod removes a period and, via cascade, everything under it.
func (s *Service) DeletePeriod(ctx context.Context, tx store.DBTX, id int64) error {
	ok, err := NewRepository(tx).DeletePeriod(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("period %d", id)
	}
	return nil
}

func (s *Service) validateException(ctx context.Context, tx store.DBTX, e PeriodException) error {
	if !e.Start.Before(e.End) {
		return domain.Validationf("exception start must precede end")
	}
	period, err := NewRepository(tx).GetPeriod(ctx, e.PeriodID)
	if err != nil {
		return err
	}
	if period == nil {
		return domain.NotFoundf("period %d", e.PeriodID)
	}
	if e.Start.Before(period.Start) || e.End.After(period.End) {
		return domain.Validationf("exception must lie within the period")
	}
	return nil
}

// CreateException writes an exception and regenerates the parent period so
// newly suppressed recurrences disappear.
func (s *Service) CreateException(ctx context.Context, tx store.DBTX, e PeriodException) (PeriodException, error) {
	if err := s.validateException(ctx, tx, e); err != nil {
		return PeriodException{}, err
	}
	created, err := NewRepository(tx).InsertException(ctx, e)
	if err != nil {
		return PeriodException{}, err
	}
	if _, err := s.Regenerate(ctx, tx, e.PeriodID, RegenerateOptions{}); err != nil {
		return PeriodException{}, err
	}
	return created, nil
}

// UpdateException rewrites an exception and regenerates with SkipPast, so a
// shrunk window cannot resurrect occurrences it used to suppress.
func (s *Service) UpdateException(ctx context.Context, tx store.DBTX, e PeriodException) (PeriodException, error) {
	repo := NewRepository(tx)
	existing, err := repo.GetException(ctx, e.ID)
	if err != nil {
		return PeriodException{}, err
	}
	if existing == nil {
		return PeriodException{}, domain.NotFoundf("exception %d", e.ID)
	}
	e.PeriodID = existing.PeriodID
	if err := s.validateException(ctx, tx, e); err != nil {
		return PeriodException{}, err
	}
	if _, err := repo.UpdateException(ctx, e); err != nil {
		return PeriodException{}, err
	}
	if _, err := s.Regenerate(ctx, tx, e.PeriodID, RegenerateOptions{SkipPast: true}); err != nil {
		return PeriodException{}, err
	}
	return e, nil
}

// DeleteException removes an exception and regenerates with SkipPast.
func (s *Service) DeleteException(ctx context.Context, tx store.DBTX, id int64) error {
	repo := NewRepository(tx)
	existing, err := repo.GetException(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.NotFoundf("exception %d", id)
	}
	if _, err := repo.DeleteException(ctx, id); err != nil {
		return err
	}
	_, err = s.Regenerate(ctx, tx, existing.PeriodID, RegenerateOptions{SkipPast: true})
	return err
}

// CreateSchedule validates and writes a schedule, then regenerates the
// period to materialize its occurrences.
func (s *Service) CreateSchedule(ctx context.Context, tx store.DBTX, sched ShiftSchedule) (ShiftSchedule, error) {
	if err := validateSchedule(sched); err != nil {
		return ShiftSchedule{}, err
	}
	repo := NewRepository(tx)
	period, err := repo.GetPeriod(ctx, sched.PeriodID)
	if err != nil {
		return ShiftSchedule{}, err
	}
	if period == nil {
		return ShiftSchedule{}, domain.NotFoundf("period %d", sched.PeriodID)
	}
	if t, err := repo.GetShiftType(ctx, sched.ShiftTypeID); err != nil {
		return ShiftSchedule{}, err
	} else if t == nil {
		return ShiftSchedule{}, domain.NotFoundf("shift type %d", sched.ShiftTypeID)
	}
	created, err := repo.InsertSchedule(ctx, sched)
	if err != nil {
		return ShiftSchedule{}, err
	}
	if _, err := s.Regenerate(ctx, tx, sched.PeriodID, RegenerateOptions{}); err != nil {
		return ShiftSchedule{}, err
	}
	return created, nil
}

// UpdateSchedule rewrites a schedule and regenerates the period.
func (s *Service) UpdateSchedule(ctx context.Context, tx store.DBTX, sched ShiftSchedule) (ShiftSchedule, error) {
	if err := validateSchedule(sched); err != nil {
		return ShiftSchedule{}, err
	}
	repo := NewRepository(tx)
	existing, err := repo.GetSchedule(ctx, sched.ID)
	if err != nil {
		return ShiftSchedule{}, err
	}
	if existing == nil {
		return ShiftSchedule{}, domain.NotFoundf("schedule %d", sched.ID)
	}
	sched.PeriodID = existing.PeriodID
	if _, err := repo.UpdateSchedule(ctx, sched); err != nil {
		return ShiftSchedule{}, err
	}
	if _, err := s.Regenerate(ctx, tx, sched.PeriodID, RegenerateOptions{}); err != nil {
		return ShiftSchedule{}, err
	}
	return sched, nil
}

// DeleteSchedule removes a schedule; its occurrences cascade away, so only
// the remaining schedules need a resync pass.
func (s *Service) DeleteSchedule(ctx context.Context, tx store.DBTX, id int64) error {
	repo := NewRepository(tx)
	existing, err := repo.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.NotFoundf("schedule %d", id)
	}
	if _, err := repo.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	_, err = s.Regenerate(ctx, tx, existing.PeriodID, RegenerateOptions{})
	return err
}
