package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hums/internal/attendance"
	"hums/internal/auth"
	"hums/internal/calendar"
	"hums/internal/config"
	"hums/internal/domain"
	"hums/internal/queue"
	"hums/internal/schedule"
	"hums/internal/session"
	"hums/internal/store"
	"hums/internal/tap"
	"hums/internal/user"
)

type server struct {
	cfg       config.App
	db        *store.DB
	queue     queue.Queue
	scheduler *schedule.Service
	att       *attendance.Service
	sessions  *session.Service
	taps      *tap.Service
}

// httpError maps domain errors onto transport status codes.
func httpError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func (s *server) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return store.WithTx(ctx, s.db.Client, fn)
}

type periodRequest struct {
	Name         string     `json:"name" binding:"required"`
	Start        time.Time  `json:"start" binding:"required"`
	End          time.Time  `json:"end" binding:"required"`
	VisibleStart *time.Time `json:"visible_start"`
	VisibleEnd   *time.Time `json:"visible_end"`
	SignupStart  *time.Time `json:"signup_start"`
	SignupEnd    *time.Time `json:"signup_end"`
	ModifyStart  *time.Time `json:"modify_start"`
	ModifyEnd    *time.Time `json:"modify_end"`
}

func (p periodRequest) model() schedule.Period {
	return schedule.Period{
		Name:         p.Name,
		Start:        p.Start,
		End:          p.End,
		VisibleStart: p.VisibleStart,
		VisibleEnd:   p.VisibleEnd,
		SignupStart:  p.SignupStart,
		SignupEnd:    p.SignupEnd,
		ModifyStart:  p.ModifyStart,
		ModifyEnd:    p.ModifyEnd,
	}
}

func (s *server) listPeriods(c *gin.Context) {
	periods, err := schedule.NewRepository(s.db.Client).ListPeriods(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (s *server) getPeriod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	period, err := schedule.NewRepository(s.db.Client).GetPeriod(c.Request.Context(), id)
	if err != nil {
		httpError(c, err)
		return
	}
	if period == nil {
		httpError(c, domain.NotFoundf("period %d", id))
		return
	}
	c.JSON(http.StatusOK, period)
}

func (s *server) createPeriod(c *gin.Context) {
	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var created schedule.Period
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		created, err = s.scheduler.CreatePeriod(c.Request.Context(), tx, req.model())
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *server) updatePeriod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req periodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := req.model()
	period.ID = id
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		period, err = s.scheduler.UpdatePeriod(c.Request.Context(), tx, period)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func (s *server) deletePeriod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		return s.scheduler.DeletePeriod(c.Request.Context(), tx, id)
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) regeneratePeriod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	skipPast := c.Query("skip_past") == "true"
	var result schedule.RegenerateResult
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		result, err = s.scheduler.Regenerate(c.Request.Context(), tx, id, schedule.RegenerateOptions{SkipPast: skipPast})
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inserted": result.Inserted, "deleted": result.Deleted})
}

type exceptionRequest struct {
	Name  string    `json:"name" binding:"required"`
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func (s *server) listExceptions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	exceptions, err := schedule.NewRepository(s.db.Client).ListExceptions(c.Request.Context(), id)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exceptions": exceptions})
}

func (s *server) createException(c *gin.Context) {
	periodID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req exceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exc := schedule.PeriodException{PeriodID: periodID, Name: req.Name, Start: req.Start, End: req.End}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		exc, err = s.scheduler.CreateException(c.Request.Context(), tx, exc)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exc)
}

func (s *server) updateException(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req exceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exc := schedule.PeriodException{ID: id, Name: req.Name, Start: req.Start, End: req.End}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		exc, err = s.scheduler.UpdateException(c.Request.Context(), tx, exc)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, exc)
}

func (s *server) deleteException(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		return s.scheduler.DeleteException(c.Request.Context(), tx, id)
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) listShiftTypes(c *gin.Context) {
	types, err := schedule.NewRepository(s.db.Client).ListShiftTypes(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shift_types": types})
}

func (s *server) createShiftType(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := schedule.NewRepository(s.db.Client).InsertShiftType(c.Request.Context(), schedule.ShiftType{
		Name: req.Name, Location: req.Location, Description: req.Description,
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *server) deleteShiftType(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	deleted, err := schedule.NewRepository(s.db.Client).DeleteShiftType(c.Request.Context(), id)
	if err != nil {
		httpError(c, err)
		return
	}
	if !deleted {
		httpError(c, domain.NotFoundf("shift type %d", id))
		return
	}
	c.Status(http.StatusNoContent)
}

type scheduleRequest struct {
	ShiftTypeID int64  `json:"shift_type_id" binding:"required"`
	DayOfWeek   *int   `json:"day_of_week" binding:"required"`
	StartTime   string `json:"start_time" binding:"required"`
	EndTime     string `json:"end_time" binding:"required"`
	Slots       int    `json:"slots" binding:"required"`
}

func (s *server) listSchedules(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	schedules, err := schedule.NewRepository(s.db.Client).ListSchedules(c.Request.Context(), id)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (s *server) createSchedule(c *gin.Context) {
	periodID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched := schedule.ShiftSchedule{
		PeriodID:    periodID,
		ShiftTypeID: req.ShiftTypeID,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Slots:       req.Slots,
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		sched, err = s.scheduler.CreateSchedule(c.Request.Context(), tx, sched)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

func (s *server) updateSchedule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched := schedule.ShiftSchedule{
		ID:          id,
		ShiftTypeID: req.ShiftTypeID,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Slots:       req.Slots,
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		sched, err = s.scheduler.UpdateSchedule(c.Request.Context(), tx, sched)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

func (s *server) deleteSchedule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		return s.scheduler.DeleteSchedule(c.Request.Context(), tx, id)
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) register(c *gin.Context) {
	scheduleID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		return s.scheduler.Register(c.Request.Context(), tx, scheduleID, req.UserID)
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *server) unregister(c *gin.Context) {
	scheduleID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userID")
	if !ok {
		return
	}
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		return s.scheduler.Unregister(c.Request.Context(), tx, scheduleID, userID)
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) listAttendance(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	periodID, err := strconv.ParseInt(c.Query("period_id"), 10, 64)
	if err != nil || periodID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id required"})
		return
	}
	records, err := attendance.NewRepository(s.db.Client).ListForUser(c.Request.Context(), userID, periodID)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *server) attendanceStats(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	periodID, err := strconv.ParseInt(c.Query("period_id"), 10, 64)
	if err != nil || periodID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id required"})
		return
	}
	records, err := attendance.NewRepository(s.db.Client).ListForUser(c.Request.Context(), userID, periodID)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, attendance.CalculateStats(records))
}

func (s *server) reviewQueue(c *gin.Context) {
	periodID, err := strconv.ParseInt(c.Query("period_id"), 10, 64)
	if err != nil || periodID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_id required"})
		return
	}
	records, err := attendance.NewRepository(s.db.Client).ListForPeriod(c.Request.Context(), periodID)
	if err != nil {
		httpError(c, err)
		return
	}
	type flagged struct {
		attendance.Record
		Issue attendance.Issue `json:"issue"`
	}
	var review []flagged
	for _, rec := range records {
		if attendance.NeedsAdminReview(rec) {
			review = append(review, flagged{Record: rec, Issue: attendance.CategorizeIssue(rec)})
		}
	}
	c.JSON(http.StatusOK, gin.H{"records": review})
}

func (s *server) excuseAttendance(c *gin.Context) {
	s.override(c, func(tx *sql.Tx, occurrenceID, userID int64) (attendance.Record, error) {
		return s.att.Excuse(c.Request.Context(), tx, occurrenceID, userID)
	})
}

func (s *server) dropAttendance(c *gin.Context) {
	var req struct {
		Makeup bool `json:"makeup"`
	}
	_ = c.ShouldBindJSON(&req)
	s.override(c, func(tx *sql.Tx, occurrenceID, userID int64) (attendance.Record, error) {
		return s.att.Drop(c.Request.Context(), tx, occurrenceID, userID, req.Makeup)
	})
}

func (s *server) reinstateAttendance(c *gin.Context) {
	s.override(c, func(tx *sql.Tx, occurrenceID, userID int64) (attendance.Record, error) {
		return s.att.Reinstate(c.Request.Context(), tx, occurrenceID, userID)
	})
}

func (s *server) override(c *gin.Context, fn func(tx *sql.Tx, occurrenceID, userID int64) (attendance.Record, error)) {
	occurrenceID, ok := idParam(c, "id")
	if !ok {
		return
	}
	userID, ok := idParam(c, "userID")
	if !ok {
		return
	}
	var rec attendance.Record
	err := s.withTx(c.Request.Context(), func(tx *sql.Tx) error {
		var err error
		rec, err = fn(tx, occurrenceID, userID)
		return err
	})
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) registerKiosk(c *gin.Context) {
	var req struct {
		KioskID string `json:"kiosk_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.taps.RegisterKiosk(c.Request.Context(), req.KioskID); err != nil {
		httpError(c, err)
		return
	}

	tokens, err := auth.Issue(req.KioskID, "kiosk", s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	_ = tap.NewRepository(s.db.Client).SaveRefreshToken(c.Request.Context(), req.KioskID, tokens.RefreshToken, tokens.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (s *server) postTap(c *gin.Context) {
	var req struct {
		UserID      int64  `json:"user_id" binding:"required"`
		KioskID     string `json:"kiosk_id" binding:"required"`
		Direction   string `json:"direction" binding:"required"`
		SessionType string `json:"session_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SessionType == "" {
		req.SessionType = string(session.TypeRegular)
	}

	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	if claims.Role == "kiosk" && claims.Subject != req.KioskID {
		c.JSON(http.StatusForbidden, gin.H{"error": "kiosk mismatch"})
		return
	}

	evt, err := s.taps.Record(c.Request.Context(), req.UserID, req.KioskID,
		tap.Direction(req.Direction), session.Type(req.SessionType))
	if err != nil {
		httpError(c, err)
		return
	}

	if err := s.queue.Publish(c.Request.Context(), queue.Message{Type: "tap", Body: []byte(evt.ID)}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"event_id": evt.ID, "occurred_at": evt.OccurredAt, "status": evt.Status})
}

func (s *server) listTaps(c *gin.Context) {
	kioskID := c.Query("kiosk_id")
	var userID int64
	if v := c.Query("user_id"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			userID = parsed
		}
	}
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	events, err := tap.NewRepository(s.db.Client).ListEvents(c.Request.Context(), kioskID, userID, limit, offset)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *server) openSession(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	open, err := s.sessions.Open(c.Request.Context(), s.db.Client, userID)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": open})
}

func (s *server) listUsers(c *gin.Context) {
	users, err := user.NewRepository(s.db.Client).List(c.Request.Context())
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *server) createUser(c *gin.Context) {
	var req struct {
		Name  string  `json:"name" binding:"required"`
		Email *string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := user.NewRepository(s.db.Client).Insert(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// mintCalendarToken issues a long-lived token for calendar subscription
// URLs; calendar clients cannot send Authorization headers.
func (s *server) mintCalendarToken(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	tokens, err := auth.Issue(strconv.FormatInt(userID, 10), "calendar",
		s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.RefreshTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokens.AccessToken})
}

func (s *server) calendarFeed(c *gin.Context) {
	userID, ok := idParam(c, "id")
	if !ok {
		return
	}
	claims, err := auth.Parse(c.Query("token"), s.cfg.JWTSigningKey, s.cfg.JWTIssuer)
	if err != nil || claims.Role != "calendar" || claims.Subject != strconv.FormatInt(userID, 10) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid feed token"})
		return
	}

	entries, err := calendar.NewRepository(s.db.Client).ListEntriesForUser(c.Request.Context(), userID)
	if err != nil {
		httpError(c, err)
		return
	}
	blocks := calendar.MergeConsecutive(entries)
	doc := calendar.RenderICS(blocks, s.cfg.CalendarName, userID, time.Now())
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(doc))
}
