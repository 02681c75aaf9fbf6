package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hums/internal/shifttime"
)

var testGrace = shifttime.Grace{LateAfter: 5 * time.Minute, EarlyBefore: 5 * time.Minute}

func shiftRecord(status Status) Record {
	return Record{
		OccurrenceID:   1,
		UserID:         7,
		Status:         status,
		ScheduledStart: time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC),
		ScheduledEnd:   time.Date(2024, time.September, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestApplyTapIn(t *testing.T) {
	t.Run("on-time arrival", func(t *testing.T) {
		rec := shiftRecord(StatusUpcoming)
		at := rec.ScheduledStart.Add(2 * time.Minute)
		require.True(t, applyTapIn(&rec, at, testGrace))
		assert.Equal(t, StatusPresent, rec.Status)
		require.NotNil(t, rec.TimeIn)
		assert.Equal(t, at, *rec.TimeIn)
		assert.False(t, rec.DidArriveLate)
	})

	t.Run("early arrival clamps to scheduled start and is not late", func(t *testing.T) {
		rec := shiftRecord(StatusUpcoming)
		require.True(t, applyTapIn(&rec, rec.ScheduledStart.Add(-30*time.Minute), testGrace))
		require.NotNil(t, rec.TimeIn)
		assert.Equal(t, rec.ScheduledStart, *rec.TimeIn)
		assert.False(t, rec.DidArriveLate)
	})

	t.Run("arrival past grace is flagged late", func(t *testing.T) {
		rec := shiftRecord(StatusUpcoming)
		require.True(t, applyTapIn(&rec, rec.ScheduledStart.Add(6*time.Minute), testGrace))
		assert.True(t, rec.DidArriveLate)
	})

	t.Run("first tap-in wins", func(t *testing.T) {
		rec := shiftRecord(StatusUpcoming)
		first := rec.ScheduledStart.Add(time.Minute)
		require.True(t, applyTapIn(&rec, first, testGrace))
		assert.False(t, applyTapIn(&rec, first.Add(time.Hour), testGrace))
		assert.Equal(t, first, *rec.TimeIn)
	})

	t.Run("dropped records ignore taps", func(t *testing.T) {
		for _, status := range []Status{StatusDropped, StatusDroppedMakeup} {
			rec := shiftRecord(status)
			assert.False(t, applyTapIn(&rec, rec.ScheduledStart, testGrace))
			assert.Equal(t, status, rec.Status)
			assert.Nil(t, rec.TimeIn)
		}
	})
}

func TestTapInFor(t *testing.T) {
	occ := AssignedOccurrence{
		OccurrenceID: 1,
		UserID:       7,
		Start:        time.Date(2024, time.September, 2, 10, 0, 0, 0, time.UTC),
		End:          time.Date(2024, time.September, 2, 12, 0, 0, 0, time.UTC),
	}

	t.Run("early arrival binds with timeIn clamped to the start", func(t *testing.T) {
		rec := tapInFor(occ, nil, occ.Start.Add(-30*time.Minute), testGrace)
		require.NotNil(t, rec)
		assert.Equal(t, StatusPresent, rec.Status)
		require.NotNil(t, rec.TimeIn)
		assert.Equal(t, occ.Start, *rec.TimeIn)
		assert.False(t, rec.DidArriveLate)
	})

	t.Run("arrival inside the window binds at the tap instant", func(t *testing.T) {
		at := occ.Start.Add(10 * time.Minute)
		rec := tapInFor(occ, nil, at, testGrace)
		require.NotNil(t, rec)
		require.NotNil(t, rec.TimeIn)
		assert.Equal(t, at, *rec.TimeIn)
	})

	t.Run("closed window does not bind", func(t *testing.T) {
		assert.Nil(t, tapInFor(occ, nil, occ.End, testGrace))
		assert.Nil(t, tapInFor(occ, nil, occ.End.Add(time.Minute), testGrace))
	})

	t.Run("existing record with tap data refuses rebinding", func(t *testing.T) {
		existing := shiftRecord(StatusPresent)
		in := occ.Start
		existing.TimeIn = &in
		assert.Nil(t, tapInFor(occ, &existing, occ.Start.Add(time.Minute), testGrace))
		assert.Equal(t, in, *existing.TimeIn)
	})

	t.Run("dropped record refuses the tap", func(t *testing.T) {
		existing := shiftRecord(StatusDropped)
		assert.Nil(t, tapInFor(occ, &existing, occ.Start, testGrace))
	})
}

func TestApplyTapOut(t *testing.T) {
	t.Run("normal departure", func(t *testing.T) {
		rec := shiftRecord(StatusPresent)
		at := rec.ScheduledEnd.Add(-2 * time.Minute)
		require.True(t, applyTapOut(&rec, at, testGrace))
		require.NotNil(t, rec.TimeOut)
		assert.Equal(t, at, *rec.TimeOut)
		assert.False(t, rec.DidLeaveEarly)
	})

	t.Run("late departure clamps to scheduled end", func(t *testing.T) {
		rec := shiftRecord(StatusPresent)
		require.True(t, applyTapOut(&rec, rec.ScheduledEnd.Add(time.Hour), testGrace))
		require.NotNil(t, rec.TimeOut)
		assert.Equal(t, rec.ScheduledEnd, *rec.TimeOut)
		assert.False(t, rec.DidLeaveEarly)
	})

	t.Run("departure before grace is flagged early", func(t *testing.T) {
		rec := shiftRecord(StatusPresent)
		require.True(t, applyTapOut(&rec, rec.ScheduledEnd.Add(-6*time.Minute), testGrace))
		assert.True(t, rec.DidLeaveEarly)
	})

	t.Run("first tap-out wins", func(t *testing.T) {
		rec := shiftRecord(StatusPresent)
		first := rec.ScheduledEnd.Add(-time.Hour)
		require.True(t, applyTapOut(&rec, first, testGrace))
		assert.False(t, applyTapOut(&rec, rec.ScheduledEnd, testGrace))
		assert.Equal(t, first, *rec.TimeOut)
	})

	t.Run("dropped records ignore taps", func(t *testing.T) {
		rec := shiftRecord(StatusDropped)
		assert.False(t, applyTapOut(&rec, rec.ScheduledEnd, testGrace))
		assert.Nil(t, rec.TimeOut)
	})
}
