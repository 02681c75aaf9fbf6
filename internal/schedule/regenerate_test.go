package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysAt(slots int, ts ...time.Time) []OccurrenceKey {
	var out []OccurrenceKey
	for _, t := range ts {
		for s := 0; s < slots; s++ {
			out = append(out, OccurrenceKey{At: t, Slot: s})
		}
	}
	return out
}

func TestPlanReconciliation(t *testing.T) {
	now := utc(2024, time.September, 15, 0, 0)
	past := utc(2024, time.September, 2, 9, 0)
	future := utc(2024, time.September, 23, 9, 0)

	t.Run("empty store inserts everything", func(t *testing.T) {
		want := keysAt(2, past, future)
		inserts, deletes := PlanReconciliation(want, nil, false, now)
		assert.Len(t, inserts, 4)
		assert.Empty(t, deletes)
	})

	t.Run("matching store is a no-op", func(t *testing.T) {
		want := keysAt(1, past, future)
		existing := []Occurrence{
			{ID: 1, Slot: 0, At: past},
			{ID: 2, Slot: 0, At: future},
		}
		inserts, deletes := PlanReconciliation(want, existing, false, now)
		assert.Empty(t, inserts)
		assert.Empty(t, deletes)
	})

	t.Run("stale rows are deleted", func(t *testing.T) {
		existing := []Occurrence{
			{ID: 1, Slot: 0, At: past},
			{ID: 2, Slot: 1, At: past},
		}
		inserts, deletes := PlanReconciliation(keysAt(1, past), existing, false, now)
		assert.Empty(t, inserts)
		assert.Equal(t, []int64{2}, deletes)
	})

	t.Run("skipPast leaves past rows alone", func(t *testing.T) {
		// The past row is stale, but skipPast shields it; only the
		// missing future row is inserted.
		existing := []Occurrence{{ID: 1, Slot: 0, At: past}}
		inserts, deletes := PlanReconciliation(keysAt(1, future), existing, true, now)
		require.Len(t, inserts, 1)
		assert.Equal(t, future, inserts[0].At)
		assert.Empty(t, deletes)
	})

	t.Run("skipPast does not resurrect suppressed past instants", func(t *testing.T) {
		// Should-exist includes a past instant with no row; skipPast
		// must not recreate it.
		inserts, deletes := PlanReconciliation(keysAt(1, past, future), nil, true, now)
		require.Len(t, inserts, 1)
		assert.Equal(t, future, inserts[0].At)
		assert.Empty(t, deletes)
	})

	t.Run("planning twice over the applied plan is stable", func(t *testing.T) {
		want := keysAt(2, past, future)
		inserts, _ := PlanReconciliation(want, nil, false, now)
		var existing []Occurrence
		for i, k := range inserts {
			existing = append(existing, Occurrence{ID: int64(i + 1), Slot: k.Slot, At: k.At})
		}
		inserts2, deletes2 := PlanReconciliation(want, existing, false, now)
		assert.Empty(t, inserts2)
		assert.Empty(t, deletes2)
	})
}
