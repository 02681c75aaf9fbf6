package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPlacements(t *testing.T) {
	at1 := utc(2024, time.September, 2, 9, 0)
	at2 := utc(2024, time.September, 9, 9, 0)
	twoSlots := []Occurrence{
		{ID: 10, Slot: 0, At: at1},
		{ID: 11, Slot: 1, At: at1},
		{ID: 20, Slot: 0, At: at2},
		{ID: 21, Slot: 1, At: at2},
	}

	t.Run("one placement per timestamp group", func(t *testing.T) {
		targets := PlanPlacements(twoSlots, nil, 7)
		assert.Equal(t, []int64{10, 20}, targets)
	})

	t.Run("least loaded slot wins", func(t *testing.T) {
		assignments := []Assignment{
			{OccurrenceID: 10, UserID: 1},
			{OccurrenceID: 10, UserID: 2},
			{OccurrenceID: 11, UserID: 3},
		}
		targets := PlanPlacements(twoSlots[:2], assignments, 7)
		assert.Equal(t, []int64{11}, targets)
	})

	t.Run("groups the user already holds are skipped", func(t *testing.T) {
		assignments := []Assignment{{OccurrenceID: 11, UserID: 7}}
		targets := PlanPlacements(twoSlots, assignments, 7)
		assert.Equal(t, []int64{20}, targets)
	})

	t.Run("fully assigned user plans nothing", func(t *testing.T) {
		assignments := []Assignment{
			{OccurrenceID: 10, UserID: 7},
			{OccurrenceID: 21, UserID: 7},
		}
		assert.Empty(t, PlanPlacements(twoSlots, assignments, 7))
	})

	t.Run("sequential signups spread evenly", func(t *testing.T) {
		var assignments []Assignment
		for userID := int64(1); userID <= 4; userID++ {
			targets := PlanPlacements(twoSlots[:2], assignments, userID)
			require.Len(t, targets, 1)
			assignments = append(assignments, Assignment{OccurrenceID: targets[0], UserID: userID})
		}
		loads := map[int64]int{}
		for _, a := range assignments {
			loads[a.OccurrenceID]++
		}
		assert.Equal(t, 2, loads[10])
		assert.Equal(t, 2, loads[11])
	})

	t.Run("no occurrences", func(t *testing.T) {
		assert.Empty(t, PlanPlacements(nil, nil, 7))
	})
}
