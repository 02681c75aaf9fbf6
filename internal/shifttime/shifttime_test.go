package shifttime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hums/internal/domain"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"10:00", Clock{10, 0, 0}, true},
		{"9:30", Clock{9, 30, 0}, true},
		{"23:59:59", Clock{23, 59, 59}, true},
		{"00:00", Clock{0, 0, 0}, true},
		{"24:00", Clock{}, false},
		{"10:60", Clock{}, false},
		{"10", Clock{}, false},
		{"10:00:00:00", Clock{}, false},
		{"", Clock{}, false},
		{"ten o'clock", Clock{}, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if !tc.ok {
			require.Error(t, err, tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestWindow(t *testing.T) {
	start, err := ParseClock("10:00")
	require.NoError(t, err)
	end, err := ParseClock("11:30")
	require.NoError(t, err)

	at := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	from, to := Window(at, start, end)
	assert.Equal(t, at, from)
	assert.Equal(t, at.Add(90*time.Minute), to)
}

func TestOnDayUsesUTCDate(t *testing.T) {
	c := Clock{Hour: 10}
	day := time.Date(2024, 9, 2, 23, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC), c.OnDay(day))
}

func TestGracePredicates(t *testing.T) {
	g := Grace{LateAfter: 5 * time.Minute, EarlyBefore: 5 * time.Minute}
	start := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2024, 9, 2, 11, 0, 0, 0, time.UTC)

	assert.False(t, g.IsArrivalLate(start, start))
	assert.False(t, g.IsArrivalLate(start, start.Add(5*time.Minute)))
	assert.True(t, g.IsArrivalLate(start, start.Add(5*time.Minute+time.Second)))

	assert.False(t, g.IsDepartureEarly(end, end))
	assert.False(t, g.IsDepartureEarly(end, end.Add(-5*time.Minute)))
	assert.True(t, g.IsDepartureEarly(end, end.Add(-5*time.Minute-time.Second)))
}
