package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailyLimit(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 3),
	})
	require.NoError(t, errGrid)

	limit := NewLimit(LimitDailyMax, 4, g)

	t.Run(
		"1. under the cap is ok",
		func(t *testing.T) {
			for i := Slot(0); i < 3; i++ {
				require.True(t, limit.Ok(i))
				limit.Inc(i)
			}
		},
	)

	t.Run(
		"2. reaching the cap blocks further bookings that day",
		func(t *testing.T) {
			limit.Inc(3)
			require.False(t, limit.Ok(4))
		},
	)

	t.Run(
		"3. the next calendar day has its own counter",
		func(t *testing.T) {
			nextDay, _ := g.Index(start.AddDate(0, 0, 1).Add(time.Hour), false)
			require.True(t, limit.Ok(nextDay))
		},
	)

	t.Run(
		"4. reset clears every bucket",
		func(t *testing.T) {
			limit.Reset()
			require.True(t, limit.Ok(3))
		},
	)
}

func TestWeeklyLimitIsISOAligned(t *testing.T) {
	// Thursday, so the ISO week containing project start ends three days
	// later on Sunday; a slot the following Monday must be a fresh bucket.
	start := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 10),
	})
	require.NoError(t, errGrid)

	limit := NewLimit(LimitWeeklyMax, 2, g)

	thursdaySlot, _ := g.Index(start, false)
	mondaySlot, _ := g.Index(start.AddDate(0, 0, 4), false) // following Monday

	limit.Inc(thursdaySlot)
	limit.Inc(thursdaySlot)

	require.False(t, limit.Ok(thursdaySlot))
	require.True(t, limit.Ok(mondaySlot))
}

func TestLimitsCollection(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 2),
	})
	require.NoError(t, errGrid)

	limits := NewLimits()
	limits.Add(NewLimit(LimitDailyMax, 1, g))

	require.True(t, limits.Ok(0))
	limits.Inc(0)
	require.False(t, limits.Ok(0))

	limits.Dec(0)
	require.True(t, limits.Ok(0))
}
