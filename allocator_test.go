package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildAllocatorProject(t *testing.T) (*Project, *Grid, time.Time) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 1),
	})
	require.NoError(t, errGrid)

	project, errProject := NewProject(ParamsNewProject{Grid: g})
	require.NoError(t, errProject)

	return project, g, start
}

func TestTryPlacePreemptionCollectsLowerPriorityEvictions(t *testing.T) {
	project, g, _ := buildAllocatorProject(t)

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: mondayToFridayNineToFive()})
	require.NoError(t, errCal)

	resource, errResource := NewResource(ParamsNewResource{ID: 1, Name: "alice", Leaf: true, Calendar: cal})
	require.NoError(t, errResource)
	require.NoError(t, project.AddResource(resource))

	low, errLow := NewTask(ParamsNewTask{ID: 1, Name: "low", Priority: 1, Demand: Demand{Kind: DemandEffort, Amount: 8}, Contiguous: true})
	require.NoError(t, errLow)
	require.NoError(t, project.AddTask(low))

	require.NoError(t, resource.Scoreboard.Book(9, 17, low.ID))
	low.markPlaced(9, 17)
	low.Bookings[resource.ID] = []SlotRange{{Start: 9, End: 17}}

	high, errHigh := NewTask(ParamsNewTask{ID: 2, Name: "high", Priority: 100, Demand: Demand{Kind: DemandEffort, Amount: 8}, Contiguous: true})
	require.NoError(t, errHigh)
	require.NoError(t, project.AddTask(high))

	bounds, errBounds := project.ComputeBounds(high)
	require.NoError(t, errBounds)

	t.Run(
		"1. no-preemption pass refuses a fully booked resource",
		func(t *testing.T) {
			result := project.tryPlace(high, []*Resource{resource}, bounds, false)
			require.False(t, result.ok)
		},
	)

	var winner candidateResult

	t.Run(
		"2. the preemption pass finds the booked run and records the eviction",
		func(t *testing.T) {
			winner = project.tryPlace(high, []*Resource{resource}, bounds, true)
			require.True(t, winner.ok)
			require.ElementsMatch(t, []int64{low.ID}, winner.evictions)
		},
	)

	t.Run(
		"3. committing the winner frees the evicted task and requeues it",
		func(t *testing.T) {
			project.commit(high, winner)

			require.Equal(t, TaskPlaced, high.State)
			require.Equal(t, TaskReady, low.State)
			require.Equal(t, NoSlot, low.ScheduledStart)
			require.Equal(t, SlotBooked, resource.Scoreboard.Get(9).State)
			require.EqualValues(t, high.ID, resource.Scoreboard.Get(9).TaskID)
		},
	)
}

func TestPlaceEffortOrLengthFallsBackToAlternative(t *testing.T) {
	project, g, _ := buildAllocatorProject(t)

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: mondayToFridayNineToFive()})
	require.NoError(t, errCal)

	primary, errPrimary := NewResource(ParamsNewResource{ID: 1, Name: "alice", Leaf: true, Calendar: cal})
	require.NoError(t, errPrimary)
	require.NoError(t, project.AddResource(primary))

	backup, errBackup := NewResource(ParamsNewResource{ID: 2, Name: "bob", Leaf: true, Calendar: cal})
	require.NoError(t, errBackup)
	require.NoError(t, project.AddResource(backup))

	require.NoError(t, primary.Scoreboard.Book(9, 17, 999))

	task, errTask := NewTask(ParamsNewTask{
		ID:          1,
		Name:        "needs a desk",
		Demand:      Demand{Kind: DemandEffort, Amount: 8},
		Contiguous:  true,
		Allocations: []AllocationGroup{{Resources: []int64{1}, Alternatives: []int64{2}}},
	})
	require.NoError(t, errTask)
	require.NoError(t, project.AddTask(task))

	bounds, errBounds := project.ComputeBounds(task)
	require.NoError(t, errBounds)

	require.NoError(t, project.placeEffortOrLength(task, bounds))
	require.Equal(t, TaskPlaced, task.State)
	require.Contains(t, task.Bookings, backup.ID)
	require.NotContains(t, task.Bookings, primary.ID)
}

func TestTryPlaceScalesEffortDemandByResourceEfficiencyAndReleasesExactTail(t *testing.T) {
	project, g, _ := buildAllocatorProject(t)

	var fullDay WeeklyTemplate
	for day := 0; day < 7; day++ {
		fullDay[day] = []Interval{{StartMin: 0, EndMin: 24 * 60}}
	}

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: fullDay})
	require.NoError(t, errCal)

	trainee, errTrainee := NewResource(ParamsNewResource{
		ID:         1,
		Name:       "trainee",
		Leaf:       true,
		Calendar:   cal,
		Efficiency: NewRational(2, 3),
	})
	require.NoError(t, errTrainee)
	require.NoError(t, project.AddResource(trainee))

	task, errTask := NewTask(ParamsNewTask{
		ID:          1,
		Name:        "onboarding",
		Demand:      Demand{Kind: DemandEffort, Amount: 9},
		Contiguous:  true,
		Allocations: []AllocationGroup{{Resources: []int64{1}}},
	})
	require.NoError(t, errTask)
	require.NoError(t, project.AddTask(task))

	bounds, errBounds := project.ComputeBounds(task)
	require.NoError(t, errBounds)

	require.NoError(t, project.placeEffortOrLength(task, bounds))

	var bookedSlots int64
	for _, rng := range task.Bookings[trainee.ID] {
		bookedSlots += rng.Len()
	}

	// ceil(9 * 3 / 2) = 14 slots, not the raw 9: a resource at 2/3
	// efficiency needs more calendar time than the effort amount itself.
	require.EqualValues(t, 14, bookedSlots)

	// surplus = 14*2 - 9*3 = 1 slot-numerator worth of unused tail,
	// released as 1*3600/2 = 1800 seconds.
	require.EqualValues(t, 1800, task.EndReleaseSeconds)
	require.EqualValues(t, 14, task.ScheduledEnd-task.ScheduledStart)
}

func TestPlaceEffortOrLengthReturnsOverCapacityWhenNoRunFitsContiguously(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 7),
	})
	require.NoError(t, errGrid)

	project, errProject := NewProject(ParamsNewProject{Grid: g})
	require.NoError(t, errProject)

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: mondayToFridayNineToFive()})
	require.NoError(t, errCal)

	resource, errResource := NewResource(ParamsNewResource{ID: 1, Name: "alice", Leaf: true, Calendar: cal})
	require.NoError(t, errResource)
	require.NoError(t, project.AddResource(resource))

	// Each working day holds only 8 free slots (09:00-17:00); a contiguous
	// 10-slot demand can never fit inside a single day's run and the task
	// may not straddle the off-duty gap between days.
	task, errTask := NewTask(ParamsNewTask{
		ID:          1,
		Name:        "too long for one shift",
		Demand:      Demand{Kind: DemandEffort, Amount: 10},
		Contiguous:  true,
		Allocations: []AllocationGroup{{Resources: []int64{1}}},
	})
	require.NoError(t, errTask)
	require.NoError(t, project.AddTask(task))

	_, errSchedule := project.Schedule()
	require.Error(t, errSchedule)

	var schedErr *SchedulingError
	require.ErrorAs(t, errSchedule, &schedErr)
	require.Equal(t, ErrKindOverCapacity, schedErr.Kind)
}

func TestPlaceEffortOrLengthReturnsLimitExceededWhenDailyCapBlocksEveryCandidate(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) // Monday

	g, errGrid := NewGrid(ParamsNewGrid{
		ResolutionSeconds: 3600,
		ProjectStart:      start,
		ProjectEnd:        start.AddDate(0, 0, 1),
	})
	require.NoError(t, errGrid)

	project, errProject := NewProject(ParamsNewProject{Grid: g})
	require.NoError(t, errProject)

	var fullDay WeeklyTemplate
	fullDay[1] = []Interval{{StartMin: 9 * 60, EndMin: 17 * 60}}

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: fullDay})
	require.NoError(t, errCal)

	resource, errResource := NewResource(ParamsNewResource{ID: 1, Name: "alice", Leaf: true, Calendar: cal})
	require.NoError(t, errResource)
	resource.Limits.Add(NewLimit(LimitDailyMax, 2, g))
	require.NoError(t, project.AddResource(resource))

	minStart := Slot(9)
	maxEnd := Slot(16)

	// Scattered (non-contiguous) effort demand of 4, anchored to the same
	// single day as the 2-slot daily cap, so no candidate slot sequence
	// can ever collect enough slots without exceeding the limit.
	task, errTask := NewTask(ParamsNewTask{
		ID:          1,
		Name:        "capped",
		Demand:      Demand{Kind: DemandEffort, Amount: 4},
		Allocations: []AllocationGroup{{Resources: []int64{1}}},
		Anchors:     Anchors{MinStart: &minStart, MaxEnd: &maxEnd},
	})
	require.NoError(t, errTask)
	require.NoError(t, project.AddTask(task))

	_, errSchedule := project.Schedule()
	require.Error(t, errSchedule)

	var schedErr *SchedulingError
	require.ErrorAs(t, errSchedule, &schedErr)
	require.Equal(t, ErrKindLimitExceeded, schedErr.Kind)
}

func TestContainerLimitAggregationBlocksDescendantBooking(t *testing.T) {
	project, g, _ := buildAllocatorProject(t)

	department, errDepartment := NewResource(ParamsNewResource{ID: 10, Name: "dept", Leaf: false})
	require.NoError(t, errDepartment)
	department.Limits.Add(NewLimit(LimitDailyMax, 4, g))
	require.NoError(t, project.AddResource(department))

	cal, errCal := NewCalendar(ParamsNewCalendar{Grid: g, Template: mondayToFridayNineToFive()})
	require.NoError(t, errCal)

	alice, errAlice := NewResource(ParamsNewResource{ID: 1, Name: "alice", Leaf: true, ParentID: 10, Calendar: cal})
	require.NoError(t, errAlice)
	require.NoError(t, project.AddResource(alice))

	slot := Slot(9)

	require.True(t, project.limitsOkIncludingAncestors(alice, slot))

	for i := 0; i < 4; i++ {
		project.incLimitsIncludingAncestors(alice, slot)
	}

	require.False(t, project.limitsOkIncludingAncestors(alice, slot))

	project.decLimitsIncludingAncestors(alice, slot)
	require.True(t, project.limitsOkIncludingAncestors(alice, slot))
}
