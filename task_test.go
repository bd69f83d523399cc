package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTaskValidation(t *testing.T) {
	t.Run(
		"1. a missing name is rejected",
		func(t *testing.T) {
			_, errTask := NewTask(ParamsNewTask{ID: 1})
			require.Error(t, errTask)
		},
	)

	t.Run(
		"2. a negative demand amount is rejected",
		func(t *testing.T) {
			_, errTask := NewTask(ParamsNewTask{ID: 1, Name: "x", Demand: Demand{Amount: -1}})
			require.Error(t, errTask)
		},
	)

	t.Run(
		"3. a well-formed task starts Unscheduled with no slots assigned",
		func(t *testing.T) {
			task, errTask := NewTask(ParamsNewTask{ID: 1, Name: "x"})
			require.NoError(t, errTask)
			require.Equal(t, TaskUnscheduled, task.State)
			require.Equal(t, NoSlot, task.ScheduledStart)
			require.Equal(t, NoSlot, task.ScheduledEnd)
		},
	)
}

func TestTaskIsContainer(t *testing.T) {
	task, errTask := NewTask(ParamsNewTask{ID: 1, Name: "phase"})
	require.NoError(t, errTask)

	require.False(t, task.IsContainer())

	task.Children = append(task.Children, 2)
	require.True(t, task.IsContainer())
}

func TestTaskIsMilestone(t *testing.T) {
	t.Run(
		"1. zero demand and no children is a milestone",
		func(t *testing.T) {
			task, _ := NewTask(ParamsNewTask{ID: 1, Name: "kickoff"})
			require.True(t, task.IsMilestone())
		},
	)

	t.Run(
		"2. any positive demand is not a milestone",
		func(t *testing.T) {
			task, _ := NewTask(ParamsNewTask{ID: 1, Name: "work", Demand: Demand{Kind: DemandEffort, Amount: 1}})
			require.False(t, task.IsMilestone())
		},
	)

	t.Run(
		"3. a zero-demand container is not a milestone",
		func(t *testing.T) {
			task, _ := NewTask(ParamsNewTask{ID: 1, Name: "phase"})
			task.Children = append(task.Children, 2)
			require.False(t, task.IsMilestone())
		},
	)
}
