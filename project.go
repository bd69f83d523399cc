package scheduler

import (
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// ParamsNewProject configures the top-level SchedulerContext: all
// scheduling state lives on this struct and the Project it builds —
// nothing is package-level or global.
type ParamsNewProject struct {
	Grid                *Grid `valid:"required"`
	DefaultDirection    Direction
	MaxRoundsMultiplier int
}

func (p ParamsNewProject) IsValid() error {
	if p.Grid == nil {
		return fmt.Errorf("grid is required")
	}

	_, errValidation := govalidator.ValidateStruct(p)

	return errValidation
}

// Project is the fully-wired scheduling context: grid, resources, tasks,
// and the dependency graph linking them. Schedule() runs the Fixed-Point
// Driver to convergence and returns a Schedule snapshot.
type Project struct {
	Grid                *Grid
	DefaultDirection    Direction
	MaxRoundsMultiplier int

	Resources map[int64]*Resource
	Tasks     map[int64]*Task
	Graph     *DependencyGraph

	declarationCounter int
}

func NewProject(params ParamsNewProject) (*Project, error) {
	if errValid := params.IsValid(); errValid != nil {
		return nil, errInvalidModel("NewProject", errValid)
	}

	multiplier := params.MaxRoundsMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	return &Project{
		Grid:                params.Grid,
		DefaultDirection:    params.DefaultDirection,
		MaxRoundsMultiplier: multiplier,
		Resources:           make(map[int64]*Resource),
		Tasks:               make(map[int64]*Task),
		Graph:               NewDependencyGraph(),
	}, nil
}

func (p *Project) AddResource(r *Resource) error {
	if _, exists := p.Resources[r.ID]; exists {
		return errInvalidModel("Project.AddResource", fmt.Errorf("resource %d already added", r.ID))
	}

	p.Resources[r.ID] = r

	return nil
}

func (p *Project) AddTask(t *Task) error {
	if _, exists := p.Tasks[t.ID]; exists {
		return errInvalidModel("Project.AddTask", fmt.Errorf("task %d already added", t.ID))
	}

	p.declarationCounter++
	t.declarationOrder = p.declarationCounter

	p.Tasks[t.ID] = t
	p.Graph.AddNode(t.ID)

	if t.ParentID != 0 {
		if parent, ok := p.Tasks[t.ParentID]; ok {
			parent.Children = append(parent.Children, t.ID)
		}
	}

	for _, edge := range t.Dependencies {
		p.Graph.AddEdge(t.ID, edge)
	}

	return nil
}

// Schedule runs the Fixed-Point Driver to convergence (or to the round
// cap / a hard failure) and returns a time.Time-facing snapshot of every
// task's placement and bookings, containers included.
func (p *Project) Schedule() (*Schedule, error) {
	if errRun := p.runFixedPoint(); errRun != nil {
		return nil, errRun
	}

	out := &Schedule{Tasks: make(map[int64]TaskResult, len(p.Tasks))}

	for id, t := range p.Tasks {
		result, errResult := p.taskResult(t)
		if errResult != nil {
			return nil, errResult
		}

		out.Tasks[id] = result
	}

	return out, nil
}

func (p *Project) taskResult(t *Task) (TaskResult, error) {
	result := TaskResult{
		TaskID:    t.ID,
		StartSlot: t.ScheduledStart,
		EndSlot:   t.ScheduledEnd,
		State:     t.State,
		Bookings:  t.Bookings,
	}

	if t.ScheduledStart == NoSlot || t.ScheduledEnd == NoSlot {
		return result, nil
	}

	start, errStart := p.Grid.Instant(t.ScheduledStart, true)
	if errStart != nil {
		return result, errStart
	}

	end, errEnd := p.Grid.Instant(t.ScheduledEnd, true)
	if errEnd != nil {
		return result, errEnd
	}

	if t.EndReleaseSeconds != 0 {
		end = end.Add(-time.Duration(t.EndReleaseSeconds) * time.Second)
	}

	result.Start = start
	result.End = end

	return result, nil
}

// Schedule is the immutable snapshot Project.Schedule() returns: one
// TaskResult per declared task, keyed by task ID.
type Schedule struct {
	Tasks map[int64]TaskResult
}

type TaskResult struct {
	TaskID    int64
	State     TaskState
	Start     time.Time
	End       time.Time
	StartSlot Slot
	EndSlot   Slot
	Bookings  map[int64][]SlotRange
}
