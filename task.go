package scheduler

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

type Direction uint8

const (
	DirectionASAP Direction = iota
	DirectionALAP
)

// DemandKind distinguishes the three ways a task can size its own work,
// mirroring TaskJuggler's effort/duration/length split.
type DemandKind uint8

const (
	// DemandEffort is resource-work: Amount slots of work must be booked,
	// possibly spread non-contiguously across the resource's free runs.
	DemandEffort DemandKind = iota
	// DemandDuration is wall-clock: the task occupies Amount calendar
	// slots end to end regardless of whether resources are working.
	DemandDuration
	// DemandLength is working-calendar: the task occupies Amount slots
	// that must all be working slots for its primary resource, but need
	// not be booked effort (e.g. a milestone-adjacent placeholder).
	DemandLength
)

type Demand struct {
	Kind   DemandKind
	Amount int64
}

// AllocationGroup names a simultaneous resource need (Resources, all
// required together, e.g. a surgeon and an operating room at once) with
// optional Alternatives: each alternative is a single resource tried on its
// own in place of the whole primary set, and the allocator keeps whichever
// fitting candidate finishes earliest (ASAP) or starts latest (ALAP).
type AllocationGroup struct {
	Resources    []int64
	Alternatives []int64
}

type TaskState uint8

const (
	TaskUnscheduled TaskState = iota
	TaskReady
	TaskPlaced
	TaskFrozen
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskUnscheduled:
		return "Unscheduled"
	case TaskReady:
		return "Ready"
	case TaskPlaced:
		return "Placed"
	case TaskFrozen:
		return "Frozen"
	case TaskFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Anchors pin a task's placement window. Start sets the earliest start
// slot and pins a milestone to exactly that slot; End sets the last slot
// the task may occupy, replacing any tighter upper bound; MinStart/MaxEnd
// only tighten the lower/upper bound.
type Anchors struct {
	Start    *Slot
	End      *Slot
	MinStart *Slot
	MaxEnd   *Slot
}

type ParamsNewTask struct {
	ID           int64  `valid:"required"`
	Name         string `valid:"required"`
	ParentID     int64
	Direction    Direction
	Demand       Demand
	Allocations  []AllocationGroup
	Contiguous   bool
	Priority     int
	Anchors      Anchors
	Dependencies []DependencyEdge
	Attributes   map[string]float64
}

func (p ParamsNewTask) IsValid() error {
	if _, errValidation := govalidator.ValidateStruct(p); errValidation != nil {
		return errValidation
	}

	if p.Demand.Amount < 0 {
		return fmt.Errorf("task %d: demand amount must be non-negative, got %d", p.ID, p.Demand.Amount)
	}

	return nil
}

// Task is a single schedulable unit. Container tasks (with Children) are
// never placed directly: their window is derived from their children's
// placements by propagateBoundsToParents.
type Task struct {
	ID           int64
	Name         string
	ParentID     int64
	Children     []int64
	Direction    Direction
	Demand       Demand
	Allocations  []AllocationGroup
	Contiguous   bool
	Priority     int
	Anchors      Anchors
	Dependencies []DependencyEdge
	Attributes   map[string]float64

	State             TaskState
	ScheduledStart    Slot
	ScheduledEnd      Slot
	EndReleaseSeconds int64
	Bookings          map[int64][]SlotRange

	replacementCount int
	declarationOrder int
}

func NewTask(params ParamsNewTask) (*Task, error) {
	if errValid := params.IsValid(); errValid != nil {
		return nil, errInvalidModel("NewTask", errValid)
	}

	return &Task{
		ID:             params.ID,
		Name:           params.Name,
		ParentID:       params.ParentID,
		Direction:      params.Direction,
		Demand:         params.Demand,
		Allocations:    params.Allocations,
		Contiguous:     params.Contiguous,
		Priority:       params.Priority,
		Anchors:        params.Anchors,
		Dependencies:   params.Dependencies,
		Attributes:     params.Attributes,
		State:          TaskUnscheduled,
		ScheduledStart: NoSlot,
		ScheduledEnd:   NoSlot,
		Bookings:       make(map[int64][]SlotRange),
	}, nil
}

func (t *Task) IsContainer() bool {
	return len(t.Children) > 0
}

// IsMilestone: a task with no demand and no children occupies a single
// slot rather than being searched for a run.
func (t *Task) IsMilestone() bool {
	return t.Demand.Amount == 0 && !t.IsContainer()
}
