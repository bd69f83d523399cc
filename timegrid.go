package scheduler

import (
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// Slot is an integer index into the project time grid. All scheduling
// arithmetic in this module happens in Slot space; time.Time only appears
// at the grid's two edges (ParamsNewGrid and Grid.Instant).
type Slot int64

// NoSlot marks "no such slot" with a sentinel rather than a nil pointer,
// avoiding a pointer indirection on every scoreboard scan.
const NoSlot Slot = -1

// ParamsNewGrid configures the project-wide time grid: a fixed resolution
// and a half-open [ProjectStart, ProjectEnd) wall-clock window.
type ParamsNewGrid struct {
	ResolutionSeconds int64     `valid:"required"`
	ProjectStart      time.Time `valid:"required"`
	ProjectEnd        time.Time `valid:"required"`
}

func (p ParamsNewGrid) IsValid() error {
	if _, errValidation := govalidator.ValidateStruct(p); errValidation != nil {
		return errValidation
	}

	if p.ResolutionSeconds <= 0 {
		return fmt.Errorf("resolution seconds must be positive, got %d", p.ResolutionSeconds)
	}

	if !p.ProjectEnd.After(p.ProjectStart) {
		return fmt.Errorf("project end %s must be after project start %s", p.ProjectEnd, p.ProjectStart)
	}

	return nil
}

// Grid converts between wall-clock time.Time instants and integer slot
// indices. It is immutable once built: every Calendar and Scoreboard in a
// Project shares one Grid so slot arithmetic stays comparable across
// resources.
type Grid struct {
	ResolutionSeconds int64
	ProjectStart      time.Time
	ProjectEnd        time.Time
	Size              int64
}

func NewGrid(params ParamsNewGrid) (*Grid, error) {
	if errValid := params.IsValid(); errValid != nil {
		return nil, errInvalidTime("NewGrid", errValid)
	}

	span := int64(params.ProjectEnd.Sub(params.ProjectStart).Seconds())

	size := span / params.ResolutionSeconds
	if span%params.ResolutionSeconds != 0 {
		size++
	}

	size++

	return &Grid{
		ResolutionSeconds: params.ResolutionSeconds,
		ProjectStart:      params.ProjectStart,
		ProjectEnd:        params.ProjectEnd,
		Size:              size,
	}, nil
}

// Index maps a wall-clock instant to the slot it falls into. When clamp is
// false, an instant outside [ProjectStart, ProjectEnd) is reported as an
// InvalidTime error rather than silently truncated.
func (g *Grid) Index(t time.Time, clamp bool) (Slot, error) {
	if t.Before(g.ProjectStart) {
		if clamp {
			return 0, nil
		}

		return NoSlot, errInvalidTime("Grid.Index", fmt.Errorf("%s precedes project start %s", t, g.ProjectStart))
	}

	if !t.Before(g.ProjectEnd) {
		if clamp {
			return Slot(g.Size - 1), nil
		}

		return NoSlot, errInvalidTime("Grid.Index", fmt.Errorf("%s is at or after project end %s", t, g.ProjectEnd))
	}

	seconds := t.Sub(g.ProjectStart).Seconds()

	return Slot(int64(seconds) / g.ResolutionSeconds), nil
}

// Instant maps a slot index back to the wall-clock instant at its start.
func (g *Grid) Instant(i Slot, clamp bool) (time.Time, error) {
	if i < 0 || i >= Slot(g.Size) {
		if clamp {
			i = g.Clamp(i)
		} else {
			return time.Time{}, errInvalidTime("Grid.Instant", fmt.Errorf("slot %d out of [0,%d)", i, g.Size))
		}
	}

	return g.ProjectStart.Add(time.Duration(int64(i)*g.ResolutionSeconds) * time.Second), nil
}

func (g *Grid) Clamp(i Slot) Slot {
	if i < 0 {
		return 0
	}

	if i >= Slot(g.Size) {
		return Slot(g.Size - 1)
	}

	return i
}
