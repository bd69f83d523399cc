package scheduler

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// ParamsNewResource configures a single resource. Leaf resources carry a
// Scoreboard and Calendar of their own; container resources (teams,
// departments) have neither and exist only to aggregate limits over the
// leaves beneath them; the allocator books leaf resources only.
type ParamsNewResource struct {
	ID         int64  `valid:"required"`
	Name       string `valid:"required"`
	Leaf       bool
	ParentID   int64
	Timezone   string
	Efficiency Rational
	Calendar   *Calendar
}

func (p ParamsNewResource) IsValid() error {
	if _, errValidation := govalidator.ValidateStruct(p); errValidation != nil {
		return errValidation
	}

	if p.Leaf && p.Calendar == nil {
		return fmt.Errorf("leaf resource %d (%s) requires a calendar", p.ID, p.Name)
	}

	return nil
}

type Resource struct {
	ID         int64
	Name       string
	Leaf       bool
	ParentID   int64
	Timezone   string
	Efficiency Rational
	Calendar   *Calendar
	Limits     *Limits
	Scoreboard *Scoreboard
}

func NewResource(params ParamsNewResource) (*Resource, error) {
	if errValid := params.IsValid(); errValid != nil {
		return nil, errInvalidModel("NewResource", errValid)
	}

	efficiency := params.Efficiency
	if efficiency.Num == 0 {
		efficiency = RationalIdentity()
	}

	r := &Resource{
		ID:         params.ID,
		Name:       params.Name,
		Leaf:       params.Leaf,
		ParentID:   params.ParentID,
		Timezone:   params.Timezone,
		Efficiency: efficiency,
		Calendar:   params.Calendar,
		Limits:     NewLimits(),
	}

	if params.Leaf {
		r.Scoreboard = NewScoreboard(params.ID, params.Calendar.grid.Size)

		for i := int64(0); i < params.Calendar.grid.Size; i++ {
			if !params.Calendar.IsWorking(Slot(i)) {
				r.Scoreboard.SetOffDuty(Slot(i))
			}
		}
	}

	return r, nil
}

// DemandSlots converts an amount of effort (in slot-units at efficiency
// 1/1) into the number of calendar slots this resource needs to deliver
// it, rounding up so a fractional remainder never silently disappears.
func (r *Resource) DemandSlots(effortSlots int64) int64 {
	return r.Efficiency.CeilDiv(effortSlots)
}

// ApplyFixedBooking reserves a wall-clock window on this resource's
// scoreboard for a commitment the allocator did not make itself (an
// externally supplied booking layered on top of the calendar, alongside
// leave and vacation). ownerID is recorded but never released
// by the allocator's own eviction logic.
func (r *Resource) ApplyFixedBooking(grid *Grid, ownerID int64, window DateRange) error {
	start, errStart := grid.Index(window.Start, true)
	if errStart != nil {
		return errStart
	}

	end, errEnd := grid.Index(window.End, true)
	if errEnd != nil {
		return errEnd
	}

	if errReserve := r.Scoreboard.Reserve(start, end, ownerID); errReserve != nil {
		return errInvalidModel("Resource.ApplyFixedBooking", errReserve)
	}

	return nil
}
