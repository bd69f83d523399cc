package scheduler

import (
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// Interval is a minute-of-day working window, [StartMin, EndMin). A
// window with EndMin <= StartMin crosses midnight. A typed WeeklyTemplate
// of these replaces epoch-seconds TimeInterval pairs, so a week is 7
// small slices instead of N absolute ranges recomputed every query.
type Interval struct {
	StartMin uint16
	EndMin   uint16
}

func (iv Interval) CrossesMidnight() bool {
	return iv.EndMin <= iv.StartMin
}

// WeeklyTemplate holds the working intervals for each weekday, Sunday=0
// through Saturday=6, matching time.Weekday.
type WeeklyTemplate [7][]Interval

func (wt WeeklyTemplate) Validate() error {
	for day, intervals := range wt {
		for i, iv := range intervals {
			if iv.StartMin >= 24*60 || iv.EndMin > 24*60 {
				return fmt.Errorf("weekday %d interval %d out of range [0,1440]: %+v", day, i, iv)
			}

			for j := i + 1; j < len(intervals); j++ {
				other := intervals[j]

				if iv.StartMin < other.EndMin && other.StartMin < iv.EndMin && !iv.CrossesMidnight() && !other.CrossesMidnight() {
					return fmt.Errorf("weekday %d intervals %d and %d overlap", day, i, j)
				}
			}
		}
	}

	return nil
}

// ParamsNewCalendar builds a Calendar bound to a shared Grid. Timezone is
// the resource's own declared zone (empty defaults to UTC); the weekly
// template is always expressed in that local zone, so testing it first
// converts the UTC instant into the resource's zone.
type ParamsNewCalendar struct {
	Grid     *Grid `valid:"required"`
	Template WeeklyTemplate
	Timezone string
}

func (p ParamsNewCalendar) IsValid() error {
	if p.Grid == nil {
		return fmt.Errorf("grid is required")
	}

	if _, errValidation := govalidator.ValidateStruct(p); errValidation != nil {
		return errValidation
	}

	return p.Template.Validate()
}

// Calendar answers "is this slot a working slot" for one resource, after
// leaves/vacations have subtracted from the raw weekly template. It does
// not know about bookings; those live in the Scoreboard.
type Calendar struct {
	grid     *Grid
	template WeeklyTemplate
	timezone *time.Location
	working  []bool
	leaves   []DateRange
}

// DateRange is a half-open wall-clock window used for leaves, vacations,
// and fixed resource bookings layered on top of a calendar.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewCalendar(params ParamsNewCalendar) (*Calendar, error) {
	if errValid := params.IsValid(); errValid != nil {
		return nil, errInvalidModel("NewCalendar", errValid)
	}

	loc := time.UTC

	if params.Timezone != "" {
		resolved, errLoad := time.LoadLocation(params.Timezone)
		if errLoad != nil {
			return nil, errInvalidModel("NewCalendar", fmt.Errorf("unknown timezone %q: %w", params.Timezone, errLoad))
		}

		loc = resolved
	}

	c := &Calendar{
		grid:     params.Grid,
		template: params.Template,
		timezone: loc,
	}

	c.recomputeWorking()

	return c, nil
}

// recomputeWorking rebuilds the working bitmap from the weekly template,
// then subtracts every leave/vacation window applied so far. Cross-midnight
// intervals are evaluated with a previous-day fallback: a slot at 00:30 is
// "working" either because today's template has an interval starting
// before 00:30, or because yesterday's last interval crosses midnight and
// still covers it.
func (c *Calendar) recomputeWorking() {
	c.working = make([]bool, c.grid.Size)

	for i := int64(0); i < c.grid.Size; i++ {
		instant, _ := c.grid.Instant(Slot(i), true)
		local := instant.In(c.timezone)

		c.working[i] = c.onShift(local)
	}

	for _, leave := range c.leaves {
		c.subtractRange(leave)
	}
}

func (c *Calendar) onShift(local time.Time) bool {
	minuteOfDay := uint16(local.Hour()*60 + local.Minute())
	weekday := int(local.Weekday())

	for _, iv := range c.template[weekday] {
		if iv.CrossesMidnight() {
			if minuteOfDay >= iv.StartMin {
				return true
			}
		} else if minuteOfDay >= iv.StartMin && minuteOfDay < iv.EndMin {
			return true
		}
	}

	yesterday := (weekday + 6) % 7

	for _, iv := range c.template[yesterday] {
		if iv.CrossesMidnight() && minuteOfDay < iv.EndMin {
			return true
		}
	}

	return false
}

func (c *Calendar) subtractRange(r DateRange) {
	start, errStart := c.grid.Index(r.Start, true)
	if errStart != nil {
		return
	}

	end, errEnd := c.grid.Index(r.End, true)
	if errEnd != nil {
		return
	}

	for i := start; i < end && i < Slot(c.grid.Size); i++ {
		c.working[i] = false
	}
}

// ApplyLeave removes a wall-clock window from the working bitmap; used for
// individual leave/vacation days.
func (c *Calendar) ApplyLeave(r DateRange) {
	c.leaves = append(c.leaves, r)
	c.subtractRange(r)
}

// ApplyVacation is an alias for ApplyLeave, kept as a distinct call site
// even though both subtract identically from the resource's availability.
func (c *Calendar) ApplyVacation(r DateRange) {
	c.ApplyLeave(r)
}

func (c *Calendar) IsWorking(i Slot) bool {
	if i < 0 || i >= Slot(len(c.working)) {
		return false
	}

	return c.working[i]
}

// NextWorkingSlot returns the first working slot at or after from, or
// NoSlot if none remains in the grid.
func (c *Calendar) NextWorkingSlot(from Slot) Slot {
	if from < 0 {
		from = 0
	}

	for i := from; i < Slot(len(c.working)); i++ {
		if c.working[i] {
			return i
		}
	}

	return NoSlot
}

// PrevWorkingSlot returns the last working slot at or before from, or
// NoSlot if none exists.
func (c *Calendar) PrevWorkingSlot(from Slot) Slot {
	if from >= Slot(len(c.working)) {
		from = Slot(len(c.working)) - 1
	}

	for i := from; i >= 0; i-- {
		if c.working[i] {
			return i
		}
	}

	return NoSlot
}
