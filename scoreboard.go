package scheduler

import "fmt"

// SlotState is the tagged state of one scoreboard cell: a fixed enum
// instead of a polymorphic per-slot map value.
type SlotState uint8

const (
	SlotFree SlotState = iota
	SlotOffDuty
	SlotBooked
	SlotReserved
	SlotBlocked
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "Free"
	case SlotOffDuty:
		return "OffDuty"
	case SlotBooked:
		return "Booked"
	case SlotReserved:
		return "Reserved"
	case SlotBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// Cell is one dense scoreboard entry: a state tag plus the owning task
// when the state is Booked or Reserved.
type Cell struct {
	State  SlotState
	TaskID int64
}

// SlotRange is a half-open [Start, End) run of slots.
type SlotRange struct {
	Start Slot
	End   Slot
}

func (r SlotRange) Len() int64 {
	if r.End <= r.Start {
		return 0
	}

	return int64(r.End - r.Start)
}

// PredicateKind selects the scan predicate CollectIntervals uses; kept as
// an inlined tag rather than an arbitrary callable so the hot scan loop
// never allocates a closure.
type PredicateKind uint8

const (
	PredFree PredicateKind = iota
	PredMatchingTask
	PredBookedOrReserved
)

// Scoreboard is the dense per-resource slot array. Unlike a
// map[TimeInterval]*ResourceScheduled bookkeeping scheme, every slot in the grid
// has exactly one Cell, so lookups are O(1) array indexing and
// CollectIntervals is a single linear scan.
type Scoreboard struct {
	ResourceID int64
	cells      []Cell
}

func NewScoreboard(resourceID int64, size int64) *Scoreboard {
	return &Scoreboard{
		ResourceID: resourceID,
		cells:      make([]Cell, size),
	}
}

func (sb *Scoreboard) Size() int64 {
	return int64(len(sb.cells))
}

func (sb *Scoreboard) Get(i Slot) Cell {
	if i < 0 || int64(i) >= sb.Size() {
		return Cell{State: SlotBlocked}
	}

	return sb.cells[i]
}

func (sb *Scoreboard) SetOffDuty(i Slot) {
	if i >= 0 && int64(i) < sb.Size() {
		sb.cells[i] = Cell{State: SlotOffDuty}
	}
}

// Book marks [start,end) as Booked by taskID. The caller is expected to
// have verified IsFreeRange first; Book itself re-checks and refuses a
// partial write on conflict, leaving the scoreboard untouched.
func (sb *Scoreboard) Book(start, end Slot, taskID int64) error {
	if !sb.IsFreeRange(start, end) {
		return fmt.Errorf("range [%d,%d) is not entirely free on resource %d", start, end, sb.ResourceID)
	}

	for i := start; i < end; i++ {
		sb.cells[i] = Cell{State: SlotBooked, TaskID: taskID}
	}

	return nil
}

// Reserve marks a range Reserved rather than Booked: used for fixed
// bookings supplied by the caller (pre-existing commitments) and for the
// allocator's own length-task placements, neither of which preemption can
// evict.
func (sb *Scoreboard) Reserve(start, end Slot, taskID int64) error {
	for i := start; i < end; i++ {
		if i < 0 || int64(i) >= sb.Size() {
			continue
		}

		if sb.cells[i].State != SlotFree {
			return fmt.Errorf("slot %d on resource %d is not free (state=%s)", i, sb.ResourceID, sb.cells[i].State)
		}
	}

	for i := start; i < end; i++ {
		sb.cells[i] = Cell{State: SlotReserved, TaskID: taskID}
	}

	return nil
}

// Release resets [start,end) back to Free, skipping any slot that is not
// owned by taskID (OffDuty/Reserved-by-other/Blocked slots are preserved).
// Both Booked and Reserved ownership are released, since a length task's
// own release at requeue time must free its Reserved slots too.
func (sb *Scoreboard) Release(start, end Slot, taskID int64) {
	for i := start; i < end; i++ {
		if i < 0 || int64(i) >= sb.Size() {
			continue
		}

		owned := (sb.cells[i].State == SlotBooked || sb.cells[i].State == SlotReserved) && sb.cells[i].TaskID == taskID

		if owned {
			sb.cells[i] = Cell{State: SlotFree}
		}
	}
}

func (sb *Scoreboard) IsFreeRange(start, end Slot) bool {
	if start < 0 || end > Slot(sb.Size()) || start >= end {
		return false
	}

	for i := start; i < end; i++ {
		if sb.cells[i].State != SlotFree {
			return false
		}
	}

	return true
}

// CollectIntervals scans [start,end) and returns every maximal run of
// slots matching kind, dropping runs shorter than minDuration, using a
// single pass with a running run-start marker.
func (sb *Scoreboard) CollectIntervals(start, end Slot, kind PredicateKind, matchTaskID int64, minDuration int64) []SlotRange {
	if start < 0 {
		start = 0
	}

	if end > Slot(sb.Size()) {
		end = Slot(sb.Size())
	}

	var ranges []SlotRange

	runStart := NoSlot

	matches := func(c Cell) bool {
		switch kind {
		case PredFree:
			return c.State == SlotFree
		case PredMatchingTask:
			return (c.State == SlotBooked || c.State == SlotReserved) && c.TaskID == matchTaskID
		case PredBookedOrReserved:
			return c.State == SlotBooked || c.State == SlotReserved
		default:
			return false
		}
	}

	flush := func(runEnd Slot) {
		if runStart == NoSlot {
			return
		}

		if int64(runEnd-runStart) >= minDuration {
			ranges = append(ranges, SlotRange{Start: runStart, End: runEnd})
		}

		runStart = NoSlot
	}

	for i := start; i < end; i++ {
		if matches(sb.cells[i]) {
			if runStart == NoSlot {
				runStart = i
			}
		} else {
			flush(i)
		}
	}

	flush(end)

	return ranges
}
