package scheduler

// LimitKind distinguishes the period a Limit buckets by: a type instead
// of a freeform string so a typo can't silently create a dead limit.
type LimitKind uint8

const (
	LimitDailyMax LimitKind = iota
	LimitWeeklyMax
	LimitMonthlyMax
)

// Limit tracks how many slots a resource has consumed within
// each bucket of its period, and whether a further slot would exceed
// MaxSlots. Weekly buckets are ISO-week aligned (Monday start) rather than
// plain 7*24-slot chunks from project start, so a week always means a
// calendar week regardless of where the project happens to begin.
type Limit struct {
	Kind     LimitKind
	MaxSlots int64
	grid     *Grid
	counts   map[int64]int64
}

func NewLimit(kind LimitKind, maxSlots int64, grid *Grid) *Limit {
	return &Limit{
		Kind:     kind,
		MaxSlots: maxSlots,
		grid:     grid,
		counts:   make(map[int64]int64),
	}
}

// bucket returns the period index a slot belongs to: the UTC calendar day
// (days since the Unix epoch) for LimitDailyMax, ISO year*53+week for
// LimitWeeklyMax, and year*12+month for LimitMonthlyMax.
func (l *Limit) bucket(slot Slot) int64 {
	instant, errInstant := l.grid.Instant(slot, true)
	if errInstant != nil {
		return 0
	}

	switch l.Kind {
	case LimitWeeklyMax:
		year, week := instant.ISOWeek()

		return int64(year)*53 + int64(week)
	case LimitMonthlyMax:
		return int64(instant.Year())*12 + int64(instant.Month())
	default:
		startOfDay := instant.Truncate(24 * 60 * 60 * 1_000_000_000)

		return startOfDay.Unix() / 86400
	}
}

func (l *Limit) Ok(slot Slot) bool {
	return l.counts[l.bucket(slot)] < l.MaxSlots
}

// OkWithPending is Ok adjusted for slots a caller intends to commit but has
// not yet (a multi-slot candidate under construction within the same
// search pass). Without this, a contiguous run that starts comfortably
// under MaxSlots could still commit past it, since Ok alone only reflects
// already-committed bookings.
func (l *Limit) OkWithPending(slot Slot, pending int64) bool {
	return l.counts[l.bucket(slot)]+pending < l.MaxSlots
}

// Bucket exposes the period key a slot falls into, so allocator-side
// pending trackers can key their tentative counts the same way Inc/Dec do.
func (l *Limit) Bucket(slot Slot) int64 {
	return l.bucket(slot)
}

func (l *Limit) Inc(slot Slot) {
	l.counts[l.bucket(slot)]++
}

func (l *Limit) Dec(slot Slot) {
	b := l.bucket(slot)

	if l.counts[b] > 0 {
		l.counts[b]--
	}
}

// Reset clears every bucket's counter. Called by the Fixed-Point Driver
// before each scheduling round so a task's own released bookings from a
// prior round never double-count against its own limit.
func (l *Limit) Reset() {
	l.counts = make(map[int64]int64)
}

// Limits is the ordered collection of Limit constraints attached to a
// resource. All limits must agree a slot is OK
// before the allocator may book it.
type Limits struct {
	items []*Limit
}

func NewLimits() *Limits {
	return &Limits{}
}

func (ls *Limits) Add(l *Limit) {
	ls.items = append(ls.items, l)
}

func (ls *Limits) Ok(slot Slot) bool {
	for _, l := range ls.items {
		if !l.Ok(slot) {
			return false
		}
	}

	return true
}

func (ls *Limits) Inc(slot Slot) {
	for _, l := range ls.items {
		l.Inc(slot)
	}
}

func (ls *Limits) Dec(slot Slot) {
	for _, l := range ls.items {
		l.Dec(slot)
	}
}

func (ls *Limits) Reset() {
	for _, l := range ls.items {
		l.Reset()
	}
}

func (ls *Limits) Len() int {
	return len(ls.items)
}
