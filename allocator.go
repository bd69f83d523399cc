package scheduler

import "fmt"

// candidateResult is the outcome of trying one AllocationGroup's resource
// set (primary or one alternative set) against a task's demand, used to
// compare completion times across alternatives.
type candidateResult struct {
	resources []*Resource
	ranges    map[int64][]SlotRange
	start     Slot
	end       Slot
	ok        bool
	evictions []int64

	limitBlocked  bool
	limitResource int64
}

// PlaceTask attempts to give t a concrete [ScheduledStart,ScheduledEnd)
// and, for effort/length demand, a set of resource bookings. Milestones
// anchor directly, duration tasks occupy wall-clock slots without
// consuming resource capacity, and effort/length tasks search the
// resource scoreboards within the task's propagated bounds.
func (p *Project) PlaceTask(t *Task) error {
	defer traceExit()

	bounds, errBounds := p.ComputeBounds(t)
	if errBounds != nil {
		return errBounds
	}

	if t.IsMilestone() {
		t.markPlaced(bounds.LB, bounds.LB)
		p.propagateBoundsToParents(t)

		return nil
	}

	switch t.Demand.Kind {
	case DemandDuration:
		return p.placeDuration(t, bounds)
	default:
		return p.placeEffortOrLength(t, bounds)
	}
}

func (p *Project) placeDuration(t *Task, bounds Bounds) error {
	amount := Slot(t.Demand.Amount)

	var start, end Slot

	if t.Direction == DirectionALAP {
		end = bounds.UB + 1
		start = end - amount

		if start < bounds.LB {
			return errUnsatisfiable("Project.placeDuration", t.ID, bounds)
		}
	} else {
		start = bounds.LB
		end = start + amount

		if end-1 > bounds.UB {
			return errUnsatisfiable("Project.placeDuration", t.ID, bounds)
		}
	}

	t.markPlaced(start, end)
	p.propagateBoundsToParents(t)

	return nil
}

func (p *Project) placeEffortOrLength(t *Task, bounds Bounds) error {
	if len(t.Allocations) == 0 {
		return errNoResource("Project.placeEffortOrLength", t.ID, bounds)
	}

	var best *candidateResult

	limitBlocked := false
	var limitBlockedResource int64

	for _, group := range t.Allocations {
		for _, attempt := range candidateResourceSets(group) {
			resources, errResolve := p.resolveResources(attempt)
			if errResolve != nil {
				continue
			}

			result := p.tryPlace(t, resources, bounds, false)
			if result.limitBlocked {
				limitBlocked = true
				limitBlockedResource = result.limitResource
			}

			if !result.ok {
				continue
			}

			if best == nil || p.betterCandidate(t, result, *best) {
				best = &result
			}
		}
	}

	if best == nil {
		for _, group := range t.Allocations {
			for _, attempt := range candidateResourceSets(group) {
				resources, errResolve := p.resolveResources(attempt)
				if errResolve != nil {
					continue
				}

				result := p.tryPlace(t, resources, bounds, true)
				if result.limitBlocked {
					limitBlocked = true
					limitBlockedResource = result.limitResource
				}

				if !result.ok {
					continue
				}

				if best == nil || p.betterCandidate(t, result, *best) {
					best = &result
				}
			}
		}
	}

	if best == nil {
		if limitBlocked {
			return errLimitExceeded("Project.placeEffortOrLength", t.ID, limitBlockedResource, bounds)
		}

		if t.Contiguous || t.Demand.Kind == DemandLength {
			return errOverCapacity("Project.placeEffortOrLength", t.ID, bounds)
		}

		return errNoResource("Project.placeEffortOrLength", t.ID, bounds)
	}

	p.commit(t, *best)
	p.propagateBoundsToParents(t)

	return nil
}

// candidateResourceSets enumerates primary first, then the alternatives,
// as whole sets: an allocation's alternatives are fallback *groups*, not
// per-resource substitutes.
func candidateResourceSets(group AllocationGroup) [][]int64 {
	sets := [][]int64{group.Resources}

	for _, alt := range group.Alternatives {
		sets = append(sets, []int64{alt})
	}

	return sets
}

// resourceChain returns r followed by every container ancestor reachable
// via ParentID, so a limit set on a department also binds every resource
// under it: container resources aggregate their limits down to every leaf.
func (p *Project) resourceChain(r *Resource) []*Resource {
	chain := []*Resource{r}

	parentID := r.ParentID

	for parentID != 0 {
		parent, ok := p.Resources[parentID]
		if !ok {
			break
		}

		chain = append(chain, parent)
		parentID = parent.ParentID
	}

	return chain
}

func (p *Project) limitsOkIncludingAncestors(r *Resource, slot Slot) bool {
	for _, ancestor := range p.resourceChain(r) {
		if ancestor.Limits != nil && !ancestor.Limits.Ok(slot) {
			return false
		}
	}

	return true
}

// pendingLimits accumulates tentative per-bucket counts for slots a
// contiguous/scattered scan has provisionally accepted but not yet
// committed, so a multi-slot candidate can't walk straight past a limit
// it would itself exceed partway through.
type pendingLimits map[*Limit]map[int64]int64

func (pl pendingLimits) add(l *Limit, slot Slot) {
	byBucket, ok := pl[l]
	if !ok {
		byBucket = make(map[int64]int64)
		pl[l] = byBucket
	}

	byBucket[l.Bucket(slot)]++
}

func (pl pendingLimits) get(l *Limit, slot Slot) int64 {
	byBucket, ok := pl[l]
	if !ok {
		return 0
	}

	return byBucket[l.Bucket(slot)]
}

func (p *Project) limitsOkWithPending(r *Resource, slot Slot, pending pendingLimits) bool {
	for _, ancestor := range p.resourceChain(r) {
		if ancestor.Limits == nil {
			continue
		}

		for _, l := range ancestor.Limits.items {
			if !l.OkWithPending(slot, pending.get(l, slot)) {
				return false
			}
		}
	}

	return true
}

func (p *Project) recordPending(r *Resource, slot Slot, pending pendingLimits) {
	for _, ancestor := range p.resourceChain(r) {
		if ancestor.Limits == nil {
			continue
		}

		for _, l := range ancestor.Limits.items {
			pending.add(l, slot)
		}
	}
}

func (p *Project) incLimitsIncludingAncestors(r *Resource, slot Slot) {
	for _, ancestor := range p.resourceChain(r) {
		if ancestor.Limits != nil {
			ancestor.Limits.Inc(slot)
		}
	}
}

func (p *Project) decLimitsIncludingAncestors(r *Resource, slot Slot) {
	for _, ancestor := range p.resourceChain(r) {
		if ancestor.Limits != nil {
			ancestor.Limits.Dec(slot)
		}
	}
}

func (p *Project) resolveResources(ids []int64) ([]*Resource, error) {
	out := make([]*Resource, 0, len(ids))

	for _, id := range ids {
		r, ok := p.Resources[id]
		if !ok || !r.Leaf {
			return nil, fmt.Errorf("resource %d not found or not a leaf", id)
		}

		out = append(out, r)
	}

	return out, nil
}

// betterCandidate implements the ASAP/ALAP tie-break between a primary
// assignment and its alternatives: for ASAP tasks the candidate finishing
// earliest wins; for ALAP tasks the candidate starting latest wins.
func (p *Project) betterCandidate(t *Task, a, b candidateResult) bool {
	if t.Direction == DirectionALAP {
		return a.start > b.start
	}

	return a.end < b.end
}

// tryPlace searches for a placement of t on resources within bounds. When
// allowPreemption is true, slots booked by strictly lower-priority tasks
// are treated as available and recorded for eviction on commit.
func (p *Project) tryPlace(t *Task, resources []*Resource, bounds Bounds, allowPreemption bool) candidateResult {
	amount := t.Demand.Amount

	if t.Demand.Kind == DemandEffort && len(resources) > 0 {
		amount = resources[0].DemandSlots(amount)
	}

	pending := pendingLimits{}

	limitBlocked := false
	var limitBlockedResource int64

	matching := func(slot Slot) (bool, []int64) {
		var evictions []int64

		for _, r := range resources {
			cell := r.Scoreboard.Get(slot)

			switch cell.State {
			case SlotFree:
				if !p.limitsOkWithPending(r, slot, pending) {
					limitBlocked = true
					limitBlockedResource = r.ID

					return false, nil
				}

				p.recordPending(r, slot, pending)
			case SlotBooked:
				if !allowPreemption {
					return false, nil
				}

				evicted, ok := p.Tasks[cell.TaskID]
				if !ok || evicted.Priority >= t.Priority {
					return false, nil
				}

				evictions = append(evictions, cell.TaskID)
			default:
				return false, nil
			}
		}

		return true, evictions
	}

	var result candidateResult

	if t.Contiguous || t.Demand.Kind == DemandLength {
		result = p.tryPlaceContiguous(t, resources, bounds, amount, allowPreemption, pending, matching)
	} else {
		result = p.tryPlaceScattered(t, resources, bounds, amount, allowPreemption, matching)
	}

	result.limitBlocked = limitBlocked
	result.limitResource = limitBlockedResource

	return result
}

// candidateFreeRuns is the allocator's primary query into a resource set's
// free capacity: it asks each resource's Scoreboard for its free runs via
// CollectIntervals and intersects them, so the contiguous scan below only
// ever walks slots already known free on every resource in the set. A
// preemption-enabled search can't narrow this way, since a slot booked by
// a lower-priority task is eligible too, so it falls back to the full
// bounds window.
func (p *Project) candidateFreeRuns(resources []*Resource, bounds Bounds, allowPreemption bool) []SlotRange {
	if allowPreemption || len(resources) == 0 {
		return []SlotRange{{Start: bounds.LB, End: bounds.UB + 1}}
	}

	runs := resources[0].Scoreboard.CollectIntervals(bounds.LB, bounds.UB+1, PredFree, 0, 1)

	for _, r := range resources[1:] {
		runs = intersectRuns(runs, r.Scoreboard.CollectIntervals(bounds.LB, bounds.UB+1, PredFree, 0, 1))
	}

	return runs
}

// intersectRuns intersects two ascending, non-overlapping SlotRange slices
// with a single merge pass, the same way two resources' free time must
// overlap before either can be booked together.
func intersectRuns(a, b []SlotRange) []SlotRange {
	var out []SlotRange

	i, j := 0, 0

	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start > start {
			start = b[j].Start
		}

		end := a[i].End
		if b[j].End < end {
			end = b[j].End
		}

		if start < end {
			out = append(out, SlotRange{Start: start, End: end})
		}

		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}

	return out
}

// tryPlaceContiguous clears pending whenever a partial run is abandoned, so
// only the slots of the run under construction count against the limits.
func (p *Project) tryPlaceContiguous(t *Task, resources []*Resource, bounds Bounds, amount int64, allowPreemption bool, pending pendingLimits, matching func(Slot) (bool, []int64)) candidateResult {
	ascending := t.Direction != DirectionALAP

	buildResult := func(start, end Slot, evictionSet map[int64]bool) candidateResult {
		ranges := map[int64][]SlotRange{}

		for _, r := range resources {
			ranges[r.ID] = []SlotRange{{Start: start, End: end}}
		}

		return candidateResult{
			resources: resources,
			ranges:    ranges,
			start:     start,
			end:       end,
			ok:        true,
			evictions: mapKeys(evictionSet),
		}
	}

	runs := p.candidateFreeRuns(resources, bounds, allowPreemption)

	if ascending {
		for _, run := range runs {
			runStart := NoSlot
			evictionSet := map[int64]bool{}
			clear(pending)

			for s := run.Start; s < run.End; s++ {
				ok, evicted := matching(s)

				if !ok {
					runStart = NoSlot
					evictionSet = map[int64]bool{}
					clear(pending)

					continue
				}

				if runStart == NoSlot {
					runStart = s
					evictionSet = map[int64]bool{}
				}

				for _, id := range evicted {
					evictionSet[id] = true
				}

				if int64(s-runStart)+1 >= amount {
					return buildResult(runStart, runStart+Slot(amount), evictionSet)
				}
			}
		}

		return candidateResult{}
	}

	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		runEnd := NoSlot
		evictionSet := map[int64]bool{}
		clear(pending)

		for s := run.End - 1; s >= run.Start; s-- {
			ok, evicted := matching(s)

			if !ok {
				runEnd = NoSlot
				evictionSet = map[int64]bool{}
				clear(pending)

				continue
			}

			if runEnd == NoSlot {
				runEnd = s + 1
				evictionSet = map[int64]bool{}
			}

			for _, id := range evicted {
				evictionSet[id] = true
			}

			if int64(runEnd-s) >= amount {
				return buildResult(runEnd-Slot(amount), runEnd, evictionSet)
			}
		}
	}

	return candidateResult{}
}

func (p *Project) tryPlaceScattered(t *Task, resources []*Resource, bounds Bounds, amount int64, allowPreemption bool, matching func(Slot) (bool, []int64)) candidateResult {
	ascending := t.Direction != DirectionALAP

	var picked []Slot

	evictionSet := map[int64]bool{}

	visit := func(s Slot) bool {
		ok, evicted := matching(s)
		if !ok {
			return false
		}

		picked = append(picked, s)

		for _, id := range evicted {
			evictionSet[id] = true
		}

		return int64(len(picked)) >= amount
	}

	runs := p.candidateFreeRuns(resources, bounds, allowPreemption)

	if ascending {
		for _, run := range runs {
			for s := run.Start; s < run.End; s++ {
				if visit(s) {
					break
				}
			}

			if int64(len(picked)) >= amount {
				break
			}
		}
	} else {
		for i := len(runs) - 1; i >= 0; i-- {
			run := runs[i]

			for s := run.End - 1; s >= run.Start; s-- {
				if visit(s) {
					break
				}
			}

			if int64(len(picked)) >= amount {
				break
			}
		}
	}

	if int64(len(picked)) < amount {
		return candidateResult{}
	}

	if !ascending {
		for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
			picked[i], picked[j] = picked[j], picked[i]
		}
	}

	ranges := map[int64][]SlotRange{}
	for _, r := range resources {
		ranges[r.ID] = compressSlots(picked)
	}

	return candidateResult{
		resources: resources,
		ranges:    ranges,
		start:     picked[0],
		end:       picked[len(picked)-1] + 1,
		ok:        true,
		evictions: mapKeys(evictionSet),
	}
}

// compressSlots turns a sorted slice of individual slots into maximal
// contiguous SlotRanges, the same run-length compaction
// scoreboard.CollectIntervals performs while scanning.
func compressSlots(slots []Slot) []SlotRange {
	if len(slots) == 0 {
		return nil
	}

	var ranges []SlotRange

	runStart := slots[0]
	prev := slots[0]

	for _, s := range slots[1:] {
		if s == prev+1 {
			prev = s
			continue
		}

		ranges = append(ranges, SlotRange{Start: runStart, End: prev + 1})
		runStart = s
		prev = s
	}

	ranges = append(ranges, SlotRange{Start: runStart, End: prev + 1})

	return ranges
}

func mapKeys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))

	for k := range m {
		out = append(out, k)
	}

	return out
}

// commit books the winning candidate's ranges on every resource, evicting
// any lower-priority task whose slots were reclaimed, and records the
// bookings and fractional-slot release on t itself.
func (p *Project) commit(t *Task, result candidateResult) {
	for _, evictedID := range result.evictions {
		if evicted, ok := p.Tasks[evictedID]; ok {
			p.releaseTask(evicted)

			if !evicted.requeue() {
				evicted.markFailed()
			}
		}
	}

	// length demand marks Reserved rather than Booked so a later
	// higher-priority task can never evict it. Duration tasks never reach
	// commit: placeDuration marks nothing on any scoreboard.
	reserveOnly := t.Demand.Kind == DemandLength

	for _, r := range result.resources {
		for _, rng := range result.ranges[r.ID] {
			if reserveOnly {
				_ = r.Scoreboard.Reserve(rng.Start, rng.End, t.ID)

				continue
			}

			_ = r.Scoreboard.Book(rng.Start, rng.End, t.ID)

			for i := rng.Start; i < rng.End; i++ {
				p.incLimitsIncludingAncestors(r, i)
			}
		}

		t.Bookings[r.ID] = append(t.Bookings[r.ID], result.ranges[r.ID]...)
	}

	t.markPlaced(result.start, result.end)
	t.EndReleaseSeconds = p.computeTailRelease(t, result)
}

// computeTailRelease handles the case where an effort task's amount does
// not fill its final booked slot exactly: the unused tail is reported
// (in seconds) so callers can present a precise finish time without the
// allocator itself tracking fractional slots in the scoreboard. tryPlace
// already books ceil(amount/efficiency) slots, so bookedSlots and that same
// ceiling always match; the tail instead comes out of the exact (non-ceiling)
// fractional remainder, computed directly off Num/Den so it never touches
// floating point.
func (p *Project) computeTailRelease(t *Task, result candidateResult) int64 {
	if t.Demand.Kind != DemandEffort || len(result.resources) == 0 {
		return 0
	}

	primary := result.resources[0]

	bookedSlots := int64(0)
	for _, rng := range result.ranges[primary.ID] {
		bookedSlots += rng.Len()
	}

	num := primary.Efficiency.Num
	if num <= 0 {
		num = 1
	}

	den := primary.Efficiency.Den

	surplus := bookedSlots*num - t.Demand.Amount*den
	if surplus <= 0 {
		return 0
	}

	return (surplus * p.Grid.ResolutionSeconds) / num
}

func (p *Project) releaseTask(t *Task) {
	for resourceID, ranges := range t.Bookings {
		r, ok := p.Resources[resourceID]
		if !ok {
			continue
		}

		for _, rng := range ranges {
			r.Scoreboard.Release(rng.Start, rng.End, t.ID)

			for i := rng.Start; i < rng.End; i++ {
				p.decLimitsIncludingAncestors(r, i)
			}
		}
	}

	t.Bookings = make(map[int64][]SlotRange)
}
