package scheduler

// Bounds is the [LB, UB] slot window a task's whole occupied span must
// fit inside: LB is the earliest start slot and UB the last slot the task
// may occupy, for ASAP and ALAP placement alike. It is derived from
// anchors and dependency gaps.
type Bounds struct {
	LB Slot
	UB Slot
}

// ComputeBounds propagates dependency gaps and anchors into a concrete
// [LB,UB] window for t. A predecessor without a ScheduledStart/ScheduledEnd
// is skipped; the Fixed-Point Driver only places a task once its
// dependencies are placed, earlier in the same round or in a previous one.
func (p *Project) ComputeBounds(t *Task) (Bounds, error) {
	lb := Slot(0)
	ub := Slot(p.Grid.Size - 1)

	for _, edge := range t.Dependencies {
		pred, ok := p.Tasks[edge.SourceID]
		if !ok {
			continue
		}

		if pred.ScheduledStart == NoSlot || pred.ScheduledEnd == NoSlot {
			continue
		}

		var earliest Slot

		switch edge.Kind {
		case EdgeStartToStart:
			earliest = pred.ScheduledStart + Slot(edge.Gap)
		default:
			earliest = pred.ScheduledEnd + Slot(edge.Gap)
		}

		// TargetOnEnd redirects earliest/latest onto t's own end instead of
		// its start. "latest" maps onto ub exactly the same way MaxEnd does
		// (end <= latest <=> ub <= latest-1); "earliest" has no matching
		// end-side field to tighten directly, so it floors lb at
		// earliest-Amount instead — exact for duration/length demand, and
		// never too strict for effort demand since efficiency scaling only
		// ever grows the real slot count past Amount.
		if edge.TargetOnEnd {
			floor := earliest - Slot(t.Demand.Amount)

			if floor > lb {
				lb = floor
			}
		} else if earliest > lb {
			lb = earliest
		}

		if edge.MaxGap != nil {
			var latest Slot

			switch edge.Kind {
			case EdgeStartToStart:
				latest = pred.ScheduledStart + Slot(edge.Gap) + Slot(*edge.MaxGap)
			default:
				latest = pred.ScheduledEnd + Slot(edge.Gap) + Slot(*edge.MaxGap)
			}

			if edge.TargetOnEnd {
				ceiling := latest - 1

				if ceiling < ub {
					ub = ceiling
				}
			} else if latest < ub {
				ub = latest
			}
		}
	}

	if t.Anchors.MinStart != nil && *t.Anchors.MinStart > lb {
		lb = *t.Anchors.MinStart
	}

	if t.Anchors.MaxEnd != nil && *t.Anchors.MaxEnd < ub {
		ub = *t.Anchors.MaxEnd
	}

	// End pins ub exactly, same convention as MaxEnd (last permitted
	// occupied slot): for an ALAP task this is already the end bound,
	// since placeDuration anchors end = ub+1 directly.
	if t.Anchors.End != nil {
		ub = *t.Anchors.End
	}

	// Start pins lb; only a milestone, which occupies no run of slots, has
	// its ub collapsed onto the same slot.
	if t.Anchors.Start != nil {
		lb = *t.Anchors.Start

		if t.IsMilestone() {
			ub = *t.Anchors.Start
		}
	}

	if lb > ub {
		return Bounds{LB: lb, UB: ub}, errUnsatisfiable("Project.ComputeBounds", t.ID, Bounds{LB: lb, UB: ub})
	}

	return Bounds{LB: lb, UB: ub}, nil
}

// propagateBoundsToParents widens every ancestor container's observed
// [start,end] window to include t's own placement, walking up ParentID
// exactly once per call rather than recomputing every container's bounds
// from all descendants each round.
func (p *Project) propagateBoundsToParents(t *Task) {
	if t.ScheduledStart == NoSlot || t.ScheduledEnd == NoSlot {
		return
	}

	parentID := t.ParentID

	for parentID != 0 {
		parent, ok := p.Tasks[parentID]
		if !ok {
			return
		}

		changed := false

		if parent.ScheduledStart == NoSlot || t.ScheduledStart < parent.ScheduledStart {
			parent.ScheduledStart = t.ScheduledStart
			changed = true
		}

		if parent.ScheduledEnd == NoSlot || t.ScheduledEnd > parent.ScheduledEnd {
			parent.ScheduledEnd = t.ScheduledEnd
			changed = true
		}

		if parent.State == TaskUnscheduled || parent.State == TaskReady {
			parent.State = TaskPlaced
		}

		if !changed {
			return
		}

		parentID = parent.ParentID
	}
}
