package scheduler

import "sort"

// runFixedPoint repeatedly walks tasks in dependency order, placing every
// Ready task, until a round makes no progress or the round cap is hit.
// Each round's work is explicit and bounded instead of relying on
// ambient per-task state.
func (p *Project) runFixedPoint() error {
	order, errOrder := p.Graph.TopoOrder()
	if errOrder != nil {
		return errOrder
	}

	topoRank := make(map[int64]int, len(order))
	for rank, id := range order {
		topoRank[id] = rank
	}

	for _, id := range order {
		if t, ok := p.Tasks[id]; ok && t.State == TaskUnscheduled && !t.IsContainer() {
			t.markReady()
		}
	}

	maxRounds := len(p.Tasks) * p.MaxRoundsMultiplier
	if maxRounds == 0 {
		maxRounds = len(p.Tasks) * 2
	}

	lastPlacementErr := map[int64]error{}

	for round := 0; round < maxRounds; round++ {
		progressed := false

		p.resetLimitsForRound()

		// Visit order within a round: priority desc, topological order
		// asc, declaration order asc.
		visitOrder := p.readyVisitOrder(topoRank)

		for _, id := range visitOrder {
			t, ok := p.Tasks[id]
			if !ok || t.IsContainer() || t.State != TaskReady {
				continue
			}

			if !p.dependenciesSatisfied(t) {
				continue
			}

			if errPlace := p.PlaceTask(t); errPlace != nil {
				lastPlacementErr[t.ID] = errPlace

				continue
			}

			delete(lastPlacementErr, t.ID)
			progressed = true
		}

		if p.allLeafTasksSettled() {
			p.freezeConverged()

			return nil
		}

		if !progressed {
			return p.failRemaining(lastPlacementErr)
		}
	}

	return errNonconvergent("Project.runFixedPoint", maxRounds)
}

// readyVisitOrder sorts every task ID by (priority desc, topological order
// asc, declaration order asc), the deterministic tie-break every round needs.
// Container and non-task IDs are included but harmlessly skipped by the
// caller's state check.
func (p *Project) readyVisitOrder(topoRank map[int64]int) []int64 {
	ids := make([]int64, 0, len(p.Tasks))

	for id := range p.Tasks {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		ta, tb := p.Tasks[a], p.Tasks[b]

		if ta.Priority != tb.Priority {
			return ta.Priority > tb.Priority
		}

		if topoRank[a] != topoRank[b] {
			return topoRank[a] < topoRank[b]
		}

		return ta.declarationOrder < tb.declarationOrder
	})

	return ids
}

func (p *Project) dependenciesSatisfied(t *Task) bool {
	for _, edge := range t.Dependencies {
		pred, ok := p.Tasks[edge.SourceID]
		if !ok {
			continue
		}

		if pred.IsContainer() {
			continue
		}

		if pred.State != TaskPlaced && pred.State != TaskFrozen {
			return false
		}
	}

	return true
}

func (p *Project) allLeafTasksSettled() bool {
	for _, t := range p.Tasks {
		if t.IsContainer() {
			continue
		}

		if t.State == TaskUnscheduled || t.State == TaskReady {
			return false
		}
	}

	return true
}

// failRemaining marks every task that never reached Placed as Failed and
// returns the first such task's own placement error, so a caller sees why
// that specific task failed (over capacity, a limit cap, no resource at
// all) instead of a generic diagnosis manufactured after the fact.
func (p *Project) failRemaining(lastPlacementErr map[int64]error) error {
	var firstErr error

	for _, t := range p.Tasks {
		if t.IsContainer() {
			continue
		}

		if t.State == TaskReady || t.State == TaskUnscheduled {
			t.markFailed()

			if firstErr != nil {
				continue
			}

			if errPlace, ok := lastPlacementErr[t.ID]; ok {
				firstErr = errPlace

				continue
			}

			bounds, _ := p.ComputeBounds(t)
			firstErr = errNoResource("Project.failRemaining", t.ID, bounds)
		}
	}

	return firstErr
}

// freezeConverged transitions every Placed task to Frozen once a round
// reaches a fixed point: nothing will requeue them again, so their
// placement is final.
func (p *Project) freezeConverged() {
	for _, t := range p.Tasks {
		if t.State == TaskPlaced {
			t.markFrozen()
		}
	}
}

// resetLimitsForRound clears every resource's limit counters before a
// scheduling pass and re-counts the Booked slots still held by tasks, so a
// released booking from a prior round never counts against a limit while
// every held booking always does.
func (p *Project) resetLimitsForRound() {
	for _, r := range p.Resources {
		if r.Limits != nil {
			r.Limits.Reset()
		}
	}

	for _, t := range p.Tasks {
		if t.Demand.Kind == DemandLength {
			continue
		}

		for resourceID, ranges := range t.Bookings {
			r, ok := p.Resources[resourceID]
			if !ok {
				continue
			}

			for _, rng := range ranges {
				for i := rng.Start; i < rng.End; i++ {
					p.incLimitsIncludingAncestors(r, i)
				}
			}
		}
	}
}
