package scheduler

// maxReplacements bounds how many times a Placed task may be pushed back
// to Ready by a later round before the driver gives up on it and marks it
// Failed, preventing the fixed-point loop from oscillating forever on one
// stubborn task while other tasks still make progress.
const maxReplacements = 8

func (t *Task) markReady() {
	if t.State == TaskFrozen {
		return
	}

	t.State = TaskReady
}

func (t *Task) markPlaced(start, end Slot) {
	t.State = TaskPlaced
	t.ScheduledStart = start
	t.ScheduledEnd = end
}

func (t *Task) markFrozen() {
	t.State = TaskFrozen
}

func (t *Task) markFailed() {
	t.State = TaskFailed
}

// requeue pushes a Placed task back to Ready, counting the attempt. It
// returns false once the task has been requeued too many times, at which
// point the caller should mark it Failed instead of looping again.
func (t *Task) requeue() bool {
	if t.State != TaskPlaced {
		return true
	}

	t.replacementCount++

	if t.replacementCount > maxReplacements {
		return false
	}

	t.State = TaskReady
	t.ScheduledStart = NoSlot
	t.ScheduledEnd = NoSlot

	return true
}
