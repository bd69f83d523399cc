package scheduler

import (
	"fmt"

	goerrors "github.com/TudorHulban/go-errors"
)

// ErrorKind enumerates the engine's fatal error taxonomy: every failure
// it can raise is one of these, carrying the offending task/resource
// identity and a minimal window so the caller can explain the failure
// without the engine guessing at presentation.
type ErrorKind uint8

const (
	ErrKindInvalidTime ErrorKind = iota
	ErrKindCycleDetected
	ErrKindUnsatisfiable
	ErrKindNoResource
	ErrKindOverCapacity
	ErrKindLimitExceeded
	ErrKindNonconvergent
	ErrKindInvalidModel
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidTime:
		return "InvalidTime"
	case ErrKindCycleDetected:
		return "CycleDetected"
	case ErrKindUnsatisfiable:
		return "Unsatisfiable"
	case ErrKindNoResource:
		return "NoResource"
	case ErrKindOverCapacity:
		return "OverCapacity"
	case ErrKindLimitExceeded:
		return "LimitExceeded"
	case ErrKindNonconvergent:
		return "Nonconvergent"
	case ErrKindInvalidModel:
		return "InvalidModel"
	default:
		return "Unknown"
	}
}

// SchedulingError is the concrete error type surfaced for every taxonomy
// member, adding the task/resource/window context every caller needs:
// errors surface with the offending task identity and a minimal window.
// InvalidTime and InvalidModel wrap a goerrors.ErrValidation as Issue; the
// other kinds carry a plain error.
type SchedulingError struct {
	Kind     ErrorKind
	Caller   string
	TaskID   int64
	Resource int64
	Window   Bounds
	Issue    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf(
		"%s in %s (task=%d resource=%d window=[%d,%d]): %v",

		e.Kind,
		e.Caller,
		e.TaskID,
		e.Resource,
		e.Window.LB,
		e.Window.UB,
		e.Issue,
	)
}

func (e *SchedulingError) Unwrap() error {
	return e.Issue
}

func newSchedulingError(kind ErrorKind, caller string, taskID int64, window Bounds, issue error) *SchedulingError {
	return &SchedulingError{
		Kind:   kind,
		Caller: caller,
		TaskID: taskID,
		Window: window,
		Issue:  issue,
	}
}

func errInvalidTime(caller string, issue error) error {
	return &SchedulingError{
		Kind:   ErrKindInvalidTime,
		Caller: caller,
		Issue: goerrors.ErrValidation{
			Caller: caller,
			Issue:  issue,
		},
	}
}

func errCycleDetected(caller string, taskID int64) error {
	return &SchedulingError{
		Kind:   ErrKindCycleDetected,
		Caller: caller,
		TaskID: taskID,
		Issue:  fmt.Errorf("dependency graph has a cycle reachable from task %d", taskID),
	}
}

func errUnsatisfiable(caller string, taskID int64, window Bounds) error {
	return newSchedulingError(
		ErrKindUnsatisfiable,
		caller,
		taskID,
		window,
		fmt.Errorf("lower bound %d exceeds upper bound %d after propagation", window.LB, window.UB),
	)
}

func errNoResource(caller string, taskID int64, window Bounds) error {
	return newSchedulingError(
		ErrKindNoResource,
		caller,
		taskID,
		window,
		fmt.Errorf("no resource (including alternatives) can supply demand within bounds"),
	)
}

func errOverCapacity(caller string, taskID int64, window Bounds) error {
	return newSchedulingError(
		ErrKindOverCapacity,
		caller,
		taskID,
		window,
		fmt.Errorf("contiguous task demands more slots than any free working run"),
	)
}

func errLimitExceeded(caller string, taskID int64, resourceID int64, window Bounds) error {
	e := newSchedulingError(ErrKindLimitExceeded, caller, taskID, window, fmt.Errorf("anchor demands more than limit allows in its window"))
	e.Resource = resourceID
	return e
}

func errNonconvergent(caller string, rounds int) error {
	return &SchedulingError{
		Kind:   ErrKindNonconvergent,
		Caller: caller,
		Issue:  fmt.Errorf("fixed-point driver exceeded %d rounds without reaching convergence", rounds),
	}
}

func errInvalidModel(caller string, issue error) error {
	return &SchedulingError{
		Kind:   ErrKindInvalidModel,
		Caller: caller,
		Issue: goerrors.ErrValidation{
			Caller: caller,
			Issue:  issue,
		},
	}
}
