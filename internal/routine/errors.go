package routine

import (
	"errors"
	"fmt"
)

// Domain errors for the routine package.
//
// Every validation error wraps ErrInvalidRoutine:
//
//	if errors.Is(err, routine.ErrInvalidRoutine) {
//	    // 400
//	}
var (
	// ErrRoutineNotFound is returned when a routine ID does not exist.
	ErrRoutineNotFound = errors.New("routine: not found")

	// ErrInvalidRoutine is the umbrella for every validation failure.
	ErrInvalidRoutine = errors.New("routine: invalid")

	ErrInvalidName    = fmt.Errorf("%w: name", ErrInvalidRoutine)
	ErrInvalidTrigger = fmt.Errorf("%w: trigger", ErrInvalidRoutine)
	ErrNoActions      = fmt.Errorf("%w: no valid actions", ErrInvalidRoutine)
)
