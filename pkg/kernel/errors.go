package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a required mesh is missing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOperation is returned for operation ordinals outside 0..5.
	ErrInvalidOperation = errors.New("invalid operation")
)

// EngineFault reports that the engine failed or faulted on its input,
// typically because a mesh was corrupt, self-intersecting or non-manifold.
type EngineFault struct {
	Engine      string
	Op          Operation
	Description string
	Err         error
}

func (e *EngineFault) Error() string {
	return fmt.Sprintf("engine %s: %s failed: %s", e.Engine, e.Op, e.Description)
}

func (e *EngineFault) Unwrap() error {
	return e.Err
}

// AsFault converts err into an EngineFault for engine name and op. Errors
// that already are faults are returned unchanged.
func AsFault(engine string, op Operation, err error) *EngineFault {
	var fault *EngineFault
	if errors.As(err, &fault) {
		return fault
	}
	return &EngineFault{Engine: engine, Op: op, Description: err.Error(), Err: err}
}
