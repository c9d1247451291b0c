// Package wizard models the multi-step order and measurement forms as tagged
// unions with pure reducers. Each step is its own type carrying exactly the
// data collected so far; a reducer either returns the next step or an error
// naming the unmet precondition.
package wizard

import "errors"

var (
	ErrNoProduct          = errors.New("a product must be selected first")
	ErrNoMeasurement      = errors.New("a measurement must be selected first")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 100")
	ErrNoSubjectName      = errors.New("the person being measured needs a name")
	ErrInvalidGender      = errors.New("gender must be male, female or other")
	ErrMissingMeasurement = errors.New("chest, waist and hip measurements are required")
	ErrMeasurementRange   = errors.New("measurements must be between 1 and 300 cm")
	ErrInvalidTransition  = errors.New("action not allowed at this step")
	ErrAlreadySubmitted   = errors.New("wizard already submitted")
	ErrUnknownAction      = errors.New("unknown action")
	ErrUnknownStep        = errors.New("unknown step")
)
