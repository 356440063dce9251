package phasor

import "errors"

var (
	// ErrInvalidInput indicates a caller-supplied value that cannot be queried.
	ErrInvalidInput = errors.New("phasor: invalid input")
	// ErrInvalidPhase indicates a phase name other than a, b or c.
	ErrInvalidPhase = errors.New("phasor: invalid phase")
	// ErrMissingFields indicates a sample that lacks required phasor fields.
	ErrMissingFields = errors.New("phasor: missing fields")
)
