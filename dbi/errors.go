package dbi

import (
	"errors"
	"fmt"
)

var (
	// ErrFinished is returned when a finished statement is used.
	ErrFinished = errors.New("dbi: statement is finished")

	// ErrNotImplemented is returned when a driver supplied no executor for a statement.
	// It points at a driver integration defect, not at a runtime condition.
	ErrNotImplemented = errors.New("dbi: execution is not implemented by this driver")

	// ErrResultFinished is returned by every operation on a finished result set.
	ErrResultFinished = errors.New("dbi: result set is finished")

	// ErrInvalidCount is returned for a negative row count other than All or Rest.
	ErrInvalidCount = errors.New("dbi: invalid row count")

	// ErrRowShape is returned when a row does not have one value per schema column.
	ErrRowShape = errors.New("dbi: row does not match schema")

	// ErrDriverOutput is returned by the typed fetch helpers when the active
	// fetch driver produces another representation.
	ErrDriverOutput = errors.New("dbi: unexpected fetch driver output")

	// ErrUnknownDriver is wrapped by ResolutionError.
	ErrUnknownDriver = errors.New("dbi: unknown fetch driver")
)

// ResolutionError reports a fetch driver identifier that names no known variant.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownDriver, e.Name)
}

func (e *ResolutionError) Unwrap() error {
	return ErrUnknownDriver
}
