package assembly

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a kernel's local size disagrees
	// with the element's DOF list or node count
	ErrDimensionMismatch = errors.New("assembly: dimension mismatch")

	// ErrPatternMismatch is returned when the sparsity pattern does not
	// cover an element block or has the wrong size
	ErrPatternMismatch = errors.New("assembly: pattern mismatch")
)

// ElementError ties a failure to the element that caused it
type ElementError struct {
	Element int
	Tag     string
	Err     error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("assembly: element %d (%s): %v", e.Element, e.Tag, e.Err)
}

func (e *ElementError) Unwrap() error {
	return e.Err
}
