package topology

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTopology is returned when connectivity references nodes that
	// do not exist or the mesh arrays are malformed
	ErrInvalidTopology = errors.New("topology: invalid topology")

	// ErrEmptyField is returned when a field declares no components
	ErrEmptyField = errors.New("topology: empty field")

	// ErrDuplicateField is returned when two fields share a name
	ErrDuplicateField = errors.New("topology: duplicate field")
)

// TopologyError carries the offending entity of a topology failure.
// Unset indices are -1.
type TopologyError struct {
	Block   int
	Element int
	Node    int
	Field   string
	Detail  string
	Wrapped error
}

func (e *TopologyError) Error() string {
	var parts []string
	if e.Block >= 0 {
		parts = append(parts, fmt.Sprintf("block %d", e.Block))
	}
	if e.Element >= 0 {
		parts = append(parts, fmt.Sprintf("element %d", e.Element))
	}
	if e.Node >= 0 {
		parts = append(parts, fmt.Sprintf("node %d", e.Node))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field %q", e.Field))
	}
	msg := e.Wrapped.Error()
	if len(parts) > 0 {
		msg += " at " + strings.Join(parts, ", ")
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TopologyError) Unwrap() error {
	return e.Wrapped
}

func invalid(block, elem, node int, detail string) error {
	return &TopologyError{
		Block:   block,
		Element: elem,
		Node:    node,
		Detail:  detail,
		Wrapped: ErrInvalidTopology,
	}
}
