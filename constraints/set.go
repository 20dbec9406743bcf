package constraints

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConstraintConflict is returned for contradictory or ill-formed
// constraint sets
var ErrConstraintConflict = errors.New("constraints: conflicting constraints")

// ConflictError names the DOF a constraint set cannot be applied to
type ConflictError struct {
	Dof    int
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("constraints: dof %d: %s", e.Dof, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConstraintConflict }

func conflict(dof int, format string, args ...any) error {
	return &ConflictError{Dof: dof, Reason: fmt.Sprintf(format, args...)}
}

// Fixed prescribes u[Dof] = Value
type Fixed struct {
	Dof   int
	Value float64
}

// Term is one master contribution of a linear constraint
type Term struct {
	Dof  int
	Coef float64
}

// Linear ties a target DOF to its masters: u[Target] = sum(Coef*u[Dof]) + Value
type Linear struct {
	Target int
	Terms  []Term
	Value  float64
}

// Set is the full list of constraints of an analysis
type Set struct {
	Fixed  []Fixed
	Linear []Linear
}

// Fix appends a prescribed value
func (s *Set) Fix(dof int, value float64) {
	s.Fixed = append(s.Fixed, Fixed{Dof: dof, Value: value})
}

// Tie appends a linear constraint on target
func (s *Set) Tie(target int, value float64, terms ...Term) {
	s.Linear = append(s.Linear, Linear{Target: target, Terms: terms, Value: value})
}

// Len returns the number of constraints
func (s *Set) Len() int { return len(s.Fixed) + len(s.Linear) }

// Strategy selects how prescribed values enter the system
type Strategy int

const (
	// Elimination replaces each fixed row by an identity row and moves the
	// known column to the right hand side. Exact.
	Elimination Strategy = iota

	// Penalty adds a large spring to the diagonal. Approximate: the error
	// shrinks as the penalty grows relative to the stiffness.
	Penalty
)

// DefaultPenalty is the penalty magnitude used when Options.Penalty is unset
const DefaultPenalty = 1e12

func (s Strategy) String() string {
	switch s {
	case Elimination:
		return "elimination"
	case Penalty:
		return "penalty"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "elimination":
		return Elimination, nil
	case "penalty":
		return Penalty, nil
	}
	return 0, fmt.Errorf("constraints: unknown strategy %q", name)
}
