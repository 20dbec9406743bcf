package distribute

import (
	"errors"
	"fmt"

	"github.com/julienfausty/Fe2O3/arrays"
	"github.com/julienfausty/Fe2O3/topology"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch is returned when a solution vector does not have
	// one entry per DOF
	ErrLengthMismatch = errors.New("distribute: solution length mismatch")

	// ErrOutOfRange is returned for node, element, component or field
	// lookups that the DOF map does not know
	ErrOutOfRange = errors.New("distribute: index out of range")
)

// Solution maps a global solution vector back onto mesh entities. It owns a
// copy of the vector.
type Solution struct {
	dm *topology.DofMap
	x  []float64
}

// Distribute wraps x, numbered by dm, for entity-level access
func Distribute(x []float64, dm *topology.DofMap) (*Solution, error) {
	if dm == nil {
		return nil, fmt.Errorf("distribute: nil dof map")
	}
	if len(x) != dm.NumDofs() {
		return nil, fmt.Errorf("%w: %d values for %d dofs", ErrLengthMismatch, len(x), dm.NumDofs())
	}
	return &Solution{dm: dm, x: append([]float64(nil), x...)}, nil
}

// Values returns a copy of the global vector
func (s *Solution) Values() []float64 { return append([]float64(nil), s.x...) }

// At returns component comp of the node block of node
func (s *Solution) At(node, comp int) (float64, error) {
	d, err := s.dm.NodeDof(node, comp)
	if err != nil {
		return 0, fmt.Errorf("%w: node %d component %d", ErrOutOfRange, node, comp)
	}
	return s.x[d], nil
}

// Node returns a copy of every component of node
func (s *Solution) Node(node int) ([]float64, error) {
	if node < 0 || node >= s.dm.NumNodes() {
		return nil, fmt.Errorf("%w: node %d", ErrOutOfRange, node)
	}
	per := s.dm.ComponentsPerNode()
	return append([]float64(nil), s.x[node*per:(node+1)*per]...), nil
}

// ElementAt returns element-located component comp of elem
func (s *Solution) ElementAt(elem, comp int) (float64, error) {
	d, err := s.dm.ElementDof(elem, comp)
	if err != nil {
		return 0, fmt.Errorf("%w: element %d component %d", ErrOutOfRange, elem, comp)
	}
	return s.x[d], nil
}

// Field extracts the named field as an [entities, components] array, one
// row per node or per element depending on where the field lives
func (s *Solution) Field(name string) (arrays.Array[float64], error) {
	slot, ok := s.dm.FieldSlot(name)
	if !ok {
		return arrays.Array[float64]{}, fmt.Errorf("%w: no field %q", ErrOutOfRange, name)
	}
	var (
		entities int
		dof      func(entity, comp int) (int, error)
	)
	switch slot.Location {
	case topology.AtNodes:
		entities, dof = s.dm.NumNodes(), s.dm.NodeDof
	default:
		entities, dof = s.dm.NumElements(), s.dm.ElementDof
	}

	out := arrays.Zeros[float64](entities, slot.Components)
	for e := 0; e < entities; e++ {
		row := out.Row(e)
		for c := range row {
			d, err := dof(e, slot.Offset+c)
			if err != nil {
				return arrays.Array[float64]{}, err
			}
			row[c] = s.x[d]
		}
	}
	return out, nil
}

// Magnitude returns the Euclidean norm of the named field per entity
func (s *Solution) Magnitude(name string) ([]float64, error) {
	f, err := s.Field(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, f.Dim(0))
	for i := range out {
		out[i] = floats.Norm(f.Row(i), 2)
	}
	return out, nil
}
