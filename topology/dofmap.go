package topology

import (
	"fmt"
	"slices"
)

// FieldSlot locates a field inside the per-node or per-element component block
type FieldSlot struct {
	Location   Location
	Offset     int // First component index of the field within the block
	Components int
}

// DofMap numbers the unknowns of a mesh. Node DOFs come first, ordered by
// ascending node then component; element DOFs follow, ordered by ascending
// element then component. It is read-only once built.
type DofMap struct {
	nNodes   int
	nElems   int
	perNode  int // Components carried by every node
	perElem  int // Components carried by every element
	elemBase int // First element DOF

	fields FieldSpec
	slots  map[string]FieldSlot

	// Element-to-DOF connectivity as a flat arena
	elemDofs    []int
	elemOffsets []int // len nElems+1
}

// Build numbers the DOFs of mesh for the fields in spec. The result depends
// only on its inputs: two builds from the same mesh and spec are equal.
func Build(mesh *Mesh, spec FieldSpec) (*DofMap, error) {
	if mesh == nil {
		return nil, invalid(-1, -1, -1, "nil mesh")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	dm := &DofMap{
		nNodes:  mesh.NumNodes(),
		nElems:  mesh.NumElements(),
		perNode: spec.components(AtNodes),
		perElem: spec.components(AtElements),
		fields:  slices.Clone(spec),
		slots:   make(map[string]FieldSlot, len(spec)),
	}
	dm.elemBase = dm.nNodes * dm.perNode

	offsets := map[Location]int{}
	for _, f := range spec {
		dm.slots[f.Name] = FieldSlot{Location: f.Location, Offset: offsets[f.Location], Components: f.Components}
		offsets[f.Location] += f.Components
	}

	// size the arena first so the fill below never reallocates
	dm.elemOffsets = make([]int, dm.nElems+1)
	for e := 0; e < dm.nElems; e++ {
		dm.elemOffsets[e+1] = dm.elemOffsets[e] + len(mesh.ElementNodes(e))*dm.perNode + dm.perElem
	}
	dm.elemDofs = make([]int, dm.elemOffsets[dm.nElems])
	for e := 0; e < dm.nElems; e++ {
		k := dm.elemOffsets[e]
		for _, n := range mesh.ElementNodes(e) {
			for c := 0; c < dm.perNode; c++ {
				dm.elemDofs[k] = n*dm.perNode + c
				k++
			}
		}
		for c := 0; c < dm.perElem; c++ {
			dm.elemDofs[k] = dm.elemBase + e*dm.perElem + c
			k++
		}
	}
	return dm, nil
}

// NumDofs returns the size of the global system
func (dm *DofMap) NumDofs() int { return dm.elemBase + dm.nElems*dm.perElem }

func (dm *DofMap) NumNodes() int    { return dm.nNodes }
func (dm *DofMap) NumElements() int { return dm.nElems }

// ComponentsPerNode returns the number of node DOFs of every node
func (dm *DofMap) ComponentsPerNode() int { return dm.perNode }

// ComponentsPerElement returns the number of element-located DOFs of every element
func (dm *DofMap) ComponentsPerElement() int { return dm.perElem }

// Fields returns a copy of the field spec the map was built from
func (dm *DofMap) Fields() FieldSpec { return slices.Clone(dm.fields) }

// FieldSlot returns where the named field sits in its component block
func (dm *DofMap) FieldSlot(name string) (FieldSlot, bool) {
	s, ok := dm.slots[name]
	return s, ok
}

// NodeDof returns the global DOF of component comp at node
func (dm *DofMap) NodeDof(node, comp int) (int, error) {
	if node < 0 || node >= dm.nNodes || comp < 0 || comp >= dm.perNode {
		return -1, fmt.Errorf("%w: no DOF for node %d component %d", ErrInvalidTopology, node, comp)
	}
	return node*dm.perNode + comp, nil
}

// FieldDof returns the global DOF of component comp of the named node field
func (dm *DofMap) FieldDof(name string, node, comp int) (int, error) {
	s, ok := dm.slots[name]
	if !ok || s.Location != AtNodes {
		return -1, fmt.Errorf("%w: no node field %q", ErrInvalidTopology, name)
	}
	if comp < 0 || comp >= s.Components {
		return -1, fmt.Errorf("%w: field %q has %d components, asked for %d",
			ErrInvalidTopology, name, s.Components, comp)
	}
	return dm.NodeDof(node, s.Offset+comp)
}

// ElementDof returns the global DOF of element-located component comp of elem
func (dm *DofMap) ElementDof(elem, comp int) (int, error) {
	if elem < 0 || elem >= dm.nElems || comp < 0 || comp >= dm.perElem {
		return -1, fmt.Errorf("%w: no DOF for element %d component %d", ErrInvalidTopology, elem, comp)
	}
	return dm.elemBase + elem*dm.perElem + comp, nil
}

// ElementDofs returns the ordered DOF list of element e. The slice shares the
// map's storage and must not be modified.
func (dm *DofMap) ElementDofs(e int) []int {
	if e < 0 || e >= dm.nElems {
		return nil
	}
	lo, hi := dm.elemOffsets[e], dm.elemOffsets[e+1]
	return dm.elemDofs[lo:hi:hi]
}

// Owner is the inverse of the numbering: it reports whether dof belongs to
// a node or an element, which one, and which component
func (dm *DofMap) Owner(dof int) (loc Location, entity, comp int, err error) {
	switch {
	case dof < 0 || dof >= dm.NumDofs():
		return 0, -1, -1, fmt.Errorf("%w: DOF %d outside [0,%d)", ErrInvalidTopology, dof, dm.NumDofs())
	case dof < dm.elemBase:
		return AtNodes, dof / dm.perNode, dof % dm.perNode, nil
	default:
		d := dof - dm.elemBase
		return AtElements, d / dm.perElem, d % dm.perElem, nil
	}
}

// Equal reports whether two maps number every DOF identically
func (dm *DofMap) Equal(o *DofMap) bool {
	if dm == nil || o == nil {
		return dm == o
	}
	return dm.nNodes == o.nNodes &&
		dm.nElems == o.nElems &&
		dm.perNode == o.perNode &&
		dm.perElem == o.perElem &&
		slices.Equal(dm.fields, o.fields) &&
		slices.Equal(dm.elemOffsets, o.elemOffsets) &&
		slices.Equal(dm.elemDofs, o.elemDofs)
}
