package topology

import (
	"fmt"
	"sort"

	"github.com/julienfausty/Fe2O3/arrays"
	"gonum.org/v1/gonum/mat"
)

// Block is a group of elements sharing a type tag and a material section
type Block struct {
	Tag      string             // Element type, resolved against the kernel registry
	Topology Basis              // Cell source
	Params   map[string]float64 // Material/physics parameters for every element of the block
}

// Mesh is the immutable node/element structure handed over by a mesh
// importer. Elements are numbered block by block in declaration order.
type Mesh struct {
	Coords arrays.Array[float64] // [nNodes, dim]
	Blocks []Block

	offsets []int // offsets[b] = global index of the first element of block b
}

// NewMesh validates the input and fixes the global element numbering
func NewMesh(coords arrays.Array[float64], blocks ...Block) (*Mesh, error) {
	m := &Mesh{Coords: coords, Blocks: blocks}
	m.offsets = make([]int, len(blocks)+1)
	for b, blk := range blocks {
		if blk.Topology == nil {
			return nil, invalid(b, -1, -1, "block has no topology")
		}
		m.offsets[b+1] = m.offsets[b] + blk.Topology.Cardinality()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the coordinate array and that every cell references
// existing nodes
func (m *Mesh) Validate() error {
	if m.Coords.Rank() != 2 {
		return invalid(-1, -1, -1, fmt.Sprintf("coordinates must be rank 2, got shape %v", m.Coords.Shape))
	}
	if m.Coords.Len() != m.Coords.Dim(0)*m.Coords.Dim(1) {
		return invalid(-1, -1, -1, "coordinate data does not match its shape")
	}
	if m.Coords.Dim(0) > 0 && m.Coords.Dim(1) == 0 {
		return invalid(-1, -1, -1, "nodes have no coordinates")
	}
	if len(m.offsets) != len(m.Blocks)+1 {
		return invalid(-1, -1, -1, "mesh was not built with NewMesh")
	}
	nNodes := m.NumNodes()
	for b, blk := range m.Blocks {
		if blk.Tag == "" {
			return invalid(b, -1, -1, "empty element type tag")
		}
		for i := 0; i < blk.Topology.Cardinality(); i++ {
			e := m.offsets[b] + i
			cell, ok := blk.Topology.Cell(i)
			if !ok || len(cell) == 0 {
				return invalid(b, e, -1, "element has no nodes")
			}
			for _, n := range cell {
				if n < 0 || n >= nNodes {
					return invalid(b, e, n, fmt.Sprintf("mesh has %d nodes", nNodes))
				}
			}
		}
	}
	return nil
}

// NumNodes returns the number of nodes
func (m *Mesh) NumNodes() int { return m.Coords.Dim(0) }

// Dim returns the spatial dimension of the coordinates
func (m *Mesh) Dim() int { return m.Coords.Dim(1) }

// NumElements returns the total element count over all blocks
func (m *Mesh) NumElements() int { return m.offsets[len(m.offsets)-1] }

// Locate returns the block and block-local index of global element e
func (m *Mesh) Locate(e int) (block, local int) {
	if e < 0 || e >= m.NumElements() {
		return -1, -1
	}
	// first offset strictly greater than e, minus one
	b := sort.SearchInts(m.offsets, e+1) - 1
	return b, e - m.offsets[b]
}

// ElementNodes returns the node list of element e. The slice must not be
// modified.
func (m *Mesh) ElementNodes(e int) []int {
	b, local := m.Locate(e)
	if b < 0 {
		return nil
	}
	cell, _ := m.Blocks[b].Topology.Cell(local)
	return cell
}

// ElementTag returns the element type tag of element e
func (m *Mesh) ElementTag(e int) string {
	b, _ := m.Locate(e)
	if b < 0 {
		return ""
	}
	return m.Blocks[b].Tag
}

// ElementParams returns the material section of element e
func (m *Mesh) ElementParams(e int) map[string]float64 {
	b, _ := m.Locate(e)
	if b < 0 {
		return nil
	}
	return m.Blocks[b].Params
}

// ElementCoords gathers the coordinates of element e into a
// (nodes x dim) matrix
func (m *Mesh) ElementCoords(e int) *mat.Dense {
	nodes := m.ElementNodes(e)
	if nodes == nil {
		return nil
	}
	dim := m.Dim()
	x := mat.NewDense(len(nodes), dim, nil)
	for i, n := range nodes {
		x.SetRow(i, m.Coords.Row(n))
	}
	return x
}
