package topology

import (
	"fmt"

	"github.com/julienfausty/Fe2O3/arrays"
)

// Basis is a finite source of cells. Each cell is the ordered list of
// node indices of one element.
type Basis interface {
	Cardinality() int
	Cell(i int) ([]int, bool)
}

// Explicit stores every cell in memory. Suited to unstructured meshes.
type Explicit struct {
	cells arrays.Array[int] // [nCells, nodesPerCell]
}

// NewExplicit wraps a rank 2 connectivity array
func NewExplicit(cells arrays.Array[int]) (*Explicit, error) {
	if cells.Rank() != 2 {
		return nil, fmt.Errorf("%w: connectivity must be rank 2, got shape %v",
			ErrInvalidTopology, cells.Shape)
	}
	if cells.Dim(1) == 0 && cells.Dim(0) > 0 {
		return nil, fmt.Errorf("%w: cells with no nodes", ErrInvalidTopology)
	}
	return &Explicit{cells: cells}, nil
}

// ExplicitFromCells copies a list of equally sized cells into flat storage
func ExplicitFromCells(cells [][]int) (*Explicit, error) {
	if len(cells) == 0 {
		return NewExplicit(arrays.Zeros[int](0, 0))
	}
	np := len(cells[0])
	flat := make([]int, 0, len(cells)*np)
	for i, c := range cells {
		if len(c) != np {
			return nil, fmt.Errorf("%w: cell %d has %d nodes, expected %d",
				ErrInvalidTopology, i, len(c), np)
		}
		flat = append(flat, c...)
	}
	a, err := arrays.New(flat, len(cells), np)
	if err != nil {
		return nil, err
	}
	return NewExplicit(a)
}

func (b *Explicit) Cardinality() int { return b.cells.Dim(0) }

func (b *Explicit) Cell(i int) ([]int, bool) {
	row := b.cells.Row(i)
	return row, row != nil
}

// Implicit generates cells on demand from a closure, for structured grids
// where storing the connectivity is wasteful.
type Implicit struct {
	cardinality int
	generate    func(i int) []int
}

// NewImplicit builds a basis of n cells produced by generate
func NewImplicit(n int, generate func(i int) []int) *Implicit {
	return &Implicit{cardinality: n, generate: generate}
}

func (b *Implicit) Cardinality() int { return b.cardinality }

func (b *Implicit) Cell(i int) ([]int, bool) {
	if i < 0 || i >= b.cardinality || b.generate == nil {
		return nil, false
	}
	c := b.generate(i)
	return c, c != nil
}

// LineChain is the structured 1D basis of n two-node segments {i, i+1}
func LineChain(n int) *Implicit {
	return NewImplicit(n, func(i int) []int {
		return []int{i, i + 1}
	})
}

// TriGrid triangulates an nx by ny grid of quads, two counter-clockwise
// triangles per quad. Node (i,j) has index j*(nx+1)+i.
func TriGrid(nx, ny int) *Implicit {
	return NewImplicit(2*nx*ny, func(k int) []int {
		q := k / 2
		i, j := q%nx, q/nx
		n0 := j*(nx+1) + i
		n1 := n0 + 1
		n2 := n0 + nx + 1
		n3 := n2 + 1
		if k%2 == 0 {
			return []int{n0, n1, n3}
		}
		return []int{n0, n3, n2}
	})
}

// LineCoords places n+1 equally spaced nodes on [0, length]
func LineCoords(n int, length float64) arrays.Array[float64] {
	c := arrays.Zeros[float64](n+1, 1)
	for i := 0; i <= n; i++ {
		c.Data[i] = length * float64(i) / float64(n)
	}
	return c
}

// GridCoords places the nodes of TriGrid(nx, ny) on [0,lx]x[0,ly]
func GridCoords(nx, ny int, lx, ly float64) arrays.Array[float64] {
	c := arrays.Zeros[float64]((nx+1)*(ny+1), 2)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			row := c.Row(j*(nx+1) + i)
			row[0] = lx * float64(i) / float64(nx)
			row[1] = ly * float64(j) / float64(ny)
		}
	}
	return c
}
