package sparsity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/julienfausty/Fe2O3/utils"
)

// ErrOutOfRange is returned when an element lists a DOF outside [0,nDofs)
var ErrOutOfRange = errors.New("sparsity: dof out of range")

// Connectivity is the element-to-DOF map the pattern is derived from
type Connectivity interface {
	NumElements() int
	ElementDofs(e int) []int
}

// Pattern is a finalized compressed-row nonzero structure. Columns are
// sorted within each row and every row holds its diagonal.
type Pattern struct {
	RowPtr []int // len NumRows+1
	ColIdx []int // len NNZ
}

// Build derives the pattern as the union over elements of the dense block
// of each element's DOF list. Rows are computed independently by a pool
// of workers, so the result does not depend on the worker count.
func Build(conn Connectivity, nDofs, workers int) (*Pattern, error) {
	if nDofs < 0 {
		return nil, fmt.Errorf("sparsity: negative size %d", nDofs)
	}
	nElems := conn.NumElements()

	// invert element -> dofs into dof -> elements
	dofElemPtr := make([]int, nDofs+1)
	for e := 0; e < nElems; e++ {
		for _, d := range conn.ElementDofs(e) {
			if d < 0 || d >= nDofs {
				return nil, fmt.Errorf("%w: element %d lists dof %d, system has %d",
					ErrOutOfRange, e, d, nDofs)
			}
			dofElemPtr[d+1]++
		}
	}
	for d := 0; d < nDofs; d++ {
		dofElemPtr[d+1] += dofElemPtr[d]
	}
	dofElems := make([]int, dofElemPtr[nDofs])
	fill := slices.Clone(dofElemPtr[:nDofs])
	for e := 0; e < nElems; e++ {
		for _, d := range conn.ElementDofs(e) {
			dofElems[fill[d]] = e
			fill[d]++
		}
	}

	// each block of rows produces its own CSR fragment
	type fragment struct {
		rowLen []int
		cols   []int
	}
	blocks := utils.SplitRange(nDofs, 4*utils.Workers(workers))
	frags := make([]fragment, len(blocks))
	pool := utils.NewPool(workers)
	err := pool.Run(context.Background(), len(blocks), func(_ context.Context, b int) error {
		blk := blocks[b]
		f := fragment{rowLen: make([]int, blk.Len())}
		var row []int
		for r := blk.Lo; r < blk.Hi; r++ {
			row = append(row[:0], r)
			for _, e := range dofElems[dofElemPtr[r]:dofElemPtr[r+1]] {
				row = append(row, conn.ElementDofs(e)...)
			}
			slices.Sort(row)
			row = slices.Compact(row)
			f.rowLen[r-blk.Lo] = len(row)
			f.cols = append(f.cols, row...)
		}
		frags[b] = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	p := &Pattern{RowPtr: make([]int, nDofs+1)}
	for b, blk := range blocks {
		for i, n := range frags[b].rowLen {
			p.RowPtr[blk.Lo+i+1] = p.RowPtr[blk.Lo+i] + n
		}
	}
	p.ColIdx = make([]int, 0, p.RowPtr[nDofs])
	for _, f := range frags {
		p.ColIdx = append(p.ColIdx, f.cols...)
	}
	return p, nil
}

// FromRows builds a pattern from explicit column lists. Columns are sorted,
// deduplicated and the diagonal is added.
func FromRows(rows [][]int) (*Pattern, error) {
	n := len(rows)
	p := &Pattern{RowPtr: make([]int, n+1)}
	for r, cols := range rows {
		row := append([]int{r}, cols...)
		slices.Sort(row)
		row = slices.Compact(row)
		if row[0] < 0 || row[len(row)-1] >= n {
			return nil, fmt.Errorf("%w: row %d has columns outside [0,%d)", ErrOutOfRange, r, n)
		}
		p.ColIdx = append(p.ColIdx, row...)
		p.RowPtr[r+1] = len(p.ColIdx)
	}
	return p, nil
}

// NumRows returns the dimension of the square pattern
func (p *Pattern) NumRows() int { return len(p.RowPtr) - 1 }

// NNZ returns the number of stored entries
func (p *Pattern) NNZ() int { return len(p.ColIdx) }

// Row returns the sorted columns of row r, sharing the pattern's storage
func (p *Pattern) Row(r int) []int {
	if r < 0 || r >= p.NumRows() {
		return nil
	}
	lo, hi := p.RowPtr[r], p.RowPtr[r+1]
	return p.ColIdx[lo:hi:hi]
}

// Find returns the storage slot of (r, c) or -1 when it is not in the pattern
func (p *Pattern) Find(r, c int) int {
	if r < 0 || r >= p.NumRows() {
		return -1
	}
	lo, hi := p.RowPtr[r], p.RowPtr[r+1]
	k := lo + sort.SearchInts(p.ColIdx[lo:hi], c)
	if k < hi && p.ColIdx[k] == c {
		return k
	}
	return -1
}

// Contains reports whether (r, c) may hold a nonzero
func (p *Pattern) Contains(r, c int) bool { return p.Find(r, c) >= 0 }

// Equal reports whether two patterns have the same structure
func (p *Pattern) Equal(o *Pattern) bool {
	return slices.Equal(p.RowPtr, o.RowPtr) && slices.Equal(p.ColIdx, o.ColIdx)
}

// Union merges the structures of p and extra, which must have the same size
func (p *Pattern) Union(extra [][]int) (*Pattern, error) {
	if len(extra) != p.NumRows() {
		return nil, fmt.Errorf("sparsity: union of %d rows with a %d row pattern", len(extra), p.NumRows())
	}
	rows := make([][]int, p.NumRows())
	for r := range rows {
		rows[r] = append(slices.Clone(p.Row(r)), extra[r]...)
	}
	return FromRows(rows)
}

// IsStructurallySymmetric reports whether (r,c) in p implies (c,r) in p
func (p *Pattern) IsStructurallySymmetric() bool {
	for r := 0; r < p.NumRows(); r++ {
		for _, c := range p.Row(r) {
			if !p.Contains(c, r) {
				return false
			}
		}
	}
	return true
}

// Bandwidth returns max |r-c| over the stored entries
func (p *Pattern) Bandwidth() int {
	bw := 0
	for r := 0; r < p.NumRows(); r++ {
		row := p.Row(r)
		if len(row) == 0 {
			continue
		}
		bw = max(bw, r-row[0], row[len(row)-1]-r)
	}
	return bw
}
