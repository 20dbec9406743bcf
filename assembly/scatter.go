package assembly

import (
	"fmt"

	"github.com/julienfausty/Fe2O3/sparsity"
)

// ScatterMap holds, for every element, the CSR slot of each local (i,j)
// entry. It is computed once per pattern and reused by every assembly pass.
type ScatterMap struct {
	slots   []int // Flat arena, element e occupies slots[offsets[e]:offsets[e+1]] row-major
	offsets []int // len NumElements+1
}

// NewScatterMap resolves every local entry of every element against p
func NewScatterMap(conn sparsity.Connectivity, p *sparsity.Pattern) (*ScatterMap, error) {
	n := conn.NumElements()
	sm := &ScatterMap{offsets: make([]int, n+1)}
	for e := 0; e < n; e++ {
		k := len(conn.ElementDofs(e))
		sm.offsets[e+1] = sm.offsets[e] + k*k
	}
	sm.slots = make([]int, sm.offsets[n])

	for e := 0; e < n; e++ {
		dofs := conn.ElementDofs(e)
		pos := sm.offsets[e]
		for _, r := range dofs {
			for _, c := range dofs {
				slot := p.Find(r, c)
				if slot < 0 {
					return nil, &ElementError{Element: e, Err: fmt.Errorf(
						"%w: entry (%d,%d) missing", ErrPatternMismatch, r, c)}
				}
				sm.slots[pos] = slot
				pos++
			}
		}
	}
	return sm, nil
}

// Slots returns the row-major slot block of element e
func (sm *ScatterMap) Slots(e int) []int {
	lo, hi := sm.offsets[e], sm.offsets[e+1]
	return sm.slots[lo:hi:hi]
}

// Size returns the total number of local entries scattered per pass
func (sm *ScatterMap) Size() int { return len(sm.slots) }
