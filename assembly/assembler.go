package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/julienfausty/Fe2O3/element"
	"github.com/julienfausty/Fe2O3/partitions"
	"github.com/julienfausty/Fe2O3/sparsity"
	"github.com/julienfausty/Fe2O3/topology"
	"github.com/julienfausty/Fe2O3/utils"
)

// Strategy selects how concurrent scatter-adds are kept race free
type Strategy int

const (
	// Coloring processes DOF-disjoint color classes one after another, the
	// elements of a class in parallel without locks. Sums may differ from a
	// serial assembly by floating-point reassociation.
	Coloring Strategy = iota

	// RowLocks scatters element rows under striped row mutexes. Sums may
	// differ from a serial assembly by floating-point reassociation.
	RowLocks

	// Reduction evaluates fixed-size element chunks in parallel into private
	// buffers merged in element order. Results are bitwise identical to a
	// serial assembly for any worker count.
	Reduction
)

// DefaultChunkSize is the number of elements per work unit for RowLocks and Reduction
const DefaultChunkSize = 64

func (s Strategy) String() string {
	switch s {
	case Coloring:
		return "coloring"
	case RowLocks:
		return "rowlocks"
	case Reduction:
		return "reduction"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	for _, s := range []Strategy{Coloring, RowLocks, Reduction} {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("assembly: unknown strategy %q", name)
}

// Assembler evaluates element kernels and scatter-adds their contributions
// into a global CSR matrix and load vector
type Assembler struct {
	Workers   int                          // Pool size, non-positive means GOMAXPROCS
	Strategy  Strategy                     // Synchronization discipline
	Coloring  partitions.ColoringAlgorithm // Heuristic used by the Coloring strategy
	ChunkSize int                          // Elements per work unit, DefaultChunkSize when unset

	// Chunking splits elements into RowLocks work units: BlockPartition
	// (consecutive) or RoundRobin (cyclic). Reduction always uses blocks so
	// that its merge follows element order.
	Chunking partitions.PartitionStrategy
	Logger    *slog.Logger                 // slog.Default() when nil
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Assembler) chunkSize() int {
	if a.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return a.ChunkSize
}

// Assemble builds the global matrix and load vector of mesh in one call.
// Use Prepare to reuse the element checks and scatter map across passes.
func (a *Assembler) Assemble(ctx context.Context, mesh *topology.Mesh, dm *topology.DofMap,
	pattern *sparsity.Pattern, reg *element.Registry) (*sparsity.Matrix, []float64, error) {
	plan, err := a.Prepare(mesh, dm, pattern, reg)
	if err != nil {
		return nil, nil, err
	}
	return plan.Assemble(ctx)
}

// Plan is a validated, reusable assembly recipe. Its inputs are read-only.
type Plan struct {
	asm     Assembler
	mesh    *topology.Mesh
	dm      *topology.DofMap
	pattern *sparsity.Pattern
	kernels []element.Kernel // Resolved kernel per element
	scatter *ScatterMap
	layout  *partitions.PartitionLayout
}

// Prepare resolves every element's kernel, checks local sizes against the
// DOF map, and precomputes the scatter map and work partitions
func (a *Assembler) Prepare(mesh *topology.Mesh, dm *topology.DofMap,
	pattern *sparsity.Pattern, reg *element.Registry) (*Plan, error) {
	if mesh == nil || dm == nil || pattern == nil || reg == nil {
		return nil, fmt.Errorf("assembly: nil input")
	}
	if dm.NumElements() != mesh.NumElements() {
		return nil, fmt.Errorf("%w: dof map has %d elements, mesh has %d",
			ErrDimensionMismatch, dm.NumElements(), mesh.NumElements())
	}
	if pattern.NumRows() != dm.NumDofs() {
		return nil, fmt.Errorf("%w: pattern has %d rows for %d dofs",
			ErrPatternMismatch, pattern.NumRows(), dm.NumDofs())
	}

	p := &Plan{
		asm:     *a,
		mesh:    mesh,
		dm:      dm,
		pattern: pattern,
		kernels: make([]element.Kernel, mesh.NumElements()),
	}
	byTag := make(map[string]element.Kernel)
	for e := range p.kernels {
		tag := mesh.ElementTag(e)
		k, ok := byTag[tag]
		if !ok {
			var err error
			if k, err = reg.Lookup(tag); err != nil {
				return nil, &ElementError{Element: e, Tag: tag, Err: err}
			}
			byTag[tag] = k
		}
		if nodes, want := len(mesh.ElementNodes(e)), k.Properties().NumNodes; nodes != want {
			return nil, &ElementError{Element: e, Tag: tag, Err: fmt.Errorf(
				"%w: element has %d nodes, kernel expects %d", ErrDimensionMismatch, nodes, want)}
		}
		if dofs, want := len(dm.ElementDofs(e)), k.LocalDOF(); dofs != want {
			return nil, &ElementError{Element: e, Tag: tag, Err: fmt.Errorf(
				"%w: element has %d dofs, kernel expects %d", ErrDimensionMismatch, dofs, want)}
		}
		p.kernels[e] = k
	}

	scatter, err := NewScatterMap(dm, pattern)
	if err != nil {
		var ee *ElementError
		if errors.As(err, &ee) {
			ee.Tag = mesh.ElementTag(ee.Element)
		}
		return nil, err
	}
	p.scatter = scatter

	if p.layout, err = p.partition(dm); err != nil {
		return nil, err
	}
	return p, nil
}

// partition splits the elements of conn into work units for the strategy
func (p *Plan) partition(conn sparsity.Connectivity) (*partitions.PartitionLayout, error) {
	pb := &partitions.PartitionBuilder{
		Conn:                conn,
		TargetPartitionSize: p.asm.chunkSize(),
		Strategy:            partitions.BlockPartition,
		Coloring:            p.asm.Coloring,
	}
	switch p.asm.Strategy {
	case Coloring:
		pb.Strategy = partitions.ColorPartition
	case RowLocks:
		switch p.asm.Chunking {
		case partitions.BlockPartition, partitions.RoundRobin:
			pb.Strategy = p.asm.Chunking
		default:
			return nil, fmt.Errorf("assembly: unknown chunking %v", p.asm.Chunking)
		}
	case Reduction:
	default:
		return nil, fmt.Errorf("assembly: unknown strategy %v", p.asm.Strategy)
	}
	return pb.BuildPartitions()
}

// ScatterMap exposes the element to CSR slot map
func (p *Plan) ScatterMap() *ScatterMap { return p.scatter }

// Layout exposes the work partitions of the full mesh
func (p *Plan) Layout() *partitions.PartitionLayout { return p.layout }

// Assemble evaluates every element. On failure nothing is returned.
func (p *Plan) Assemble(ctx context.Context) (*sparsity.Matrix, []float64, error) {
	return p.run(ctx, p.layout, nil)
}

// AssembleSubset assembles only the listed elements into a full size system
func (p *Plan) AssembleSubset(ctx context.Context, elems []int) (*sparsity.Matrix, []float64, error) {
	sorted := slices.Clone(elems)
	slices.Sort(sorted)
	for i, e := range sorted {
		if e < 0 || e >= p.mesh.NumElements() {
			return nil, nil, fmt.Errorf("assembly: element %d out of range", e)
		}
		if i > 0 && sorted[i-1] == e {
			return nil, nil, fmt.Errorf("assembly: element %d listed twice", e)
		}
	}
	layout, err := p.partition(subset{conn: p.dm, elems: sorted})
	if err != nil {
		return nil, nil, err
	}
	return p.run(ctx, layout, sorted)
}

// subset views a list of elements as a connectivity of its own
type subset struct {
	conn  sparsity.Connectivity
	elems []int
}

func (s subset) NumElements() int        { return len(s.elems) }
func (s subset) ElementDofs(i int) []int { return s.conn.ElementDofs(s.elems[i]) }

func (p *Plan) run(ctx context.Context, layout *partitions.PartitionLayout, elems []int) (*sparsity.Matrix, []float64, error) {
	start := time.Now()
	values := make([]float64, p.pattern.NNZ())
	load := make([]float64, p.dm.NumDofs())
	global := func(i int) int {
		if elems == nil {
			return i
		}
		return elems[i]
	}

	pool := utils.NewPool(p.asm.Workers)
	var err error
	switch p.asm.Strategy {
	case Coloring:
		err = p.runColored(ctx, pool, layout, global, values, load)
	case RowLocks:
		err = p.runLocked(ctx, pool, layout, global, values, load)
	case Reduction:
		err = p.runReduced(ctx, pool, layout, global, values, load)
	}
	if err != nil {
		return nil, nil, err
	}

	m, err := sparsity.NewMatrixFrom(p.pattern, values)
	if err != nil {
		return nil, nil, err
	}
	stats := layout.PartitionStatistics()
	p.asm.logger().Debug("assembled global system",
		"strategy", p.asm.Strategy.String(),
		"elements", layout.TotalElements,
		"partitions", layout.NumPartitions,
		"imbalance", stats.Imbalance,
		"workers", pool.Size(),
		"dofs", p.dm.NumDofs(),
		"nnz", p.pattern.NNZ(),
		"elapsed", time.Since(start))
	return m, load, nil
}

func (p *Plan) runColored(ctx context.Context, pool *utils.Pool, layout *partitions.PartitionLayout,
	global func(int) int, values, load []float64) error {
	for _, part := range layout.Partitions {
		chunks := utils.SplitRange(part.NumElements, 4*pool.Size())
		err := pool.Run(ctx, len(chunks), func(_ context.Context, c int) error {
			for _, le := range part.Elements[chunks[c].Lo:chunks[c].Hi] {
				e := global(le)
				loc, err := p.evaluate(e)
				if err != nil {
					return err
				}
				p.scatterAdd(e, loc, values, load)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Plan) runLocked(ctx context.Context, pool *utils.Pool, layout *partitions.PartitionLayout,
	global func(int) int, values, load []float64) error {
	stripes := make([]sync.Mutex, 64*pool.Size())
	return pool.Run(ctx, layout.NumPartitions, func(_ context.Context, pi int) error {
		for _, le := range layout.Partitions[pi].Elements {
			e := global(le)
			loc, err := p.evaluate(e)
			if err != nil {
				return err
			}
			dofs := p.dm.ElementDofs(e)
			slots := p.scatter.Slots(e)
			n := len(dofs)
			for i, r := range dofs {
				mu := &stripes[r%len(stripes)]
				mu.Lock()
				row := loc.K.RawRowView(i)
				for j := 0; j < n; j++ {
					values[slots[i*n+j]] += row[j]
				}
				load[r] += loc.F.AtVec(i)
				mu.Unlock()
			}
		}
		return nil
	})
}

func (p *Plan) runReduced(ctx context.Context, pool *utils.Pool, layout *partitions.PartitionLayout,
	global func(int) int, values, load []float64) error {
	parts := layout.Partitions
	wave := 2 * pool.Size()
	for start := 0; start < len(parts); start += wave {
		end := min(start+wave, len(parts))
		locals := make([][]*element.Local, end-start)
		err := pool.Run(ctx, end-start, func(_ context.Context, w int) error {
			part := parts[start+w]
			out := make([]*element.Local, part.NumElements)
			for i, le := range part.Elements {
				loc, err := p.evaluate(global(le))
				if err != nil {
					return err
				}
				out[i] = loc
			}
			locals[w] = out
			return nil
		})
		if err != nil {
			return err
		}
		// merge in element order
		for w, out := range locals {
			for i, le := range parts[start+w].Elements {
				p.scatterAdd(global(le), out[i], values, load)
			}
		}
	}
	return nil
}

// evaluate runs the kernel of element e and checks the shape of its output
func (p *Plan) evaluate(e int) (*element.Local, error) {
	k := p.kernels[e]
	loc, err := k.Evaluate(p.mesh.ElementCoords(e), element.Params(p.mesh.ElementParams(e)))
	if err != nil {
		return nil, &ElementError{Element: e, Tag: p.mesh.ElementTag(e), Err: err}
	}
	n := k.LocalDOF()
	if loc == nil || loc.K == nil || loc.F == nil {
		return nil, &ElementError{Element: e, Tag: p.mesh.ElementTag(e),
			Err: fmt.Errorf("%w: kernel returned no contribution", ErrDimensionMismatch)}
	}
	if r, c := loc.K.Dims(); r != n || c != n || loc.F.Len() != n {
		return nil, &ElementError{Element: e, Tag: p.mesh.ElementTag(e), Err: fmt.Errorf(
			"%w: kernel returned %dx%d matrix and %d-vector for %d local dofs",
			ErrDimensionMismatch, r, c, loc.F.Len(), n)}
	}
	return loc, nil
}

// scatterAdd accumulates one element contribution. Callers guarantee that
// no other goroutine writes the same rows concurrently.
func (p *Plan) scatterAdd(e int, loc *element.Local, values, load []float64) {
	dofs := p.dm.ElementDofs(e)
	slots := p.scatter.Slots(e)
	n := len(dofs)
	for i, r := range dofs {
		row := loc.K.RawRowView(i)
		for j := 0; j < n; j++ {
			values[slots[i*n+j]] += row[j]
		}
		load[r] += loc.F.AtVec(i)
	}
}
