package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/julienfausty/Fe2O3/config"
	"github.com/julienfausty/Fe2O3/constraints"
	"github.com/julienfausty/Fe2O3/distribute"
	"github.com/julienfausty/Fe2O3/element"
	"github.com/julienfausty/Fe2O3/solver"
	"github.com/julienfausty/Fe2O3/sparsity"
	"github.com/julienfausty/Fe2O3/topology"
)

// NodalValue addresses one component of the node DOF block
type NodalValue struct {
	Node      int
	Component int
	Value     float64
}

// Problem is a linear static analysis: a mesh with its fields and kernels,
// boundary conditions and nodal loads
type Problem struct {
	Mesh     *topology.Mesh
	Fields   topology.FieldSpec
	Registry *element.Registry

	Supports    []NodalValue    // Prescribed node values
	Loads       []NodalValue    // Point loads added to the assembled load vector
	Constraints constraints.Set // Extra constraints in global DOF numbering

	Logger *slog.Logger
}

// Result holds the solution and the intermediate products of a run
type Result struct {
	ID        uuid.UUID // Tags every log record of the run
	DofMap    *topology.DofMap
	Pattern   *sparsity.Pattern
	Solution  *distribute.Solution
	Reactions []float64 // K u - f of the unconstrained system
	Backend   string
	Elapsed   time.Duration
}

// Run numbers the DOFs, assembles, constrains, solves and distributes.
// A nil cfg means config.Default().
func Run(ctx context.Context, p *Problem, cfg *config.Config) (*Result, error) {
	start := time.Now()
	if p == nil || p.Mesh == nil || p.Registry == nil {
		return nil, fmt.Errorf("analysis: incomplete problem")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	logger = logger.With("run", id.String())

	asm, err := cfg.Assembler()
	if err != nil {
		return nil, err
	}
	asm.Logger = logger
	copts, err := cfg.ConstraintOptions()
	if err != nil {
		return nil, err
	}
	copts.Logger = logger
	sopts, err := cfg.SolverOptions()
	if err != nil {
		return nil, err
	}
	sopts.Logger = logger
	backend, err := solver.New(sopts)
	if err != nil {
		return nil, err
	}

	dm, err := topology.Build(p.Mesh, p.Fields)
	if err != nil {
		return nil, err
	}
	pattern, err := sparsity.Build(dm, dm.NumDofs(), asm.Workers)
	if err != nil {
		return nil, err
	}
	k, f, err := asm.Assemble(ctx, p.Mesh, dm, pattern, p.Registry)
	if err != nil {
		return nil, err
	}

	for _, l := range p.Loads {
		d, err := dm.NodeDof(l.Node, l.Component)
		if err != nil {
			return nil, fmt.Errorf("analysis: load: %w", err)
		}
		f[d] += l.Value
	}
	set := constraints.Set{
		Fixed:  append([]constraints.Fixed(nil), p.Constraints.Fixed...),
		Linear: p.Constraints.Linear,
	}
	for _, s := range p.Supports {
		d, err := dm.NodeDof(s.Node, s.Component)
		if err != nil {
			return nil, fmt.Errorf("analysis: support: %w", err)
		}
		set.Fix(d, s.Value)
	}
	sys, err := constraints.Apply(k, f, set, copts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := backend.Solve(sys.Matrix, sys.Load)
	if err != nil {
		return nil, err
	}
	u, err := sys.Recover(x)
	if err != nil {
		return nil, err
	}
	sol, err := distribute.Distribute(u, dm)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:        id,
		DofMap:    dm,
		Pattern:   pattern,
		Solution:  sol,
		Reactions: constraints.Reactions(k, f, u),
		Backend:   backend.Name(),
		Elapsed:   time.Since(start),
	}
	logger.Info("analysis complete",
		"elements", p.Mesh.NumElements(),
		"dofs", dm.NumDofs(),
		"nnz", pattern.NNZ(),
		"constraints", set.Len(),
		"assembly", asm.Strategy.String(),
		"backend", res.Backend,
		"elapsed", res.Elapsed)
	return res, nil
}
