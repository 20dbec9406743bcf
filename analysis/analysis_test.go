package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/julienfausty/Fe2O3/assembly"
	"github.com/julienfausty/Fe2O3/config"
	"github.com/julienfausty/Fe2O3/constraints"
	"github.com/julienfausty/Fe2O3/element"
	"github.com/julienfausty/Fe2O3/solver"
	"github.com/julienfausty/Fe2O3/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	length = 2.0
	ea     = 300.0
	load   = 12.0
)

// bar is three nodes and two linear elements fixed at node 0 and pulled at
// node 2. The bar stiffness is k = EA/L.
func bar(t *testing.T) *Problem {
	t.Helper()
	mesh, err := topology.NewMesh(topology.LineCoords(2, length), topology.Block{
		Tag:      "bar",
		Topology: topology.LineChain(2),
		Params:   map[string]float64{"EA": ea},
	})
	require.NoError(t, err)
	reg := element.NewRegistry()
	require.NoError(t, reg.Define("bar", element.Bar{}))
	return &Problem{
		Mesh:     mesh,
		Fields:   topology.Scalar("u"),
		Registry: reg,
		Supports: []NodalValue{{Node: 0, Component: 0, Value: 0}},
		Loads:    []NodalValue{{Node: 2, Component: 0, Value: load}},
	}
}

func configs() map[string]*config.Config {
	out := make(map[string]*config.Config)
	for _, backend := range []struct{ kind, method string }{
		{"direct", "skyline"}, {"direct", "lu"}, {"direct", "cholesky"},
		{"iterative", "cg"}, {"iterative", "gmres"},
	} {
		for _, strategy := range []string{"coloring", "rowlocks", "reduction"} {
			for _, cons := range []string{"elimination", "penalty"} {
				c := config.Default()
				c.Solve.SolverBackend = backend.kind
				if backend.kind == "direct" {
					c.Solve.DirectMethod = backend.method
				} else {
					c.Solve.IterativeMethod = backend.method
					c.Solve.IterativeTolerance = 1e-12
				}
				c.Solve.ConstraintStrategy = cons
				c.Assembly.Strategy = strategy
				c.Assembly.Workers = 2
				out[fmt.Sprintf("%s/%s/%s", backend.method, strategy, cons)] = c
			}
		}
	}
	return out
}

func TestBarClosedForm(t *testing.T) {
	k := ea / length
	for name, cfg := range configs() {
		t.Run(name, func(t *testing.T) {
			res, err := Run(context.Background(), bar(t), cfg)
			require.NoError(t, err)

			tol := 1e-10 * load / k
			if cfg.Solve.ConstraintStrategy == "penalty" {
				tol = 1e-6 * load / k
			}
			u0, err := res.Solution.At(0, 0)
			require.NoError(t, err)
			u1, err := res.Solution.At(1, 0)
			require.NoError(t, err)
			u2, err := res.Solution.At(2, 0)
			require.NoError(t, err)
			assert.InDelta(t, 0, u0, tol)
			assert.InDelta(t, load/(2*k), u1, tol)
			assert.InDelta(t, load/k, u2, tol)

			// the support carries the whole load
			assert.InDelta(t, -load, res.Reactions[0], 1e-6*load)
			assert.InDelta(t, 0, res.Reactions[1], 1e-6*load)
		})
	}
}

func TestBarDefaults(t *testing.T) {
	res, err := Run(context.Background(), bar(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.DofMap.NumDofs())
	assert.Equal(t, 7, res.Pattern.NNZ())
	assert.Equal(t, "skyline", res.Backend)

	u, err := res.Solution.Field("u")
	require.NoError(t, err)
	k := ea / length
	assert.InDeltaSlice(t, []float64{0, load / (2 * k), load / k}, u.Data, 1e-12)
}

func TestRunLogs(t *testing.T) {
	var buf bytes.Buffer
	p := bar(t)
	p.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	res, err := Run(context.Background(), p, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "analysis complete")
	assert.Contains(t, out, "assembled global system")
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.Contains(t, line, "run="+res.ID.String())
	}
}

func TestPrescribedDisplacement(t *testing.T) {
	p := bar(t)
	p.Loads = nil
	p.Supports = append(p.Supports, NodalValue{Node: 2, Value: 0.5})
	res, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	u1, err := res.Solution.At(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, u1, 1e-12)
}

func TestTiedDofs(t *testing.T) {
	// u1 follows u2, so the first element carries the whole load
	p := bar(t)
	p.Constraints.Tie(1, 0, constraints.Term{Dof: 2, Coef: 1})
	res, err := Run(context.Background(), p, nil)
	require.NoError(t, err)
	k := ea / length
	want := load / (2 * k)
	u1, err := res.Solution.At(1, 0)
	require.NoError(t, err)
	u2, err := res.Solution.At(2, 0)
	require.NoError(t, err)
	assert.InDelta(t, want, u1, 1e-12)
	assert.InDelta(t, want, u2, 1e-12)
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Conflict", func(t *testing.T) {
		p := bar(t)
		p.Constraints.Fix(0, 1)
		_, err := Run(ctx, p, nil)
		assert.ErrorIs(t, err, constraints.ErrConstraintConflict)
	})
	t.Run("UnknownElementType", func(t *testing.T) {
		p := bar(t)
		p.Registry = element.NewRegistry()
		_, err := Run(ctx, p, nil)
		assert.ErrorIs(t, err, element.ErrUnknownElementType)
	})
	t.Run("DimensionMismatch", func(t *testing.T) {
		p := bar(t)
		p.Fields = topology.Vector("u", 2)
		_, err := Run(ctx, p, nil)
		assert.ErrorIs(t, err, assembly.ErrDimensionMismatch)
	})
	t.Run("EmptyField", func(t *testing.T) {
		p := bar(t)
		p.Fields = topology.FieldSpec{{Name: "u", Components: 0}}
		_, err := Run(ctx, p, nil)
		assert.ErrorIs(t, err, topology.ErrEmptyField)
	})
	t.Run("Singular", func(t *testing.T) {
		p := bar(t)
		p.Supports = nil
		_, err := Run(ctx, p, nil)
		assert.ErrorIs(t, err, solver.ErrSingularSystem)
	})
	t.Run("DidNotConverge", func(t *testing.T) {
		cfg := config.Default()
		cfg.Solve.SolverBackend = "iterative"
		cfg.Solve.MaxIterations = 1
		cfg.Solve.Preconditioner = "none"
		_, err := Run(ctx, bar(t), cfg)
		assert.ErrorIs(t, err, solver.ErrDidNotConverge)
	})
	t.Run("LoadOutOfRange", func(t *testing.T) {
		p := bar(t)
		p.Loads = []NodalValue{{Node: 3}}
		_, err := Run(ctx, p, nil)
		assert.Error(t, err)
	})
	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Run(cctx, bar(t), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
	t.Run("Incomplete", func(t *testing.T) {
		_, err := Run(ctx, &Problem{}, nil)
		assert.Error(t, err)
	})
}
