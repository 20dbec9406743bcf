package constraints

import (
	"errors"
	"math"
	"testing"

	"github.com/julienfausty/Fe2O3/sparsity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// chain returns the stiffness of springs in series, spring e joining dofs e and e+1
func chain(t *testing.T, springs ...float64) *sparsity.Matrix {
	t.Helper()
	n := len(springs) + 1
	rows := make([][]int, n)
	for e := range springs {
		rows[e] = append(rows[e], e+1)
		rows[e+1] = append(rows[e+1], e)
	}
	p, err := sparsity.FromRows(rows)
	require.NoError(t, err)
	m := sparsity.NewMatrix(p)
	for e, k := range springs {
		require.NoError(t, m.AddAt(e, e, k))
		require.NoError(t, m.AddAt(e+1, e+1, k))
		require.NoError(t, m.AddAt(e, e+1, -k))
		require.NoError(t, m.AddAt(e+1, e, -k))
	}
	return m
}

func solve(t *testing.T, sys *System) []float64 {
	t.Helper()
	n := len(sys.Load)
	var x mat.VecDense
	require.NoError(t, x.SolveVec(sys.Matrix.Dense(), mat.NewVecDense(n, sys.Load)))
	u, err := sys.Recover(x.RawVector().Data)
	require.NoError(t, err)
	return u
}

func TestEliminationBar(t *testing.T) {
	const k, P = 4.0, 10.0
	m := chain(t, 2*k, 2*k)
	f := []float64{0, 0, P}
	before := append([]float64(nil), m.Values()...)

	var set Set
	set.Fix(0, 0)
	sys, err := Apply(m, f, set, Options{})
	require.NoError(t, err)

	// row and column of the fixed dof are identity
	assert.Equal(t, 1.0, sys.Matrix.At(0, 0))
	assert.Zero(t, sys.Matrix.At(0, 1))
	assert.Zero(t, sys.Matrix.At(1, 0))

	u := solve(t, sys)
	assert.InDeltaSlice(t, []float64{0, P / (2 * k), P / k}, u, 1e-12)

	// inputs untouched
	assert.Equal(t, before, m.Values())
	assert.Equal(t, []float64{0, 0, P}, f)

	r := Reactions(m, f, u)
	assert.InDelta(t, -P, r[0], 1e-12)
	assert.InDelta(t, 0, r[2], 1e-12)
}

func TestEliminationPrescribedValues(t *testing.T) {
	m := chain(t, 1, 3)
	var set Set
	set.Fix(0, 1)
	set.Fix(2, 5)
	set.Fix(2, 5) // identical duplicates merge
	sys, err := Apply(m, make([]float64, 3), set, Options{Strategy: Elimination})
	require.NoError(t, err)
	u := solve(t, sys)
	// k1 (u1 - 1) = k2 (5 - u1)
	assert.InDeltaSlice(t, []float64{1, 4, 5}, u, 1e-12)
}

func TestEliminationMatchesReducedSystem(t *testing.T) {
	m := chain(t, 3, 5, 7)
	f := []float64{0, 1, -2, 4}
	const d, v = 0, 0.5
	var set Set
	set.Fix(d, v)
	sys, err := Apply(m, f, set, Options{Strategy: Elimination})
	require.NoError(t, err)
	u := solve(t, sys)

	// drop row and column d, move its known column to the right hand side
	k := m.Dense()
	reduced := k.Slice(1, 4, 1, 4)
	rhs := mat.NewVecDense(3, nil)
	for i := 1; i < 4; i++ {
		rhs.SetVec(i-1, f[i]-k.At(i, d)*v)
	}
	var x mat.VecDense
	require.NoError(t, x.SolveVec(reduced, rhs))

	assert.Equal(t, v, u[d])
	assert.InDeltaSlice(t, x.RawVector().Data, u[1:], 1e-12)
}

func TestPenaltyApproachesElimination(t *testing.T) {
	m := chain(t, 3, 5, 7)
	f := []float64{0, 1, -2, 4}
	var set Set
	set.Fix(0, 0.5)
	set.Fix(3, -1)

	exact, err := Apply(m, f, set, Options{Strategy: Elimination})
	require.NoError(t, err)
	want := solve(t, exact)

	prev := math.Inf(1)
	for _, alpha := range []float64{1e2, 1e4, 1e6, 1e8} {
		sys, err := Apply(m, f, set, Options{Strategy: Penalty, Penalty: alpha})
		require.NoError(t, err)
		got := solve(t, sys)
		var diff float64
		for i := range got {
			diff = math.Max(diff, math.Abs(got[i]-want[i]))
		}
		assert.Less(t, diff, prev, "alpha=%g", alpha)
		prev = diff
	}
	assert.Less(t, prev, 1e-6)

	sys, err := Apply(m, f, set, Options{Strategy: Penalty})
	require.NoError(t, err)
	assert.InDelta(t, 3+DefaultPenalty, sys.Matrix.At(0, 0), 1)
}

func TestLinearConstraintTiesDofs(t *testing.T) {
	// u3 = u2 makes the last spring rigid
	const P = 2.0
	m := chain(t, 1, 1, 1)
	var set Set
	set.Fix(0, 0)
	set.Tie(3, 0, Term{Dof: 2, Coef: 1})
	sys, err := Apply(m, []float64{0, 0, 0, P}, set, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, sys.Matrix.At(3, 3))
	assert.Zero(t, sys.Load[3])
	u := solve(t, sys)
	assert.InDeltaSlice(t, []float64{0, P, 2 * P, 2 * P}, u, 1e-12)
	assert.True(t, sys.Matrix.IsSymmetric(1e-14))
}

func TestChainedLinearConstraints(t *testing.T) {
	// u = (0, a, a, 2a+1); minimizing the energy gives a = 1/2
	m := chain(t, 1, 1, 1)
	var set Set
	set.Fix(0, 0)
	set.Tie(3, 1, Term{Dof: 2, Coef: 2}) // declared before its master
	set.Tie(2, 0, Term{Dof: 1, Coef: 1})
	sys, err := Apply(m, []float64{0, 0, 0, 1}, set, Options{})
	require.NoError(t, err)
	u := solve(t, sys)
	assert.InDeltaSlice(t, []float64{0, 0.5, 0.5, 2}, u, 1e-12)
}

func TestLinearConstraintFillIn(t *testing.T) {
	m := chain(t, 1, 1, 1, 1)
	nnz := m.Pattern().NNZ()
	require.False(t, m.Pattern().Contains(1, 3))

	var set Set
	set.Fix(0, 0)
	set.Tie(4, 0, Term{Dof: 1, Coef: 0.5})
	sys, err := Apply(m, []float64{0, 0, 0, 0, 1}, set, Options{})
	require.NoError(t, err)

	assert.True(t, sys.Matrix.Pattern().Contains(1, 3))
	assert.True(t, sys.Matrix.Pattern().Contains(3, 1))
	assert.Equal(t, nnz, m.Pattern().NNZ(), "input pattern must not change")
	assert.True(t, sys.Matrix.IsSymmetric(1e-14))

	// u = (0, a, b, c, a/2) at the energy minimum
	u := solve(t, sys)
	assert.InDeltaSlice(t, []float64{0, 6.0 / 13, 5.0 / 13, 4.0 / 13, 3.0 / 13}, u, 1e-12)
}

func TestConflicts(t *testing.T) {
	tests := []struct {
		name string
		set  Set
		dof  int
	}{
		{"DifferentValues", Set{Fixed: []Fixed{{1, 0}, {1, 2}}}, 1},
		{"FixedOutOfRange", Set{Fixed: []Fixed{{4, 0}}}, 4},
		{"NegativeDof", Set{Fixed: []Fixed{{-1, 0}}}, -1},
		{"TargetedTwice", Set{Linear: []Linear{
			{Target: 2, Terms: []Term{{1, 1}}},
			{Target: 2, Terms: []Term{{0, 1}}},
		}}, 2},
		{"FixedTarget", Set{
			Fixed:  []Fixed{{2, 0}},
			Linear: []Linear{{Target: 2, Terms: []Term{{1, 1}}}},
		}, 2},
		{"SelfReference", Set{Linear: []Linear{{Target: 1, Terms: []Term{{1, 0.5}}}}}, 1},
		{"MasterOutOfRange", Set{Linear: []Linear{{Target: 1, Terms: []Term{{9, 1}}}}}, 1},
		{"Cycle", Set{Linear: []Linear{
			{Target: 3, Terms: []Term{{2, 1}}},
			{Target: 2, Terms: []Term{{1, 1}}},
			{Target: 1, Terms: []Term{{3, 1}}},
		}}, 1},
	}
	m := chain(t, 1, 1, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(m, make([]float64, 4), tt.set, Options{})
			require.ErrorIs(t, err, ErrConstraintConflict)
			var ce *ConflictError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.dof, ce.Dof)
		})
	}
}

func TestApplyRejectsBadSizes(t *testing.T) {
	m := chain(t, 1)
	_, err := Apply(m, []float64{0}, Set{}, Options{})
	assert.Error(t, err)

	sys, err := Apply(m, []float64{0, 0}, Set{}, Options{})
	require.NoError(t, err)
	_, err = sys.Recover([]float64{1})
	assert.Error(t, err)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Penalty")
	require.NoError(t, err)
	assert.Equal(t, Penalty, s)
	s, err = ParseStrategy(Elimination.String())
	require.NoError(t, err)
	assert.Equal(t, Elimination, s)
	_, err = ParseStrategy("lagrange")
	assert.Error(t, err)
}
