package distribute

import (
	"testing"

	"github.com/julienfausty/Fe2O3/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dofMap(t *testing.T) *topology.DofMap {
	t.Helper()
	mesh, err := topology.NewMesh(topology.LineCoords(2, 1),
		topology.Block{Tag: "bar", Topology: topology.LineChain(2)})
	require.NoError(t, err)
	dm, err := topology.Build(mesh, topology.FieldSpec{
		{Name: "u", Components: 2, Location: topology.AtNodes},
		{Name: "T", Components: 1, Location: topology.AtNodes},
		{Name: "p", Components: 1, Location: topology.AtElements},
	})
	require.NoError(t, err)
	return dm
}

func TestDistribute(t *testing.T) {
	dm := dofMap(t)
	require.Equal(t, 11, dm.NumDofs())
	x := make([]float64, 11)
	for i := range x {
		x[i] = float64(i)
	}
	sol, err := Distribute(x, dm)
	require.NoError(t, err)

	v, err := sol.At(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	node, err := sol.Node(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 7, 8}, node)

	p, err := sol.ElementAt(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p)

	u, err := sol.Field("u")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, u.Shape)
	assert.Equal(t, []float64{0, 1, 3, 4, 6, 7}, u.Data)

	temp, err := sol.Field("T")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5, 8}, temp.Data)

	pf, err := sol.Field("p")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, pf.Shape)
	assert.Equal(t, []float64{9, 10}, pf.Data)

	mag, err := sol.Magnitude("u")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mag[1], 1e-15)
}

func TestDistributeDoesNotAlias(t *testing.T) {
	dm := dofMap(t)
	x := make([]float64, 11)
	sol, err := Distribute(x, dm)
	require.NoError(t, err)

	x[0] = 42
	v, err := sol.At(0, 0)
	require.NoError(t, err)
	assert.Zero(t, v)

	node, err := sol.Node(0)
	require.NoError(t, err)
	node[0] = 7
	vals := sol.Values()
	vals[0] = 9
	v, err = sol.At(0, 0)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestDistributeErrors(t *testing.T) {
	dm := dofMap(t)
	_, err := Distribute(make([]float64, 10), dm)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = Distribute(nil, nil)
	assert.Error(t, err)

	sol, err := Distribute(make([]float64, 11), dm)
	require.NoError(t, err)
	_, err = sol.At(3, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = sol.At(0, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = sol.Node(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = sol.ElementAt(2, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = sol.Field("v")
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = sol.Magnitude("v")
	assert.ErrorIs(t, err, ErrOutOfRange)
}
