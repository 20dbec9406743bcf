package partitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lists [][]int

func (l lists) NumElements() int        { return len(l) }
func (l lists) ElementDofs(e int) []int { return l[e] }

// chain of n two-dof elements
func chain(n int) lists {
	l := make(lists, n)
	for e := range l {
		l[e] = []int{e, e + 1}
	}
	return l
}

// triangulated nx by ny grid, one dof per node
func grid(nx, ny int) lists {
	var l lists
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			n0 := j*(nx+1) + i
			n2 := n0 + nx + 1
			l = append(l, []int{n0, n0 + 1, n2 + 1}, []int{n0, n2 + 1, n2})
		}
	}
	return l
}

func TestBlockPartition(t *testing.T) {
	pb := &PartitionBuilder{Conn: chain(10), TargetPartitionSize: 4, Strategy: BlockPartition}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	assert.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, []int{0, 1, 2, 3}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{8, 9}, layout.Partitions[2].Elements)
	assert.Equal(t, 4, layout.MaxElements)
	assert.Equal(t, 1, layout.GetPartition(5))
	assert.Equal(t, -1, layout.GetPartition(10))
	assert.False(t, layout.Disjoint)
}

func TestRoundRobin(t *testing.T) {
	pb := &PartitionBuilder{Conn: chain(7), TargetPartitionSize: 3, Strategy: RoundRobin}
	layout, err := pb.BuildPartitions()
	require.NoError(t, err)

	assert.Equal(t, 3, layout.NumPartitions)
	assert.Equal(t, []int{0, 3, 6}, layout.Partitions[0].Elements)
	assert.Equal(t, []int{2, 5}, layout.Partitions[2].Elements)

	stats := layout.PartitionStatistics()
	assert.Equal(t, 2, stats.MinElements)
	assert.Equal(t, 3, stats.MaxElements)
	assert.InDelta(t, 3/(7.0/3), stats.Imbalance, 1e-12)
}

func TestColorPartition(t *testing.T) {
	for _, alg := range []ColoringAlgorithm{WelshPowell, Dsatur, RecursiveLargestFirst} {
		for name, conn := range map[string]lists{"chain": chain(9), "grid": grid(4, 3)} {
			pb := &PartitionBuilder{Conn: conn, Strategy: ColorPartition, Coloring: alg}
			layout, err := pb.BuildPartitions()
			require.NoError(t, err, "%s alg=%d", name, alg)

			assert.True(t, layout.Disjoint)
			assert.NoError(t, VerifyDisjoint(layout, conn))
			assert.Equal(t, len(conn), layout.TotalElements)
			if name == "chain" && alg == Dsatur {
				assert.Equal(t, 2, layout.NumPartitions, "dsatur is exact on bipartite graphs")
			}
			// class order follows the smallest element
			assert.Equal(t, 0, layout.EToP[0])
		}
	}
}

func TestVerifyDisjointRejectsSharedDof(t *testing.T) {
	conn := chain(3)
	layout := &PartitionLayout{
		Partitions:    []Partition{{ID: 0, Elements: []int{0, 1, 2}, NumElements: 3}},
		MaxElements:   3,
		TotalElements: 3,
		NumPartitions: 1,
		EToP:          []int{0, 0, 0},
	}
	require.NoError(t, layout.ValidateLayout())
	assert.ErrorIs(t, VerifyDisjoint(layout, conn), ErrNotDisjoint)
}

func TestValidateLayout(t *testing.T) {
	tests := []struct {
		name   string
		layout PartitionLayout
	}{
		{
			name: "WrongMax",
			layout: PartitionLayout{
				Partitions:    []Partition{{ID: 0, Elements: []int{0}, NumElements: 1}},
				MaxElements:   2,
				TotalElements: 1,
				NumPartitions: 1,
				EToP:          []int{0},
			},
		},
		{
			name: "MismatchedEToP",
			layout: PartitionLayout{
				Partitions: []Partition{
					{ID: 0, Elements: []int{0}, NumElements: 1},
					{ID: 1, Elements: []int{1}, NumElements: 1},
				},
				MaxElements:   1,
				TotalElements: 2,
				NumPartitions: 2,
				EToP:          []int{0, 0},
			},
		},
		{
			name: "Unsorted",
			layout: PartitionLayout{
				Partitions:    []Partition{{ID: 0, Elements: []int{1, 0}, NumElements: 2}},
				MaxElements:   2,
				TotalElements: 2,
				NumPartitions: 1,
				EToP:          []int{0, 0},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.layout.ValidateLayout())
		})
	}
}

func TestEmptyConnectivity(t *testing.T) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin, ColorPartition} {
		layout, err := (&PartitionBuilder{Conn: lists{}, Strategy: s}).BuildPartitions()
		require.NoError(t, err, s.String())
		assert.Equal(t, 0, layout.NumPartitions)
	}
}

func TestParseColoring(t *testing.T) {
	for _, c := range []ColoringAlgorithm{WelshPowell, Dsatur, RecursiveLargestFirst} {
		got, err := ParseColoring(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseColoring("greedy")
	assert.Error(t, err)
}

func TestParseChunking(t *testing.T) {
	for _, s := range []PartitionStrategy{BlockPartition, RoundRobin} {
		got, err := ParseChunking(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseChunking("color")
	assert.Error(t, err)
}
