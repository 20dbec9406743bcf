package arrays

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayIndexing(t *testing.T) {
	data := make([]int, 24)
	for i := range data {
		data[i] = i
	}
	a, err := New(data, 2, 3, 4)
	require.NoError(t, err)

	t.Run("FlatIndexIsRowMajor", func(t *testing.T) {
		flat, err := a.FlatIndex(1, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, 1*12+2*4+3, flat)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		for flat := range a.Data {
			idx, err := a.MultiIndex(flat)
			require.NoError(t, err)
			back, err := a.FlatIndex(idx...)
			require.NoError(t, err)
			if back != flat {
				t.Fatalf("flat %d -> %v -> %d", flat, idx, back)
			}
		}
	})

	t.Run("BadRank", func(t *testing.T) {
		_, err := a.FlatIndex(1, 2)
		assert.ErrorIs(t, err, ErrIndex)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := a.At(2, 0, 0)
		assert.ErrorIs(t, err, ErrIndex)
		_, err = a.At(0, -1, 0)
		assert.ErrorIs(t, err, ErrIndex)
	})

	t.Run("SetThenAt", func(t *testing.T) {
		b := a.Clone()
		require.NoError(t, b.Set(-7, 0, 1, 2))
		v, err := b.At(0, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, -7, v)
		// clone must not alias
		v, _ = a.At(0, 1, 2)
		assert.Equal(t, 6, v)
	})
}

func TestArrayReshape(t *testing.T) {
	a, err := New([]float64{1, 2, 3, 4, 5, 6}, 6)
	require.NoError(t, err)

	require.NoError(t, a.Reshape(3, 2))
	assert.Equal(t, []float64{5, 6}, a.Row(2))
	assert.Equal(t, 2, a.Rank())
	assert.Equal(t, 3, a.Dim(0))

	err = a.Reshape(4, 2)
	assert.ErrorIs(t, err, ErrShape)
	assert.Equal(t, []int{3, 2}, a.Shape, "failed reshape must keep the old shape")

	// copies share data but not shape
	b := a
	require.NoError(t, b.Reshape(2, 3))
	assert.Equal(t, []int{3, 2}, a.Shape)
	assert.Equal(t, []int{2, 3}, b.Shape)

	_, err = New([]int{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrShape)
}

func TestArrayResize(t *testing.T) {
	a := Zeros[int](2, 2)
	require.NoError(t, a.Resize(9, 3, 2))
	assert.Equal(t, []int{0, 0, 0, 0, 9, 9}, a.Data)

	require.NoError(t, a.Resize(0, 1, 2))
	assert.Equal(t, []int{0, 0}, a.Data)
	assert.Nil(t, a.Row(1))
}
