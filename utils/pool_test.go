package utils

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	tests := []struct {
		n, parts int
		want     []Range
	}{
		{10, 3, []Range{{0, 4}, {4, 7}, {7, 10}}},
		{2, 5, []Range{{0, 1}, {1, 2}}},
		{4, 0, []Range{{0, 4}}},
		{0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,parts=%d", tt.n, tt.parts), func(t *testing.T) {
			assert.Equal(t, tt.want, SplitRange(tt.n, tt.parts))
		})
	}
}

func TestPoolRunsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		hits := make([]int32, 1000)
		err := NewPool(workers).Run(context.Background(), len(hits), func(_ context.Context, i int) error {
			atomic.AddInt32(&hits[i], 1)
			return nil
		})
		require.NoError(t, err)
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("workers=%d: index %d ran %d times", workers, i, h)
			}
		}
	}
}

func TestPoolStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int64
	err := NewPool(1).Run(context.Background(), 100, func(_ context.Context, i int) error {
		ran.Add(1)
		if i == 10 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(11), ran.Load(), "a single worker must stop right after the failure")
}

func TestPoolHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPool(4).Run(ctx, 10, func(context.Context, int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(3))
	assert.Positive(t, Workers(0))
	assert.Equal(t, Workers(0), NewPool(-1).Size())
}
