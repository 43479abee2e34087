package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolPreservesSubmissionOrder(t *testing.T) {
	pool := NewPool[int](4)
	results, done, err := pool.Run(context.Background(), 20, func(_ context.Context, job int) int {
		// later jobs finish first
		time.Sleep(time.Duration(20-job) * time.Millisecond)
		return job * job
	})
	require.NoError(t, err)

	for i, v := range results {
		assert.Equal(t, i*i, v)
		assert.True(t, done[i])
	}
}

func TestPoolNeverExceedsSize(t *testing.T) {
	var running, peak int32
	pool := NewPool[struct{}](3)
	_, _, err := pool.Run(context.Background(), 30, func(context.Context, int) struct{} {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 3, pool.Size())
}

func TestPoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started int32
	pool := NewPool[int](2)
	_, done, err := pool.Run(ctx, 100, func(_ context.Context, job int) int {
		if atomic.AddInt32(&started, 1) == 5 {
			cancel()
		}
		time.Sleep(time.Millisecond)
		return job
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, atomic.LoadInt32(&started), int32(100))
	assert.False(t, done[99])
}

func TestPoolZeroJobs(t *testing.T) {
	results, done, err := NewPool[int](0).Run(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, done)
}
