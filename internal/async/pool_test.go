package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	const n = 100
	var seen [n]int32

	err := ForEach(context.Background(), zap.NewNop(), 8, n, func(_ context.Context, i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i := range seen {
		assert.Equal(t, int32(1), seen[i], "index %d", i)
	}
}

func TestForEachBoundsConcurrency(t *testing.T) {
	var running, peak int32
	err := ForEach(context.Background(), nil, 3, 30, func(_ context.Context, _ int) error {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestForEachStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var after int32

	err := ForEach(context.Background(), nil, 1, 10, func(ctx context.Context, i int) error {
		if i == 2 {
			return boom
		}
		if i > 2 {
			atomic.AddInt32(&after, 1)
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, atomic.LoadInt32(&after))
}

func TestForEachHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := ForEach(ctx, nil, 2, 20, func(ctx context.Context, i int) error {
		if i == 0 {
			cancel()
		}
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEachEmpty(t *testing.T) {
	called := false
	err := ForEach(context.Background(), nil, 4, 0, func(context.Context, int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestPoolRejectsAfterWait(t *testing.T) {
	p := NewPool(context.Background(), nil)
	require.NoError(t, p.Wait())

	assert.ErrorIs(t, p.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
}
