package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestScheduleRunsImmediatelyAndStopsWhenDone(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	defer r.Stop(context.Background())

	var ticks atomic.Int32
	_, scheduled := r.Schedule("promote:a", 5*time.Millisecond, func(context.Context) (bool, error) {
		return ticks.Add(1) >= 3, nil
	})
	require.True(t, scheduled)

	require.Eventually(t, func() bool { return !r.Active("promote:a") }, time.Second, time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load())
	assert.Equal(t, 0, r.Len())
}

func TestScheduleIsIdempotentPerKey(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	defer r.Stop(context.Background())

	block := make(chan struct{})
	fn := func(ctx context.Context) (bool, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return false, nil
	}

	cancel, first := r.Schedule("promote:a", time.Hour, fn)
	_, second := r.Schedule("promote:a", time.Hour, fn)
	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, r.Len())

	cancel()
	assert.False(t, r.Active("promote:a"))
	close(block)
}

func TestErrorsKeepTaskTicking(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	defer r.Stop(context.Background())

	var ticks atomic.Int32
	r.Schedule("flaky", 2*time.Millisecond, func(context.Context) (bool, error) {
		if ticks.Add(1) < 3 {
			return false, errors.New("storage unavailable")
		}
		return true, nil
	})

	require.Eventually(t, func() bool { return !r.Active("flaky") }, time.Second, time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load())
}

func TestStopCancelsTasksAndRejectsNewOnes(t *testing.T) {
	r := New(zaptest.NewLogger(t))

	var active atomic.Int32
	r.OnChange(func(n int) { active.Store(int32(n)) })

	r.Schedule("a", time.Hour, func(context.Context) (bool, error) { return false, nil })
	r.Schedule("b", time.Hour, func(context.Context) (bool, error) { return false, nil })
	assert.Equal(t, int32(2), active.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(0), active.Load())

	_, scheduled := r.Schedule("c", time.Hour, func(context.Context) (bool, error) { return true, nil })
	assert.False(t, scheduled)
}

func TestPanickingTaskIsRemoved(t *testing.T) {
	r := New(zaptest.NewLogger(t))
	defer r.Stop(context.Background())

	r.Schedule("boom", time.Millisecond, func(context.Context) (bool, error) {
		panic("bad tick")
	})
	require.Eventually(t, func() bool { return !r.Active("boom") }, time.Second, time.Millisecond)
}
