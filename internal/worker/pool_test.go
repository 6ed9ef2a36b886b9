package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	pool := NewPool(16)
	pool.Start(context.Background(), 4)

	var ran int64
	for i := 0; i < 10; i++ {
		ok := pool.Submit(func(ctx context.Context) {
			atomic.AddInt64(&ran, 1)
		})
		assert.True(t, ok)
	}

	pool.Shutdown()
	assert.Equal(t, int64(10), atomic.LoadInt64(&ran))
}

func TestPool_SubmitRejectsWhenSaturated(t *testing.T) {
	pool := NewPool(1)

	// No workers started, so the single buffer slot is all there is.
	assert.True(t, pool.Submit(func(ctx context.Context) {}))
	assert.False(t, pool.Submit(func(ctx context.Context) {}))
}

func TestPool_SubmitDuringShutdown(t *testing.T) {
	// A producer racing Shutdown must get a clean rejection, never a send
	// on a closed channel.
	for i := 0; i < 100; i++ {
		pool := NewPool(4)
		pool.Start(context.Background(), 2)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 50; j++ {
				pool.Submit(func(ctx context.Context) {})
			}
		}()

		pool.Shutdown()
		<-done

		assert.False(t, pool.Submit(func(ctx context.Context) {}))
	}
}

func TestPool_ShutdownWaitsForInflightTasks(t *testing.T) {
	pool := NewPool(4)
	pool.Start(context.Background(), 1)

	done := make(chan struct{})
	pool.Submit(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		close(done)
	})

	pool.Shutdown()

	select {
	case <-done:
	default:
		t.Fatal("shutdown returned before the task finished")
	}
}
