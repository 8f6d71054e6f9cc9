package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsImmediately(t *testing.T) {
	p := NewPool(0, 0)
	release := make(chan struct{})
	start := time.Now()
	b := p.Submit(context.Background(), Job{Name: "slow", Run: func(context.Context) error {
		<-release
		return nil
	}})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, b.Len())
	close(release)
	require.NoError(t, b.Wait())
}

func TestPanicIsIsolated(t *testing.T) {
	p := NewPool(0, 0)
	var ran atomic.Int32
	b := p.Submit(context.Background(),
		Job{Name: "boom", Run: func(context.Context) error { panic("kaboom") }},
		Job{Name: "ok", Run: func(context.Context) error { ran.Add(1); return nil }},
	)
	err := b.Wait()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Job)
	assert.Equal(t, int32(1), ran.Load())
}

func TestTimeoutAppliesPerJob(t *testing.T) {
	p := NewPool(0, 20*time.Millisecond)
	b := p.Submit(context.Background(), Job{Name: "wait", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	assert.ErrorIs(t, b.Wait(), context.DeadlineExceeded)
}

func TestJobsOutliveSubmitContext(t *testing.T) {
	p := NewPool(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := p.Submit(ctx, Job{Name: "j", Run: func(ctx context.Context) error { return ctx.Err() }})
	assert.NoError(t, b.Wait())
}

func TestSizeBoundsConcurrency(t *testing.T) {
	p := NewPool(2, 0)
	var (
		mu   sync.Mutex
		peak int
	)
	p.OnChange(func(n int) {
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
	})
	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = Job{Name: "j", Run: func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}}
	}
	require.NoError(t, p.Submit(context.Background(), jobs...).Wait())
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, 0, p.Running())
}

func TestShutdown(t *testing.T) {
	p := NewPool(0, 0)
	p.Submit(context.Background(), Job{Name: "stuck", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("cancelled")
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	idle := NewPool(0, 0)
	assert.NoError(t, idle.Shutdown(context.Background()))
}
