package queue_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobxfer/blobxfer/queue"
)

type fakeUnit struct {
	id       string
	deps     []string
	fn       func(ctx context.Context) error
	started  chan struct{}
	startOne sync.Once
}

func newFakeUnit(id string, fn func(ctx context.Context) error, deps ...string) *fakeUnit {
	return &fakeUnit{id: id, deps: deps, fn: fn, started: make(chan struct{})}
}

func (u *fakeUnit) ID() string           { return u.id }
func (u *fakeUnit) DependsOn() []string  { return u.deps }
func (u *fakeUnit) Run(ctx context.Context) error {
	u.startOne.Do(func() { close(u.started) })
	return u.fn(ctx)
}

func TestQueueHonorsMaxConcurrent(t *testing.T) {
	a := assert.New(t)
	const maxConcurrent = 2
	const total = 8

	var inFlight int32
	var maxObserved int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(total)
	q := queue.New(maxConcurrent, func(id string, err error) { wg.Done() })

	for i := 0; i < total; i++ {
		u := newFakeUnit(fmt.Sprintf("u%d", i), func(ctx context.Context) error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxObserved)
				if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&inFlight, -1)
			return nil
		})
		require.NoError(t, q.Add(u))
	}

	time.Sleep(50 * time.Millisecond)
	a.LessOrEqual(atomic.LoadInt32(&inFlight), int32(maxConcurrent))
	close(release)
	wg.Wait()
	a.LessOrEqual(atomic.LoadInt32(&maxObserved), int32(maxConcurrent))
}

func TestQueueDependencyOrdering(t *testing.T) {
	r := require.New(t)
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	q := queue.New(4, func(id string, err error) {
		mu.Lock()
		order = append(order, id)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	block := newFakeUnit("block", func(ctx context.Context) error { return nil })
	finalUnit := newFakeUnit("final", func(ctx context.Context) error { return nil }, "block", "probe")
	probe := newFakeUnit("probe", func(ctx context.Context) error { return nil })

	// Add the dependent before either of its dependencies exist.
	r.NoError(q.Add(finalUnit))
	r.NoError(q.Add(block))
	r.NoError(q.Add(probe))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		r.Fail("timed out waiting for all units to complete")
	}

	mu.Lock()
	defer mu.Unlock()
	r.Len(order, 3)
	r.Equal("final", order[2], "final must run strictly after its dependencies: %v", order)
}

func TestQueueFailedDependencyNeverSchedulesWaiter(t *testing.T) {
	r := require.New(t)
	var finalRan int32
	done := make(chan struct{})

	q := queue.New(4, func(id string, err error) {
		if id == "block" {
			close(done)
		}
	})

	block := newFakeUnit("block", func(ctx context.Context) error { return fmt.Errorf("boom") })
	finalUnit := newFakeUnit("final", func(ctx context.Context) error {
		atomic.AddInt32(&finalRan, 1)
		return nil
	}, "block")

	r.NoError(q.Add(block))
	r.NoError(q.Add(finalUnit))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		r.Fail("timed out")
	}
	time.Sleep(50 * time.Millisecond)
	r.EqualValues(0, atomic.LoadInt32(&finalRan))
}

func TestQueueRemoveCancelsRunningUnit(t *testing.T) {
	r := require.New(t)
	started := make(chan struct{})
	canceled := make(chan struct{})
	done := make(chan struct{})

	q := queue.New(1, func(id string, err error) { close(done) })
	u := newFakeUnit("u", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})
	r.NoError(q.Add(u))

	<-started
	q.Remove(u.ID())

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		r.Fail("unit was not canceled")
	}
	// Remove does not invoke the completion callback: the manager already
	// knows the outcome, since it is the one issuing the remove.
	select {
	case <-done:
		r.Fail("completion callback should not fire for a removed unit")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueueClearDropsEverything(t *testing.T) {
	r := require.New(t)
	q := queue.New(1, nil)
	block := newFakeUnit("block", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	waiter := newFakeUnit("waiter", func(ctx context.Context) error { return nil }, "block")
	r.NoError(q.Add(block))
	r.NoError(q.Add(waiter))
	<-block.started

	q.Clear()
	r.Eventually(func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueueDuplicateAddRejected(t *testing.T) {
	r := require.New(t)
	q := queue.New(1, nil)
	u := newFakeUnit("dup", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.NoError(q.Add(u))
	<-u.started
	r.Error(q.Add(newFakeUnit("dup", func(ctx context.Context) error { return nil })))
	q.Clear()
}
