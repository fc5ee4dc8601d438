package queue

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/blobxfer/blobxfer/common"
)

type entry struct {
	unit       Unit
	unresolved map[string]bool
	cancel     context.CancelFunc
	removed    bool
}

// CompletionFunc is invoked once per unit, the first time it reaches a
// terminal state: err == nil on success, non-nil otherwise.
type CompletionFunc func(unitID string, err error)

// Queue is the bounded, dependency-aware work pool. Concurrency is bounded
// by a golang.org/x/sync/semaphore.Weighted gating a goroutine spawned per
// ready unit, rather than a fixed pool of long-lived workers; this also
// gives cancellation of a still-waiting unit for free via context, instead
// of a removal flag checked only at dequeue time.
type Queue struct {
	mu         sync.Mutex
	entries    map[string]*entry
	dependents map[string][]string // depID -> waiter unit IDs
	completed  map[string]bool     // ids that finished successfully, even if never added as a dependent's dep yet

	sem        *semaphore.Weighted
	onComplete CompletionFunc

	// completeMu serializes calls into onComplete across units finishing
	// concurrently, so a CompletionFunc that mutates shared per-transfer
	// state (as the Manager's does) never needs its own synchronization for
	// that alone.
	completeMu sync.Mutex
}

// New creates a Queue bounded at maxConcurrent in-flight units.
func New(maxConcurrent int, onComplete CompletionFunc) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = common.DefaultMaxConcurrentChunks
	}
	return &Queue{
		entries:    make(map[string]*entry),
		dependents: make(map[string][]string),
		completed:  make(map[string]bool),
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		onComplete: onComplete,
	}
}

// scheduleReady spawns the goroutine that waits for a semaphore slot and
// then runs id's unit. The semaphore serves waiters in the order they call
// Acquire, but each ready unit reaches Acquire from its own goroutine, so the
// start order among ready units follows goroutine scheduling and is not
// guaranteed to match the order they became ready here.
func (q *Queue) scheduleReady(id string) {
	go q.runIfLive(id)
}

func (q *Queue) runIfLive(id string) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok || e.removed {
		q.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	unit := e.unit
	q.mu.Unlock()

	if err := q.sem.Acquire(ctx, 1); err != nil {
		// Canceled while still waiting for a concurrency slot: Remove
		// already dropped the entry, nothing left to finish.
		return
	}
	defer q.sem.Release(1)

	q.mu.Lock()
	removed := e.removed
	q.mu.Unlock()
	if removed {
		return
	}

	err := unit.Run(ctx)
	q.mu.Lock()
	removed = e.removed
	q.mu.Unlock()
	if removed {
		// Remove already dropped the entry; a removed unit reports no completion.
		return
	}
	q.finish(id, err)
}

// Add enqueues a unit. If it has unfinished dependencies it stays pending.
func (q *Queue) Add(unit Unit) error {
	id := unit.ID()
	deps := dependsOn(unit)

	q.mu.Lock()
	if _, exists := q.entries[id]; exists {
		q.mu.Unlock()
		return fmt.Errorf("queue: unit %q already has in-flight work", id)
	}
	unresolved := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if q.completed[dep] {
			continue // dependency already finished successfully, even if added before this unit existed
		}
		unresolved[dep] = true
		q.dependents[dep] = append(q.dependents[dep], id)
	}
	e := &entry{unit: unit, unresolved: unresolved}
	q.entries[id] = e
	ready := len(unresolved) == 0
	q.mu.Unlock()

	if ready {
		q.scheduleReady(id)
	}
	return nil
}

// AddBatch enqueues multiple units; useful for a transfer's full decomposed
// block set plus its finalize unit in one call.
func (q *Queue) AddBatch(units []Unit) error {
	for _, u := range units {
		if err := q.Add(u); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	waiters := q.dependents[id]
	delete(q.dependents, id)
	delete(q.entries, id)

	var toSchedule []string
	if err == nil {
		q.completed[id] = true
		for _, waiterID := range waiters {
			we, ok := q.entries[waiterID]
			if !ok {
				continue // waiter was removed, or hasn't been Add()ed yet (completed[id] covers that case)
			}
			delete(we.unresolved, id)
			if len(we.unresolved) == 0 && !we.removed {
				toSchedule = append(toSchedule, waiterID)
			}
		}
	}
	q.mu.Unlock()

	for _, waiterID := range toSchedule {
		q.scheduleReady(waiterID)
	}

	if q.onComplete != nil {
		q.completeMu.Lock()
		q.onComplete(id, err)
		q.completeMu.Unlock()
	}
}

// Remove cancels the unit if running (or still waiting for a semaphore
// slot), or drops it from the pending set otherwise. It does not itself
// invoke CompletionFunc: the caller (the Manager) already knows the
// resulting state, since it is the one issuing the remove.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	e.removed = true
	if e.cancel != nil {
		e.cancel()
	}
	delete(q.entries, id)
	delete(q.dependents, id)
	q.mu.Unlock()
}

// Clear cancels and removes every unit, used as the fast path for pauseAll
// and the reachability-unreachable reaction.
func (q *Queue) Clear() {
	q.mu.Lock()
	ids := make([]string, 0, len(q.entries))
	for id := range q.entries {
		ids = append(ids, id)
	}
	q.mu.Unlock()

	for _, id := range ids {
		q.Remove(id)
	}
}

// Len reports the number of units currently tracked (queued or running).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
