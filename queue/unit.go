// Package queue implements a resumable work queue: a bounded pool of
// cancelable units of work with dependency edges.
package queue

import "context"

// Unit is one cancelable piece of work (a probe, a block GET/PUT, or a
// finalize step). Run blocks for the unit's full duration and must return
// promptly once ctx is canceled: cancellation is cooperative, so removing a
// unit from the queue interrupts it at the next I/O boundary rather than
// immediately.
type Unit interface {
	ID() string
	Run(ctx context.Context) error
}

// DependentUnit optionally reports the ids of units that must reach a
// terminal success state before this one becomes ready; a unit with
// unfinished dependencies stays pending. Units without dependencies need not
// implement it.
type DependentUnit interface {
	Unit
	DependsOn() []string
}

func dependsOn(u Unit) []string {
	if d, ok := u.(DependentUnit); ok {
		return d.DependsOn()
	}
	return nil
}
