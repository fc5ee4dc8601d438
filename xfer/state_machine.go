// Package xfer implements the in-memory transfer graph and the state machine
// shared by BlobTransfer and BlockTransfer records.
package xfer

import "github.com/blobxfer/blobxfer/common"

// Event is one of the transition-table triggers.
type Event int

const (
	EventScheduled Event = iota // pending -> inProgress, picked up by the queue
	EventChunkOK                // a non-final chunk completed
	EventFinalOK                // the final unit (all dependencies satisfied) completed
	EventError                  // a unit failed terminally
	EventPause                  // pause(one) or pause(all)
	EventResumeReachable         // resume(), only valid while isReachable
	EventCancel                  // cancel(one) or cancel(all)
	EventRemove                  // remove(one) or remove(all)
)

// ApplyEvent runs the transition table. It returns the next state and
// whether the transition was legal. An illegal transition (e.g. pausing a
// terminal transfer) is not an error: callers treat ok==false as a silent
// no-op, making every command idempotent.
func ApplyEvent(current common.State, ev Event) (next common.State, ok bool) {
	E := common.EState
	if current.Terminal() && ev != EventRemove {
		return current, false
	}
	switch ev {
	case EventScheduled:
		if current == E.Pending() {
			return E.InProgress(), true
		}
	case EventChunkOK:
		if current == E.InProgress() {
			return E.InProgress(), true
		}
	case EventFinalOK:
		if current == E.InProgress() {
			return E.Complete(), true
		}
	case EventError:
		switch current {
		case E.Pending(), E.InProgress(), E.Paused():
			return E.Failed(), true
		}
	case EventPause:
		if current.Pauseable() {
			return E.Paused(), true
		}
	case EventResumeReachable:
		if current.Resumable() {
			return E.Pending(), true
		}
	case EventCancel:
		switch current {
		case E.Pending(), E.InProgress(), E.Paused(), E.Failed():
			return E.Canceled(), true
		}
	case EventRemove:
		if current != E.Deleted() {
			return E.Deleted(), true
		}
	}
	return current, false
}
