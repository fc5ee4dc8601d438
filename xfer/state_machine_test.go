package xfer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/xfer"
)

func TestApplyEventTransitions(t *testing.T) {
	a := assert.New(t)
	E := common.EState

	tests := []struct {
		name    string
		current common.State
		event   xfer.Event
		want    common.State
		wantOK  bool
	}{
		{"schedule pending", E.Pending(), xfer.EventScheduled, E.InProgress(), true},
		{"schedule non-pending is illegal", E.InProgress(), xfer.EventScheduled, E.InProgress(), false},
		{"chunk ok while running", E.InProgress(), xfer.EventChunkOK, E.InProgress(), true},
		{"chunk ok while not running is illegal", E.Pending(), xfer.EventChunkOK, E.Pending(), false},
		{"final ok completes", E.InProgress(), xfer.EventFinalOK, E.Complete(), true},
		{"error fails", E.InProgress(), xfer.EventError, E.Failed(), true},
		{"error before scheduling fails", E.Pending(), xfer.EventError, E.Failed(), true},
		{"error while paused fails", E.Paused(), xfer.EventError, E.Failed(), true},
		{"pause from pending", E.Pending(), xfer.EventPause, E.Paused(), true},
		{"pause from in progress", E.InProgress(), xfer.EventPause, E.Paused(), true},
		{"pause from paused is illegal", E.Paused(), xfer.EventPause, E.Paused(), false},
		{"pause terminal is illegal", E.Complete(), xfer.EventPause, E.Complete(), false},
		{"resume from paused", E.Paused(), xfer.EventResumeReachable, E.Pending(), true},
		{"resume from failed", E.Failed(), xfer.EventResumeReachable, E.Pending(), true},
		{"resume from pending is illegal", E.Pending(), xfer.EventResumeReachable, E.Pending(), false},
		{"cancel from pending", E.Pending(), xfer.EventCancel, E.Canceled(), true},
		{"cancel from in progress", E.InProgress(), xfer.EventCancel, E.Canceled(), true},
		{"cancel from paused", E.Paused(), xfer.EventCancel, E.Canceled(), true},
		{"cancel from failed", E.Failed(), xfer.EventCancel, E.Canceled(), true},
		{"cancel terminal is illegal", E.Complete(), xfer.EventCancel, E.Complete(), false},
		{"remove from any non-deleted", E.Complete(), xfer.EventRemove, E.Deleted(), true},
		{"remove from pending", E.Pending(), xfer.EventRemove, E.Deleted(), true},
		{"remove already deleted is illegal", E.Deleted(), xfer.EventRemove, E.Deleted(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := xfer.ApplyEvent(tt.current, tt.event)
			a.Equal(tt.wantOK, ok)
			a.Equal(tt.want, next)
		})
	}
}

func TestApplyEventIsIdempotentNoOp(t *testing.T) {
	a := assert.New(t)
	// Applying an illegal event never mutates the reported current state, so
	// repeated calls from a caller that doesn't check ok are harmless.
	next1, ok1 := xfer.ApplyEvent(common.EState.Complete(), xfer.EventPause)
	next2, ok2 := xfer.ApplyEvent(next1, xfer.EventPause)
	a.False(ok1)
	a.False(ok2)
	a.Equal(common.EState.Complete(), next1)
	a.Equal(common.EState.Complete(), next2)
}
