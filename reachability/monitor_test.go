package reachability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blobxfer/blobxfer/reachability"
)

func TestMonitorInitialStatus(t *testing.T) {
	a := assert.New(t)
	m := reachability.New(reachability.Unreachable)
	a.False(m.IsReachable())

	m2 := reachability.New(reachability.ReachableWifi)
	a.True(m2.IsReachable())
}

func TestMonitorNotifiesOnChange(t *testing.T) {
	a := assert.New(t)
	m := reachability.New(reachability.ReachableWifi)

	var seen []reachability.Status
	m.Subscribe(func(s reachability.Status) { seen = append(seen, s) })

	m.Simulate(reachability.Unreachable)
	a.False(m.IsReachable())
	m.Simulate(reachability.ReachableCellular)
	a.True(m.IsReachable())

	a.Equal([]reachability.Status{reachability.Unreachable, reachability.ReachableCellular}, seen)
}

func TestMonitorCoalescesDuplicateEvents(t *testing.T) {
	a := assert.New(t)
	m := reachability.New(reachability.ReachableWifi)

	var calls int
	m.Subscribe(func(s reachability.Status) { calls++ })

	m.Simulate(reachability.ReachableWifi) // same as initial, should not notify
	a.Equal(0, calls)

	m.Simulate(reachability.Unreachable)
	m.Simulate(reachability.Unreachable) // duplicate, should not notify again
	a.Equal(1, calls)
}

func TestMonitorSecondSubscribeReplacesFirst(t *testing.T) {
	a := assert.New(t)
	m := reachability.New(reachability.ReachableWifi)

	var first, second bool
	m.Subscribe(func(reachability.Status) { first = true })
	m.Subscribe(func(reachability.Status) { second = true })

	m.Simulate(reachability.Unreachable)
	a.False(first)
	a.True(second)
}
