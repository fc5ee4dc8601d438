// Package pacer throttles chunk I/O to a target aggregate byte rate. It is
// an optional ambient concern: nothing requires throttling, but the
// protocol layer can wrap its chunk reads/writes in a Pacer when a caller
// configures a target rate. Implemented as a token bucket refilled by a
// background ticker.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer hands out byte-transfer allowance at a fixed rate. A nil *Pacer is
// valid and never throttles, so callers that don't configure a target rate
// pay no cost.
type Pacer struct {
	mu              sync.Mutex
	bytesPerTick    int64
	tokens          int64
	tick            time.Duration
	done            chan struct{}
	bytesTransferred int64
}

// New creates a Pacer capped at targetBytesPerSec. A targetBytesPerSec <= 0
// disables pacing (RequestUse never blocks).
func New(targetBytesPerSec int64) *Pacer {
	if targetBytesPerSec <= 0 {
		return nil
	}
	const tick = 100 * time.Millisecond
	p := &Pacer{
		bytesPerTick: targetBytesPerSec / int64(time.Second/tick),
		tick:         tick,
		done:         make(chan struct{}),
	}
	if p.bytesPerTick <= 0 {
		p.bytesPerTick = 1
	}
	p.tokens = p.bytesPerTick
	go p.refill()
	return p
}

func (p *Pacer) refill() {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.tokens = p.bytesPerTick
			p.mu.Unlock()
		}
	}
}

// RequestUse blocks, polling each tick, until n bytes of allowance are
// available (or ctx is done), then debits them.
func (p *Pacer) RequestUse(ctx context.Context, n int64) error {
	if p == nil {
		return nil
	}
	for {
		p.mu.Lock()
		if p.tokens >= n || p.tokens == p.bytesPerTick {
			// Either we have enough, or this request alone exceeds one tick's
			// allotment and must be let through to avoid starving forever.
			p.tokens -= n
			p.bytesTransferred += n
			p.mu.Unlock()
			return nil
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.tick):
		}
	}
}

// BytesTransferred returns the cumulative byte count paced through this
// instance, usable to compute aggregate throughput.
func (p *Pacer) BytesTransferred() int64 {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytesTransferred
}

// Close stops the background refill goroutine.
func (p *Pacer) Close() {
	if p == nil {
		return
	}
	close(p.done)
}
