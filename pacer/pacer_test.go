package pacer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobxfer/blobxfer/pacer"
)

func TestNilPacerDisablesThrottling(t *testing.T) {
	r := require.New(t)
	var p *pacer.Pacer
	r.NoError(p.RequestUse(context.Background(), 1<<30))
	r.EqualValues(0, p.BytesTransferred())
	p.Close() // must not panic on a nil receiver
}

func TestPacerTracksBytesTransferred(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)
	p := pacer.New(1 << 20) // 1 MiB/s
	defer p.Close()

	r.NoError(p.RequestUse(context.Background(), 100))
	a.EqualValues(100, p.BytesTransferred())
}

func TestPacerRequestUseRespectsContextCancellation(t *testing.T) {
	r := require.New(t)
	p := pacer.New(100) // 10 bytes/tick
	defer p.Close()

	// Drain this tick's allotment entirely.
	r.NoError(p.RequestUse(context.Background(), 10))

	// The next request must wait for a refill; a context shorter than one
	// tick guarantees it times out instead of going through.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.RequestUse(ctx, 5)
	r.Error(err)
}
