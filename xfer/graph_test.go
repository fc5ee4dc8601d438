package xfer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/xfer"
)

func newBlobWithChildren(t *testing.T, n int) (*xfer.BlobTransfer, *xfer.Graph) {
	t.Helper()
	g := xfer.NewGraph()
	blob := xfer.NewBlobTransfer(common.EDirection.Upload(), "src", "dst", "r", nil)
	blob.Apply(xfer.EventScheduled)
	g.PutBlob(blob)
	for i := 0; i < n; i++ {
		block := xfer.NewBlockTransfer(blob.ID, common.ByteRange{Start: int64(i), End: int64(i + 1)})
		block.Apply(xfer.EventScheduled)
		blob.AddChild(block.ID)
		g.PutBlock(block)
	}
	return blob, g
}

func TestRecomputeStateAllCompleteLeavesBlobInProgress(t *testing.T) {
	a := assert.New(t)
	blob, g := newBlobWithChildren(t, 3)
	for _, c := range g.Children(blob.ID) {
		require.True(t, c.Apply(xfer.EventChunkOK))
		require.True(t, c.Apply(xfer.EventFinalOK))
	}
	g.RecomputeState(blob.ID)
	// every block finishing only makes the finalize unit eligible to run; the
	// blob itself only reaches Complete once that unit's EventFinalOK lands.
	a.Equal(common.EState.InProgress(), blob.GetState())
}

func TestRecomputeStateOneFailedNoneRunningMarksBlobFailed(t *testing.T) {
	a := assert.New(t)
	blob, g := newBlobWithChildren(t, 3)
	children := g.Children(blob.ID)
	require.True(t, children[0].Apply(xfer.EventChunkOK))
	require.True(t, children[0].Apply(xfer.EventFinalOK))
	require.True(t, children[1].Apply(xfer.EventError))
	require.True(t, children[2].Apply(xfer.EventError))

	g.RecomputeState(blob.ID)
	a.Equal(common.EState.Failed(), blob.GetState())
}

func TestRecomputeStateStillRunningLeavesBlobInProgress(t *testing.T) {
	a := assert.New(t)
	blob, g := newBlobWithChildren(t, 2)
	children := g.Children(blob.ID)
	require.True(t, children[0].Apply(xfer.EventError))
	// children[1] is still inProgress.

	g.RecomputeState(blob.ID)
	a.Equal(common.EState.InProgress(), blob.GetState())
}

func TestRecomputeStateIgnoresTerminalBlob(t *testing.T) {
	a := assert.New(t)
	blob, g := newBlobWithChildren(t, 1)
	blob.Apply(xfer.EventCancel)
	g.RecomputeState(blob.ID)
	a.Equal(common.EState.Canceled(), blob.GetState())
}

func TestRemoveBlobCascadesToChildren(t *testing.T) {
	a := assert.New(t)
	blob, g := newBlobWithChildren(t, 2)
	childIDs := blob.Children

	g.RemoveBlob(blob.ID)

	_, ok := g.Blob(blob.ID)
	a.False(ok)
	for _, id := range childIDs {
		_, ok := g.Block(id)
		a.False(ok)
	}
	a.Equal(0, g.Count())
}
