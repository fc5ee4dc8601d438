package store_test

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/store"
	"github.com/blobxfer/blobxfer/xfer"
)

func openTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blobxfer.db")
	st, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestStoreInsertAndFetchRoots(t *testing.T) {
	r := require.New(t)
	st, _ := openTestStore(t)

	blob := xfer.NewBlobTransfer(common.EDirection.Upload(), "src", "dst", "restoration-1", map[string]string{"contentType": "application/octet-stream"})
	r.NoError(st.InsertBlob(blob))

	block := xfer.NewBlockTransfer(blob.ID, common.ByteRange{Start: 0, End: 4})
	blob.AddChild(block.ID)
	r.NoError(st.InsertBlock(block))
	r.NoError(st.UpdateBlob(blob))
	r.NoError(st.Save())

	roots, err := st.FetchRootBlobs()
	r.NoError(err)
	r.Len(roots, 1)
	r.Equal(blob.ID, roots[0].ID)
	r.Equal("restoration-1", roots[0].ClientRestorationID)
	r.Equal([]uuid.UUID{block.ID}, roots[0].Children)

	blocks, err := st.FetchBlocks(blob.ID)
	r.NoError(err)
	r.Len(blocks, 1)
	r.Equal(block.ID, blocks[0].ID)
	r.Equal(common.ByteRange{Start: 0, End: 4}, blocks[0].Range)
}

func TestStoreSurvivesReopen(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "blobxfer.db")

	st, err := store.Open(path, nil)
	r.NoError(err)
	blob := xfer.NewBlobTransfer(common.EDirection.Download(), "src", "dst", "restoration-2", nil)
	blob.ForceState(common.EState.Paused())
	r.NoError(st.InsertBlob(blob))
	r.NoError(st.Save())
	r.NoError(st.Close())

	reopened, err := store.Open(path, nil)
	r.NoError(err)
	defer reopened.Close()

	roots, err := reopened.FetchRootBlobs()
	r.NoError(err)
	r.Len(roots, 1)
	r.Equal(blob.ID, roots[0].ID)
	r.Equal(common.EState.Paused(), roots[0].GetState())
}

func TestStoreDeleteBlobCascadesToBlocks(t *testing.T) {
	r := require.New(t)
	st, _ := openTestStore(t)

	blob := xfer.NewBlobTransfer(common.EDirection.Upload(), "src", "dst", "r", nil)
	block1 := xfer.NewBlockTransfer(blob.ID, common.ByteRange{Start: 0, End: 4})
	block2 := xfer.NewBlockTransfer(blob.ID, common.ByteRange{Start: 4, End: 8})
	blob.AddChild(block1.ID)
	blob.AddChild(block2.ID)

	r.NoError(st.InsertBlob(blob))
	r.NoError(st.InsertBlock(block1))
	r.NoError(st.InsertBlock(block2))
	r.NoError(st.Save())

	blocks, err := st.FetchBlocks(blob.ID)
	r.NoError(err)
	r.Len(blocks, 2)

	st.DeleteBlob(blob.ID)
	r.NoError(st.Save())

	roots, err := st.FetchRootBlobs()
	r.NoError(err)
	r.Empty(roots)

	blocks, err = st.FetchBlocks(blob.ID)
	r.NoError(err)
	r.Empty(blocks)
}

func TestStoreMultiBlobTransfer(t *testing.T) {
	r := require.New(t)
	st, _ := openTestStore(t)

	blobA := xfer.NewBlobTransfer(common.EDirection.Upload(), "a-src", "a-dst", "r", nil)
	blobB := xfer.NewBlobTransfer(common.EDirection.Upload(), "b-src", "b-dst", "r", nil)
	r.NoError(st.InsertBlob(blobA))
	r.NoError(st.InsertBlob(blobB))

	multi := &store.MultiBlobTransfer{ID: uuid.New(), Name: "batch-1", BlobIDs: []uuid.UUID{blobA.ID, blobB.ID}}
	r.NoError(st.InsertMultiBlob(multi))
	r.NoError(st.Save())

	multis, err := st.FetchRootMultiBlobs()
	r.NoError(err)
	r.Len(multis, 1)
	r.Equal("batch-1", multis[0].Name)
	r.ElementsMatch([]uuid.UUID{blobA.ID, blobB.ID}, multis[0].BlobIDs)

	st.DeleteMultiBlob(multi.ID)
	r.NoError(st.Save())
	multis, err = st.FetchRootMultiBlobs()
	r.NoError(err)
	r.Empty(multis)
}
