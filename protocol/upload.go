package protocol

import (
	"bytes"
	"context"
	"io"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/pacer"
	"github.com/blobxfer/blobxfer/queue"
	"github.com/blobxfer/blobxfer/transport"
	"github.com/blobxfer/blobxfer/xfer"
)

// SourceReaderAt is the minimal surface an upload block needs to read its
// byte range out of the local source, satisfied directly by *os.File.
type SourceReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// UploadBlockOperation stages one byte range of the source at the
// destination under a block id.
type UploadBlockOperation struct {
	UnitID      string
	Destination string
	BlockID     string
	Range       common.ByteRange
	Src         SourceReaderAt
	Client      transport.Client
	Pacer       *pacer.Pacer
	Retries     int
}

func (u *UploadBlockOperation) ID() string { return u.UnitID }

func (u *UploadBlockOperation) Run(ctx context.Context) error {
	return runWithRetry(ctx, u.Retries, func() error {
		if u.Range.Len() == 0 {
			return nil
		}
		buf := make([]byte, u.Range.Len())
		if _, err := u.Src.ReadAt(buf, u.Range.Start); err != nil && err != io.EOF {
			return err
		}
		if err := u.Pacer.RequestUse(ctx, u.Range.Len()); err != nil {
			return err
		}
		return u.Client.BlockPut(ctx, u.Destination, u.BlockID, bytes.NewReader(buf), u.Range.Len())
	})
}

// UploadFinalOperation commits the block list in decomposition order once
// every block dependency is satisfied, then closes the source file handle
// opened for this session: no block unit touches it afterward, so the
// finalize unit is the last place that can close it without racing a
// still-running block read.
type UploadFinalOperation struct {
	UnitID      string
	Deps        []string
	Destination string
	BlockIDs    []string
	Properties  map[string]string
	Client      transport.Client
	Retries     int
	Src         io.Closer
}

func (u *UploadFinalOperation) ID() string          { return u.UnitID }
func (u *UploadFinalOperation) DependsOn() []string { return u.Deps }

func (u *UploadFinalOperation) Run(ctx context.Context) error {
	err := runWithRetry(ctx, u.Retries, func() error {
		return u.Client.CommitBlockList(ctx, u.Destination, u.BlockIDs, u.Properties)
	})
	if u.Src != nil {
		if closeErr := u.Src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// NewUploadBlockUnit builds the queue unit for one already-known
// BlockTransfer, used both by fresh decomposition and by requeueing an
// existing child on resume.
func NewUploadBlockUnit(blob *xfer.BlobTransfer, block *xfer.BlockTransfer, src SourceReaderAt, client transport.Client, p *pacer.Pacer, retries int) *UploadBlockOperation {
	return &UploadBlockOperation{
		UnitID:      block.ID.String(),
		Destination: blob.Destination,
		BlockID:     block.ID.String(),
		Range:       block.Range,
		Src:         src,
		Client:      client,
		Pacer:       p,
		Retries:     retries,
	}
}

// NewUploadFinal builds the commit unit for blob given the dependency set
// actually being requeued this session, and the full, in-order block id list
// (including already-complete ids, which must still appear in the commit
// list even though they carry no queue dependency). src is closed once the
// commit completes; pass nil if the caller has no open handle to hand off
// (e.g. every block was already complete and no source was reopened).
func NewUploadFinal(blob *xfer.BlobTransfer, deps []string, blockIDsInOrder []string, client transport.Client, retries int, src io.Closer) *UploadFinalOperation {
	return &UploadFinalOperation{
		UnitID:      FinalUnitID(blob.ID),
		Deps:        deps,
		Destination: blob.Destination,
		BlockIDs:    blockIDsInOrder,
		Properties:  blob.Properties,
		Client:      client,
		Retries:     retries,
		Src:         src,
	}
}

// BuildUploadBlocks decomposes a source of the given size into BlockTransfer
// children plus their queue units, and the final commit unit that depends on
// all of them, in decomposition order: ceil(size / blockSize) fixed-size
// blocks.
func BuildUploadBlocks(blob *xfer.BlobTransfer, size, blockSize int64, src SourceReaderAt, client transport.Client, p *pacer.Pacer, retries int) (blocks []*xfer.BlockTransfer, units []queue.Unit, final *UploadFinalOperation) {
	ranges := common.SplitIntoBlocks(size, blockSize)

	deps := make([]string, 0, len(ranges))
	blockIDs := make([]string, 0, len(ranges))
	for _, r := range ranges {
		block := xfer.NewBlockTransfer(blob.ID, r)
		blocks = append(blocks, block)
		deps = append(deps, block.ID.String())
		blockIDs = append(blockIDs, block.ID.String())
		units = append(units, NewUploadBlockUnit(blob, block, src, client, p, retries))
	}

	var closer io.Closer
	if c, ok := src.(io.Closer); ok {
		closer = c
	}
	final = NewUploadFinal(blob, deps, blockIDs, client, retries, closer)
	return blocks, units, final
}
