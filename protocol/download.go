package protocol

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/pacer"
	"github.com/blobxfer/blobxfer/queue"
	"github.com/blobxfer/blobxfer/transport"
	"github.com/blobxfer/blobxfer/xfer"
)

// ProbeOutcome is populated by a DownloadInitialOperation's Run and read by
// the manager's completion callback once the unit finishes — safe without
// extra locking because the queue guarantees Run() happens-before the
// completion callback for the same unit.
type ProbeOutcome struct {
	TotalSize int64
}

// DownloadInitialOperation is the 1-byte probe that establishes the source's
// total size before the real block set can be decomposed.
type DownloadInitialOperation struct {
	UnitID  string
	Source  string
	Client  transport.Client
	Retries int
	Outcome *ProbeOutcome
}

func (u *DownloadInitialOperation) ID() string { return u.UnitID }

func (u *DownloadInitialOperation) Run(ctx context.Context) error {
	err := runWithRetry(ctx, u.Retries, func() error {
		size, err := u.Client.ProbeSize(ctx, u.Source)
		if err != nil {
			return err
		}
		u.Outcome.TotalSize = size
		return nil
	})
	return err
}

// NewProbe builds the probe BlockTransfer (range [0,1)) and its queue unit.
func NewProbe(blob *xfer.BlobTransfer, client transport.Client, retries int) (*xfer.BlockTransfer, *DownloadInitialOperation, *ProbeOutcome) {
	probeBlock := xfer.NewBlockTransfer(blob.ID, common.ByteRange{Start: 0, End: 1})
	outcome := &ProbeOutcome{}
	unit := &DownloadInitialOperation{
		UnitID:  probeBlock.ID.String(),
		Source:  blob.Source,
		Client:  client,
		Retries: retries,
		Outcome: outcome,
	}
	return probeBlock, unit, outcome
}

// DownloadBlockOperation fetches one byte range and writes it to its offset
// in the destination file.
type DownloadBlockOperation struct {
	UnitID  string
	Source  string
	Range   common.ByteRange
	Dest    DestinationWriter
	Client  transport.Client
	Pacer   *pacer.Pacer
	Retries int
}

func (u *DownloadBlockOperation) ID() string { return u.UnitID }

func (u *DownloadBlockOperation) Run(ctx context.Context) error {
	return runWithRetry(ctx, u.Retries, func() error {
		if u.Range.Len() == 0 {
			return nil
		}
		rc, err := u.Client.RangeGet(ctx, u.Source, u.Range.Start, u.Range.End)
		if err != nil {
			return err
		}
		defer rc.Close()
		if err := u.Pacer.RequestUse(ctx, u.Range.Len()); err != nil {
			return err
		}
		return writeChunkAt(u.Dest, rc, u.Range.Start, u.Range.Len())
	})
}

// DownloadFinalOperation assembles the destination file via an atomic
// rename from the temp path, once every block dependency is satisfied.
type DownloadFinalOperation struct {
	UnitID   string
	Deps     []string
	TempPath string
	FinalDst string
	File     *os.File
}

func (u *DownloadFinalOperation) ID() string          { return u.UnitID }
func (u *DownloadFinalOperation) DependsOn() []string { return u.Deps }

func (u *DownloadFinalOperation) Run(ctx context.Context) error {
	if u.File != nil {
		if err := u.File.Close(); err != nil {
			return err
		}
	}
	if err := os.Rename(u.TempPath, u.FinalDst); err != nil {
		return fmt.Errorf("finalizing download: %w", err)
	}
	return nil
}

// NewDownloadBlockUnit builds the queue unit for one already-known
// BlockTransfer, used both by fresh decomposition and by requeueing an
// existing child on resume.
func NewDownloadBlockUnit(blob *xfer.BlobTransfer, block *xfer.BlockTransfer, dest DestinationWriter, client transport.Client, p *pacer.Pacer, retries int) *DownloadBlockOperation {
	return &DownloadBlockOperation{
		UnitID:  block.ID.String(),
		Source:  blob.Source,
		Range:   block.Range,
		Dest:    dest,
		Client:  client,
		Pacer:   p,
		Retries: retries,
	}
}

// NewDownloadFinal builds the finalize unit for blob given the dependency set
// that is actually being requeued this session: completed children are
// retained untouched and are not redundant queue dependencies.
func NewDownloadFinal(blob *xfer.BlobTransfer, deps []string, tempPath string, file *os.File) *DownloadFinalOperation {
	return &DownloadFinalOperation{
		UnitID:   FinalUnitID(blob.ID),
		Deps:     deps,
		TempPath: tempPath,
		FinalDst: blob.Destination,
		File:     file,
	}
}

// BuildDownloadBlocks decomposes a blob of the given size into BlockTransfer
// children plus their queue units, and the final assembly unit that depends
// on all of them: ceil(size / blockSize) BlockTransfers covering the
// remainder.
func BuildDownloadBlocks(blob *xfer.BlobTransfer, size, blockSize int64, tempPath string, client transport.Client, p *pacer.Pacer, retries int) (blocks []*xfer.BlockTransfer, units []queue.Unit, final *DownloadFinalOperation, err error) {
	ranges := common.SplitIntoBlocks(size, blockSize)
	file, err := openTempDestination(tempPath, size)
	if err != nil {
		return nil, nil, nil, err
	}

	deps := make([]string, 0, len(ranges))
	for _, r := range ranges {
		block := xfer.NewBlockTransfer(blob.ID, r)
		blocks = append(blocks, block)
		deps = append(deps, block.ID.String())
		units = append(units, NewDownloadBlockUnit(blob, block, file, client, p, retries))
	}

	final = NewDownloadFinal(blob, deps, tempPath, file)
	return blocks, units, final, nil
}

// FinalUnitID derives the deterministic id used for a blob's finalize unit,
// so the manager can look it up without needing a separate registry.
func FinalUnitID(blobID uuid.UUID) string { return blobID.String() + ":final" }
