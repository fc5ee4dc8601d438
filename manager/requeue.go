package manager

import (
	"os"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/protocol"
	"github.com/blobxfer/blobxfer/queue"
	"github.com/blobxfer/blobxfer/transport"
	"github.com/blobxfer/blobxfer/xfer"
)

// requeueExisting re-enters an already-decomposed blob's children on
// restart or resume: complete children are left alone and excluded from the
// finalize unit's dependency set (the new, empty Queue has no memory of
// them); canceled/deleted children are never revived; anything else was
// already normalized to pending by resumeLocked and is requeued.
func (m *Manager) requeueExisting(blob *xfer.BlobTransfer, client transport.Client) {
	children := m.graph.Children(blob.ID)
	blockIDsInOrder := make([]string, 0, len(children))
	var units []queue.Unit
	var deps []string

	var destFile *os.File
	var srcFile *os.File
	if blob.Direction == common.EDirection.Download() {
		f, err := protocol.ReopenDestination(m.tempPath(blob), blockListSize(children))
		if err != nil {
			m.fail(blob, common.EErrorCode.DecompositionFailure(), "reopening download destination", err)
			return
		}
		destFile = f
	} else {
		f, err := os.Open(blob.Source)
		if err != nil {
			m.fail(blob, common.EErrorCode.DecompositionFailure(), "reopening upload source", err)
			return
		}
		srcFile = f
	}

	for _, child := range children {
		blockIDsInOrder = append(blockIDsInOrder, child.ID.String())
		switch child.GetState() {
		case common.EState.Complete(), common.EState.Canceled(), common.EState.Deleted():
			continue
		}

		deps = append(deps, child.ID.String())
		m.registerUnit(child.ID.String(), blob.ID, kindBlock)
		if blob.Direction == common.EDirection.Download() {
			units = append(units, protocol.NewDownloadBlockUnit(blob, child, destFile, client, m.pacer, m.cfg.MaxRetries))
		} else {
			units = append(units, protocol.NewUploadBlockUnit(blob, child, srcFile, client, m.pacer, m.cfg.MaxRetries))
		}
	}

	var final queue.Unit
	if blob.Direction == common.EDirection.Download() {
		finalOp := protocol.NewDownloadFinal(blob, deps, m.tempPath(blob), destFile)
		m.registerUnit(finalOp.ID(), blob.ID, kindFinal)
		final = finalOp
	} else {
		finalOp := protocol.NewUploadFinal(blob, deps, blockIDsInOrder, client, m.cfg.MaxRetries, srcFile)
		m.registerUnit(finalOp.ID(), blob.ID, kindFinal)
		final = finalOp
	}

	m.enqueueAll(blob, units, final)
}

func blockListSize(children []*xfer.BlockTransfer) int64 {
	var max int64
	for _, c := range children {
		if c.Range.End > max {
			max = c.Range.End
		}
	}
	return max
}
