package xfer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blobxfer/blobxfer/common"
)

// Kind tags which arm of the Blob/Block variant an entry holds, a tagged
// union in place of subclass dispatch over a single Transfer base type.
type Kind int

const (
	KindBlob Kind = iota
	KindBlock
)

// Graph is the in-memory parent/child transfer tree: a one-way
// parent->children ownership with an id-indexed back-lookup, rather than a
// true cyclic object reference.
type Graph struct {
	mu     sync.RWMutex
	blobs  map[uuid.UUID]*BlobTransfer
	blocks map[uuid.UUID]*BlockTransfer
}

func NewGraph() *Graph {
	return &Graph{
		blobs:  make(map[uuid.UUID]*BlobTransfer),
		blocks: make(map[uuid.UUID]*BlockTransfer),
	}
}

func (g *Graph) PutBlob(b *BlobTransfer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blobs[b.ID] = b
}

func (g *Graph) PutBlock(b *BlockTransfer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocks[b.ID] = b
}

func (g *Graph) Blob(id uuid.UUID) (*BlobTransfer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blobs[id]
	return b, ok
}

func (g *Graph) Block(id uuid.UUID) (*BlockTransfer, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	b, ok := g.blocks[id]
	return b, ok
}

// Children returns the blocks of blobID, in decomposition order.
func (g *Graph) Children(blobID uuid.UUID) []*BlockTransfer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	blob, ok := g.blobs[blobID]
	if !ok {
		return nil
	}
	out := make([]*BlockTransfer, 0, len(blob.Children))
	for _, id := range blob.Children {
		if block, ok := g.blocks[id]; ok {
			out = append(out, block)
		}
	}
	return out
}

// Roots returns every BlobTransfer as a snapshot slice; callers never get a
// live view into the graph's internal map.
func (g *Graph) Roots() []*BlobTransfer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*BlobTransfer, 0, len(g.blobs))
	for _, b := range g.blobs {
		out = append(out, b)
	}
	return out
}

func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.blobs)
}

// RemoveBlob deletes a BlobTransfer and cascades to every child BlockTransfer.
func (g *Graph) RemoveBlob(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	blob, ok := g.blobs[id]
	if !ok {
		return
	}
	for _, childID := range blob.Children {
		delete(g.blocks, childID)
	}
	delete(g.blobs, id)
}

// RecomputeState derives the parent's Failed state from its children: once
// no block is still running and at least one has failed, the finalize unit
// can never see all its dependencies satisfied, so the blob fails outright
// rather than leaving it stuck in progress. It never derives Complete: every
// block finishing only means the finalize unit (commit-block-list for
// uploads, temp-file rename for downloads) is now eligible to run, not that
// the transfer is done — Complete is reached exclusively through the
// finalize unit's own EventFinalOK. It is called by the manager after every
// child completion callback, and never races with pause/cancel/remove
// because the manager applies it under the same lock it uses for all other
// parent mutation.
func (g *Graph) RecomputeState(blobID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	blob, ok := g.blobs[blobID]
	if !ok {
		return
	}
	if blob.GetState().Terminal() {
		return
	}
	if len(blob.Children) == 0 {
		return // nothing to derive from yet; caller drives completion explicitly for 0-block blobs
	}

	anyFailed := false
	anyRunning := false
	for _, childID := range blob.Children {
		child, ok := g.blocks[childID]
		if !ok {
			continue
		}
		switch child.GetState() {
		case common.EState.Complete():
		case common.EState.Failed():
			anyFailed = true
		case common.EState.Canceled(), common.EState.Deleted():
		default:
			anyRunning = true
		}
	}

	if anyFailed && !anyRunning {
		blob.ForceState(common.EState.Failed())
	}
}
