// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package manager implements the Manager facade: the entry point that owns
// the transfer graph, the persistent store, the work queue, and the
// reachability monitor, and exposes the add/pause/resume/cancel/remove
// command surface over the Blob/Block transfer graph.
package manager

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/pacer"
	"github.com/blobxfer/blobxfer/protocol"
	"github.com/blobxfer/blobxfer/queue"
	"github.com/blobxfer/blobxfer/reachability"
	"github.com/blobxfer/blobxfer/store"
	"github.com/blobxfer/blobxfer/transport"
	"github.com/blobxfer/blobxfer/xfer"
)

// Config is constructed by the embedding application and passed to New; no
// config-file library is involved, just a struct assembled by cmd/ from
// flags.
type Config struct {
	MaxConcurrentChunks int
	BlockSize           int64
	MaxRetries          int
	StorePath           string
	TempDir             string
	TargetBytesPerSec   int64
}

const defaultBlockSize = 4 * 1024 * 1024

func (c Config) withDefaults() Config {
	if c.MaxConcurrentChunks <= 0 {
		c.MaxConcurrentChunks = common.ComputeConcurrencyValue()
	}
	if c.BlockSize <= 0 {
		c.BlockSize = defaultBlockSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = protocol.DefaultMaxRetries
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

// unitKind tags what a queued unit id refers to, so the completion callback
// knows which of probe/block/final it is resuming.
type unitKind int

const (
	kindProbe unitKind = iota
	kindBlock
	kindFinal
)

type unitMeta struct {
	blobID uuid.UUID
	kind   unitKind
}

// Manager is the facade over one transfer domain. Construct one per
// persistent store; a process embedding multiple independent stores
// constructs one Manager each.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	graph    *xfer.Graph
	store    *store.Store
	queue    *queue.Queue
	reach    *reachability.Monitor
	delegate Delegate
	logger   common.ILogger
	pacer    *pacer.Pacer

	units        map[string]unitMeta
	probeResults map[uuid.UUID]*protocol.ProbeOutcome
}

// New constructs a Manager: hydrates in-memory state from the persistent
// store (loadContext) and subscribes to the reachability monitor.
func New(cfg Config, delegate Delegate, reach *reachability.Monitor, logger common.ILogger) (*Manager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = common.NewAppLogger(common.LogInfo)
	}

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening persistent store")
	}

	m := &Manager{
		cfg:          cfg,
		graph:        xfer.NewGraph(),
		store:        st,
		reach:        reach,
		delegate:     delegate,
		logger:       logger,
		pacer:        pacer.New(cfg.TargetBytesPerSec),
		units:        make(map[string]unitMeta),
		probeResults: make(map[uuid.UUID]*protocol.ProbeOutcome),
	}
	m.queue = queue.New(cfg.MaxConcurrentChunks, m.onUnitComplete)

	if err := m.loadContext(); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "loading persisted transfer context")
	}

	if reach != nil {
		reach.Subscribe(m.onReachabilityChanged)
	}

	return m, nil
}

// Close releases the store handle and pacer goroutine.
func (m *Manager) Close() error {
	m.pacer.Close()
	return m.store.Close()
}

func (m *Manager) onReachabilityChanged(status reachability.Status) {
	if status.IsReachable() {
		m.queue.Clear()
		m.ResumeAll()
	} else {
		m.PauseAll()
	}
}

// loadContext hydrates the in-memory graph from the persistent store and
// re-queues whatever survives the restart-normalization rules.
func (m *Manager) loadContext() error {
	blobs, err := m.store.FetchRootBlobs()
	if err != nil {
		return err
	}
	for _, blob := range blobs {
		m.graph.PutBlob(blob)
		blocks, err := m.store.FetchBlocks(blob.ID)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			m.graph.PutBlock(block)
		}
		// A crash leaves most in-flight transfers persisted mid-flight as
		// inProgress (nothing else changes that state away from it outside
		// a terminal event or an explicit pause), so restart must revive
		// those in addition to the pending/paused/failed states resumable
		// through the public Resume API. As with Resume/ResumeAll, a startup
		// that finds the Reachability Monitor already unreachable leaves
		// everything alone rather than touching the network.
		state := blob.GetState()
		if (m.reach == nil || m.reach.IsReachable()) &&
			(state.Resumable() || state == common.EState.Pending() || state == common.EState.InProgress()) {
			m.resumeLocked(blob)
		}
	}
	return nil
}

// resolveClient asks the delegate for a live client keyed by the blob's
// ClientRestorationID, used whenever the originating client is not already
// in hand (startup, resume, or restart).
func (m *Manager) resolveClient(blob *xfer.BlobTransfer) (transport.Client, bool) {
	if m.delegate == nil {
		return nil, false
	}
	return m.delegate.Client(blob.ClientRestorationID)
}

func (m *Manager) tempPath(blob *xfer.BlobTransfer) string {
	return filepath.Join(m.cfg.TempDir, blob.ID.String()+".part")
}

// Add accepts a partially populated transfer: direction, source, destination,
// properties, and restoration id.
func (m *Manager) Add(direction common.Direction, source, destination, restorationID string, props map[string]string) (*xfer.BlobTransfer, error) {
	blob := xfer.NewBlobTransfer(direction, source, destination, restorationID, props)
	m.graph.PutBlob(blob)
	if err := m.persistBlob(blob); err != nil {
		return nil, err
	}
	m.queueOperations(blob)
	return blob, nil
}

// queueOperations decomposes (if needed) and enqueues a blob's work. It is
// re-entered on resume; probe completion continues through
// buildDownloadBlocks directly.
func (m *Manager) queueOperations(blob *xfer.BlobTransfer) {
	client, ok := m.resolveClient(blob)
	if !ok {
		m.fail(blob, common.EErrorCode.ClientRestorationFailure(), "no live client for restoration id", nil)
		return
	}

	if blob.Direction == common.EDirection.Upload() {
		m.queueUpload(blob, client)
		return
	}
	m.queueDownload(blob, client)
}

func (m *Manager) queueUpload(blob *xfer.BlobTransfer, client transport.Client) {
	// A non-empty child set means this blob was already decomposed in a
	// prior session; re-enqueue the survivors instead of decomposing again,
	// which would mint new block ids and duplicate already-uploaded bytes.
	if len(blob.Children) > 0 {
		m.requeueExisting(blob, client)
		return
	}

	info, err := os.Stat(blob.Source)
	if err != nil {
		m.fail(blob, common.EErrorCode.DecompositionFailure(), "statting upload source", err)
		return
	}
	src, err := os.Open(blob.Source)
	if err != nil {
		m.fail(blob, common.EErrorCode.DecompositionFailure(), "opening upload source", err)
		return
	}

	blocks, units, final := protocol.BuildUploadBlocks(blob, info.Size(), m.cfg.BlockSize, src, client, m.pacer, m.cfg.MaxRetries)
	m.registerChildren(blob, blocks, kindBlock)
	m.registerUnit(final.ID(), blob.ID, kindFinal)
	m.enqueueAll(blob, units, final)
}

func (m *Manager) queueDownload(blob *xfer.BlobTransfer, client transport.Client) {
	if !blob.InitialCallComplete {
		// Drop any stale probe child left over from a crash mid-probe; the
		// probe itself carries no resumable state worth preserving.
		blob.ClearChildren()
		probeBlock, probeUnit, outcome := protocol.NewProbe(blob, client, m.cfg.MaxRetries)
		m.graph.PutBlock(probeBlock)
		blob.AddChild(probeBlock.ID)
		m.setProbeOutcome(blob.ID, outcome)
		m.registerUnit(probeUnit.ID(), blob.ID, kindProbe)
		blob.Apply(xfer.EventScheduled)
		m.notify(blob)
		if err := m.queue.Add(probeUnit); err != nil {
			m.logger.Log(common.LogError, err.Error())
		}
		return
	}
	if len(blob.Children) > 0 {
		m.requeueExisting(blob, client)
		return
	}
	m.buildDownloadBlocks(blob, client)
}

// buildDownloadBlocks runs after the probe's completion callback has set
// initialCallComplete and recorded the blob's total size: the probe-to-block
// decomposition handoff.
func (m *Manager) buildDownloadBlocks(blob *xfer.BlobTransfer, client transport.Client) {
	outcome := m.takeProbeOutcome(blob.ID)
	var size int64
	if outcome != nil {
		size = outcome.TotalSize
	}
	blocks, units, final, err := protocol.BuildDownloadBlocks(blob, size, m.cfg.BlockSize, m.tempPath(blob), client, m.pacer, m.cfg.MaxRetries)
	if err != nil {
		m.fail(blob, common.EErrorCode.DecompositionFailure(), "allocating download destination", err)
		return
	}
	m.registerChildren(blob, blocks, kindBlock)
	m.registerUnit(final.ID(), blob.ID, kindFinal)
	m.enqueueAll(blob, units, final)
}

func (m *Manager) registerChildren(blob *xfer.BlobTransfer, blocks []*xfer.BlockTransfer, kind unitKind) {
	for _, block := range blocks {
		m.graph.PutBlock(block)
		blob.AddChild(block.ID)
		m.registerUnit(block.ID.String(), blob.ID, kind)
		m.store.InsertBlock(block)
	}
	blob.TotalBlocks = len(blocks)
	m.store.UpdateBlob(blob)
}

func (m *Manager) enqueueAll(blob *xfer.BlobTransfer, units []queue.Unit, final queue.Unit) {
	if err := m.store.Save(); err != nil {
		m.logger.Log(common.LogError, "persisting decomposition: "+err.Error())
	}
	blob.Apply(xfer.EventScheduled)
	all := append(append([]queue.Unit{}, units...), final)
	if err := m.queue.AddBatch(all); err != nil {
		m.logger.Log(common.LogError, err.Error())
	}
	m.notify(blob)
}

func (m *Manager) registerUnit(unitID string, blobID uuid.UUID, kind unitKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unitID] = unitMeta{blobID: blobID, kind: kind}
}

func (m *Manager) takeUnit(unitID string) (unitMeta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.units[unitID]
	delete(m.units, unitID)
	return meta, ok
}

func (m *Manager) setProbeOutcome(blobID uuid.UUID, o *protocol.ProbeOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeResults[blobID] = o
}

func (m *Manager) takeProbeOutcome(blobID uuid.UUID) *protocol.ProbeOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.probeResults[blobID]
	delete(m.probeResults, blobID)
	return o
}

// onUnitComplete is the Queue's CompletionFunc: the queue calls it once per
// unit, never concurrently with itself, which is the only synchronization
// this method relies on beyond Manager's own mutex for the shared maps it
// touches.
func (m *Manager) onUnitComplete(unitID string, err error) {
	meta, ok := m.takeUnit(unitID)
	if !ok {
		return // unit belonged to a transfer that was removed meanwhile
	}
	blob, ok := m.graph.Blob(meta.blobID)
	if !ok {
		return
	}

	switch meta.kind {
	case kindProbe:
		m.onProbeComplete(blob, err)
	case kindBlock:
		m.onBlockComplete(blob, unitID, err)
	case kindFinal:
		m.onFinalComplete(blob, err)
	}
}

func (m *Manager) onProbeComplete(blob *xfer.BlobTransfer, err error) {
	if err != nil {
		m.fail(blob, common.EErrorCode.TransportFailure(), "probing blob size", err)
		return
	}
	blob.ClearChildren()
	blob.InitialCallComplete = true
	m.store.UpdateBlob(blob)

	client, ok := m.resolveClient(blob)
	if !ok {
		m.fail(blob, common.EErrorCode.ClientRestorationFailure(), "no live client for restoration id", nil)
		return
	}
	m.buildDownloadBlocks(blob, client)
}

func (m *Manager) onBlockComplete(blob *xfer.BlobTransfer, unitID string, err error) {
	block, ok := m.graph.Block(parseUUID(unitID))
	if ok {
		if err != nil {
			block.Apply(xfer.EventError)
			m.store.UpdateBlock(block)
		} else {
			// The block's own unit is its final unit: pending -> inProgress -> complete.
			block.Apply(xfer.EventScheduled)
			block.Apply(xfer.EventFinalOK)
			m.store.UpdateBlock(block)
		}
	}
	m.graph.RecomputeState(blob.ID)
	m.store.UpdateBlob(blob)
	if saveErr := m.store.Save(); saveErr != nil {
		m.logger.Log(common.LogError, "persisting block completion: "+saveErr.Error())
	}
	if st := blob.GetState(); st.Terminal() || st == common.EState.Failed() {
		// A failed sibling block means the finalize unit will never see all
		// its dependencies satisfied; drop it rather than leave it queued
		// forever. This termination check applies per-transfer, not per-unit.
		m.removeUnitsFor(blob)
		m.notify(blob)
	}
}

func (m *Manager) onFinalComplete(blob *xfer.BlobTransfer, err error) {
	if err != nil {
		m.fail(blob, common.EErrorCode.TransportFailure(), "finalizing transfer", err)
		return
	}
	blob.Apply(xfer.EventFinalOK)
	m.store.UpdateBlob(blob)
	if saveErr := m.store.Save(); saveErr != nil {
		m.logger.Log(common.LogError, "persisting finalize completion: "+saveErr.Error())
	}
	m.notify(blob)
}

func (m *Manager) persistBlob(blob *xfer.BlobTransfer) error {
	if err := m.store.InsertBlob(blob); err != nil {
		return err
	}
	return m.store.Save()
}

func (m *Manager) fail(blob *xfer.BlobTransfer, code common.ErrorCode, msg string, cause error) {
	blob.SetError(common.NewTransferError(code, msg, cause))
	blob.Apply(xfer.EventError)
	m.store.UpdateBlob(blob)
	if err := m.store.Save(); err != nil {
		m.logger.Log(common.LogError, "persisting failure: "+err.Error())
	}
	m.notify(blob)
}

func (m *Manager) notify(blob *xfer.BlobTransfer) {
	if m.delegate != nil {
		m.delegate.StateChanged(blob.ID.String(), blob.GetState(), blob.Err)
	}
}
