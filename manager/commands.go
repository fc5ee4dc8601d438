package manager

import (
	"os"

	"github.com/google/uuid"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/xfer"
)

func parseUUID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

// removeUnitsFor cancels and drops every in-flight queue unit belonging to
// blob (its probe/blocks/final), without touching persisted or in-memory
// records. Shared by pause/cancel/remove.
func (m *Manager) removeUnitsFor(blob *xfer.BlobTransfer) {
	m.mu.Lock()
	ids := make([]string, 0, len(blob.Children)+1)
	for id, meta := range m.units {
		if meta.blobID == blob.ID {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(m.units, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.queue.Remove(id)
	}
}

// Pause sets blob to paused, pulls its in-flight units from the queue, and
// recurses the same transition to every child block. A non-pauseable blob
// (already terminal, for instance) is a silent no-op.
func (m *Manager) Pause(blob *xfer.BlobTransfer) {
	if !blob.Apply(xfer.EventPause) {
		return
	}
	m.removeUnitsFor(blob)
	for _, child := range m.graph.Children(blob.ID) {
		child.Apply(xfer.EventPause)
		m.store.UpdateBlock(child)
	}
	m.store.UpdateBlob(blob)
	m.store.Save()
	m.notify(blob)
}

// PauseAll pauses every tracked blob, then clears the queue wholesale as a
// fast path rather than removing each blob's units one at a time.
func (m *Manager) PauseAll() {
	for _, blob := range m.graph.Roots() {
		if blob.Apply(xfer.EventPause) {
			for _, child := range m.graph.Children(blob.ID) {
				child.Apply(xfer.EventPause)
				m.store.UpdateBlock(child)
			}
			m.store.UpdateBlob(blob)
			m.notify(blob)
		}
	}
	m.queue.Clear()
	m.mu.Lock()
	m.units = make(map[string]unitMeta)
	m.mu.Unlock()
	m.store.Save()
}

// Resume re-queues blob using the same restart-normalization rules applied
// at startup, unless the Reachability Monitor currently reports unreachable
// (a resume attempted while offline is a silent no-op).
func (m *Manager) Resume(blob *xfer.BlobTransfer) {
	if m.reach != nil && !m.reach.IsReachable() {
		return
	}
	if !blob.Apply(xfer.EventResumeReachable) {
		return
	}
	m.resumeLocked(blob)
}

// resumeLocked normalizes every non-terminal child back to pending and
// re-enters queueOperations. Used both by Resume and by loadContext at
// startup, so a crash mid-transfer and an explicit pause/resume cycle both
// converge on the same re-decomposition path.
func (m *Manager) resumeLocked(blob *xfer.BlobTransfer) {
	for _, child := range m.graph.Children(blob.ID) {
		switch child.GetState() {
		case common.EState.Complete(), common.EState.Canceled(), common.EState.Deleted():
			continue
		default:
			child.ForceState(common.EState.Pending())
			m.store.UpdateBlock(child)
		}
	}
	m.store.Save()
	m.queueOperations(blob)
}

// ResumeAll resumes every resumable or still-pending blob.
func (m *Manager) ResumeAll() {
	if m.reach != nil && !m.reach.IsReachable() {
		return
	}
	for _, blob := range m.graph.Roots() {
		state := blob.GetState()
		if state == common.EState.Pending() {
			m.resumeLocked(blob)
			continue
		}
		if blob.Apply(xfer.EventResumeReachable) {
			m.resumeLocked(blob)
		}
	}
}

// Cancel sets blob to canceled, removes its units, and recurses the same
// transition to every child.
func (m *Manager) Cancel(blob *xfer.BlobTransfer) {
	if !blob.Apply(xfer.EventCancel) {
		return
	}
	m.removeUnitsFor(blob)
	for _, child := range m.graph.Children(blob.ID) {
		child.Apply(xfer.EventCancel)
		m.store.UpdateBlock(child)
	}
	m.store.UpdateBlob(blob)
	m.store.Save()
	m.notify(blob)
}

// CancelAll cancels every tracked blob.
func (m *Manager) CancelAll() {
	for _, blob := range m.graph.Roots() {
		m.Cancel(blob)
	}
}

// Remove removes the in-memory record, removes queue units, and deletes the
// persisted record (cascading to its blocks). Bytes already written for a
// canceled or in-progress download are left on disk until this point, per
// §5, and are cleaned up here.
func (m *Manager) Remove(blob *xfer.BlobTransfer) {
	blob.Apply(xfer.EventRemove)
	m.removeUnitsFor(blob)
	if blob.Direction == common.EDirection.Download() {
		os.Remove(m.tempPath(blob))
	}
	m.graph.RemoveBlob(blob.ID)
	m.store.DeleteBlob(blob.ID)
	m.store.Save()
}

// RemoveAll removes every tracked blob.
func (m *Manager) RemoveAll() {
	for _, blob := range m.graph.Roots() {
		m.Remove(blob)
	}
}

// Count reports the number of root transfers currently tracked.
func (m *Manager) Count() int { return m.graph.Count() }

// Transfers returns a snapshot of every tracked root transfer; callers never
// get a live view into the manager's internal graph.
func (m *Manager) Transfers() []*xfer.BlobTransfer { return m.graph.Roots() }

// Get looks up a single tracked transfer by id.
func (m *Manager) Get(id uuid.UUID) (*xfer.BlobTransfer, bool) { return m.graph.Blob(id) }
