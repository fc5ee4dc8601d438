// Package store is the Persistent Store: durable storage of transfer and
// chunk records keyed by stable identity. It is backed by go.etcd.io/bbolt, a
// single-writer embedded KV store (see DESIGN.md for the full rationale).
package store

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/blobxfer/blobxfer/common"
	"github.com/blobxfer/blobxfer/xfer"
)

var (
	bucketBlobs      = []byte("blob_transfers")
	bucketBlocks     = []byte("block_transfers")
	bucketMultiBlobs = []byte("multi_blob_transfers")
	bucketParentIdx  = []byte("parent_index")
)

// MultiBlobTransfer groups a set of BlobTransfer ids under one logical batch.
// It is a root record: it has no parent and cascades to its member
// BlobTransfers on delete.
type MultiBlobTransfer struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	BlobIDs []uuid.UUID `json:"blobIds"`
}

type opKind int

const (
	opUpsertBlob opKind = iota
	opUpsertBlock
	opUpsertMultiBlob
	opDeleteBlob
	opDeleteBlock
	opDeleteMultiBlob
)

type pendingOp struct {
	kind opKind
	id   uuid.UUID
	data []byte // nil for deletes
}

// Store is the single-writer handle: save() is invoked from a single
// dedicated serialization context; all other accesses must funnel through
// that context or use short-lived read snapshots. Mutating calls only stage
// changes; Save atomically flushes them in one bbolt transaction, and failed
// flushes are retried on the next Save call rather than surfaced as transfer
// failures.
type Store struct {
	db *bolt.DB

	mu      sync.Mutex
	pending []pendingOp
	logger  common.ILogger

	// saveMu is the single dedicated serialization context Save runs under:
	// it makes Save itself safe to call from multiple goroutines (command
	// threads and queue completion callbacks alike) by ensuring only one
	// flush ever reads and trims s.pending at a time.
	saveMu sync.Mutex
}

// Open creates or opens the bbolt file at path. A store-open failure is
// fatal: the manager cannot start, so callers should not attempt to continue
// past a non-nil error here.
func Open(path string, logger common.ILogger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening persistent store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBlobs, bucketBlocks, bucketMultiBlobs, bucketParentIdx} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing persistent store buckets")
	}
	if logger == nil {
		logger = common.NewAppLogger(common.LogInfo)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) stage(op pendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, op)
}

// InsertBlob stages a new BlobTransfer for the next Save.
func (s *Store) InsertBlob(b *xfer.BlobTransfer) error { return s.UpdateBlob(b) }

// UpdateBlob stages a whole-document replace of b's persisted record; the
// most recently staged write for a given id always wins.
func (s *Store) UpdateBlob(b *xfer.BlobTransfer) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errors.Wrap(err, "marshaling blob transfer")
	}
	s.stage(pendingOp{kind: opUpsertBlob, id: b.ID, data: data})
	return nil
}

func (s *Store) DeleteBlob(id uuid.UUID) {
	s.stage(pendingOp{kind: opDeleteBlob, id: id})
}

func (s *Store) InsertBlock(b *xfer.BlockTransfer) error { return s.UpdateBlock(b) }

func (s *Store) UpdateBlock(b *xfer.BlockTransfer) error {
	data, err := json.Marshal(b)
	if err != nil {
		return errors.Wrap(err, "marshaling block transfer")
	}
	s.stage(pendingOp{kind: opUpsertBlock, id: b.ID, data: data})
	return nil
}

func (s *Store) DeleteBlock(id uuid.UUID) {
	s.stage(pendingOp{kind: opDeleteBlock, id: id})
}

func (s *Store) InsertMultiBlob(m *MultiBlobTransfer) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "marshaling multi-blob transfer")
	}
	s.stage(pendingOp{kind: opUpsertMultiBlob, id: m.ID, data: data})
	return nil
}

func (s *Store) DeleteMultiBlob(id uuid.UUID) {
	s.stage(pendingOp{kind: opDeleteMultiBlob, id: id})
}

// Save atomically flushes every staged change in one bbolt transaction.
// DeleteBlob cascades to every block whose parent_index entry points at it.
// On failure the pending queue is left intact so the next Save retries it;
// a flush failure is logged and retried, never surfaced as a transfer
// failure on its own.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	ops := s.pending
	s.mu.Unlock()
	if len(ops) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, op := range ops {
			if err := applyOp(tx, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Log(common.LogError, "persistent store save failed, will retry on next Save: "+err.Error())
		return errors.Wrap(err, "flushing persistent store")
	}

	s.mu.Lock()
	// Only drop the ops we actually flushed; anything staged meanwhile stays queued.
	if len(s.pending) == len(ops) {
		s.pending = nil
	} else {
		s.pending = s.pending[len(ops):]
	}
	s.mu.Unlock()
	return nil
}

func applyOp(tx *bolt.Tx, op pendingOp) error {
	switch op.kind {
	case opUpsertBlob:
		if err := tx.Bucket(bucketBlobs).Put(idKey(op.id), op.data); err != nil {
			return err
		}
		var b xfer.BlobTransfer
		if err := json.Unmarshal(op.data, &b); err != nil {
			return err
		}
		return writeParentIndex(tx, op.id, b.Children)
	case opUpsertBlock:
		return tx.Bucket(bucketBlocks).Put(idKey(op.id), op.data)
	case opUpsertMultiBlob:
		return tx.Bucket(bucketMultiBlobs).Put(idKey(op.id), op.data)
	case opDeleteBlob:
		children, err := readParentIndex(tx, op.id)
		if err != nil {
			return err
		}
		for _, childID := range children {
			if err := tx.Bucket(bucketBlocks).Delete(idKey(childID)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketParentIdx).Delete(idKey(op.id)); err != nil {
			return err
		}
		return tx.Bucket(bucketBlobs).Delete(idKey(op.id))
	case opDeleteBlock:
		return tx.Bucket(bucketBlocks).Delete(idKey(op.id))
	case opDeleteMultiBlob:
		if data := tx.Bucket(bucketMultiBlobs).Get(idKey(op.id)); data != nil {
			var m MultiBlobTransfer
			if err := json.Unmarshal(data, &m); err != nil {
				return err
			}
			for _, blobID := range m.BlobIDs {
				if err := applyOp(tx, pendingOp{kind: opDeleteBlob, id: blobID}); err != nil {
					return err
				}
			}
		}
		return tx.Bucket(bucketMultiBlobs).Delete(idKey(op.id))
	}
	return nil
}

func idKey(id uuid.UUID) []byte { return []byte(id.String()) }

func writeParentIndex(tx *bolt.Tx, parent uuid.UUID, children []uuid.UUID) error {
	data, err := json.Marshal(children)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketParentIdx).Put(idKey(parent), data)
}

func readParentIndex(tx *bolt.Tx, parent uuid.UUID) ([]uuid.UUID, error) {
	data := tx.Bucket(bucketParentIdx).Get(idKey(parent))
	if data == nil {
		return nil, nil
	}
	var children []uuid.UUID
	if err := json.Unmarshal(data, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// FetchRootBlobs returns every persisted BlobTransfer. Every BlobTransfer is
// a root record by construction; only roots are exposed through the
// top-level enumeration.
func (s *Store) FetchRootBlobs() ([]*xfer.BlobTransfer, error) {
	var out []*xfer.BlobTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).ForEach(func(_, v []byte) error {
			var b xfer.BlobTransfer
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			out = append(out, &b)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching root blob transfers")
	}
	return out, nil
}

// FetchBlocks returns every persisted BlockTransfer belonging to parentID, in
// the order recorded by the parent_index.
func (s *Store) FetchBlocks(parentID uuid.UUID) ([]*xfer.BlockTransfer, error) {
	var out []*xfer.BlockTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		children, err := readParentIndex(tx, parentID)
		if err != nil {
			return err
		}
		for _, childID := range children {
			data := tx.Bucket(bucketBlocks).Get(idKey(childID))
			if data == nil {
				continue
			}
			var blk xfer.BlockTransfer
			if err := json.Unmarshal(data, &blk); err != nil {
				return err
			}
			out = append(out, &blk)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching block transfers")
	}
	return out, nil
}

// FetchRootMultiBlobs returns every persisted MultiBlobTransfer.
func (s *Store) FetchRootMultiBlobs() ([]*MultiBlobTransfer, error) {
	var out []*MultiBlobTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMultiBlobs).ForEach(func(_, v []byte) error {
			var m MultiBlobTransfer
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, &m)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching multi-blob transfers")
	}
	return out, nil
}
