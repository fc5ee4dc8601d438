package xfer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/blobxfer/blobxfer/common"
)

// BlobTransfer is the parent record for one logical upload or download.
type BlobTransfer struct {
	mu sync.Mutex

	ID                  uuid.UUID
	Direction           common.Direction
	Source              string
	Destination         string
	ClientRestorationID string
	Properties          map[string]string
	State               common.State
	TotalBlocks         int
	InitialCallComplete bool
	Err                 *common.TransferError

	// Children holds ordered block ids; order matters because commit-block-list
	// is issued in decomposition order.
	Children []uuid.UUID
}

func NewBlobTransfer(direction common.Direction, source, destination, restorationID string, props map[string]string) *BlobTransfer {
	if props == nil {
		props = map[string]string{}
	}
	return &BlobTransfer{
		ID:                  uuid.New(),
		Direction:           direction,
		Source:              source,
		Destination:         destination,
		ClientRestorationID: restorationID,
		Properties:          props,
		State:               common.EState.Pending(),
	}
}

func (b *BlobTransfer) GetState() common.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.State
}

// Apply runs ev through the shared state machine and records the result.
// Returns true iff the transition actually happened; callers treat false as
// a no-op, which is what makes every command idempotent.
func (b *BlobTransfer) Apply(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, ok := ApplyEvent(b.State, ev)
	if ok {
		b.State = next
	}
	return ok
}

// ForceState sets the state directly, bypassing the transition table. Used
// by Graph.RecomputeState, which derives the parent's state from its
// children rather than from a single Event.
func (b *BlobTransfer) ForceState(s common.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.State = s
}

func (b *BlobTransfer) SetError(err *common.TransferError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Err = err
}

// AddChild appends a block id in decomposition order.
func (b *BlobTransfer) AddChild(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Children = append(b.Children, id)
}

// ClearChildren resets the child list, used when the probe block is replaced
// by the real block set during download decomposition.
func (b *BlobTransfer) ClearChildren() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Children = nil
}

// BlockTransfer is one byte-range chunk of a BlobTransfer. For uploads, ID
// doubles as the block id sent to the service.
type BlockTransfer struct {
	mu sync.Mutex

	ID       uuid.UUID
	ParentID uuid.UUID
	Range    common.ByteRange
	State    common.State
}

func NewBlockTransfer(parentID uuid.UUID, r common.ByteRange) *BlockTransfer {
	return &BlockTransfer{
		ID:       uuid.New(),
		ParentID: parentID,
		Range:    r,
		State:    common.EState.Pending(),
	}
}

func (b *BlockTransfer) GetState() common.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.State
}

func (b *BlockTransfer) Apply(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, ok := ApplyEvent(b.State, ev)
	if ok {
		b.State = next
	}
	return ok
}

// ForceState sets the state directly, bypassing the transition table. Used to
// seed a block's state when hand-constructing persisted records, e.g. for
// restart/resumption tests.
func (b *BlockTransfer) ForceState(s common.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.State = s
}
