package common

import (
	"encoding/json"
	"reflect"
	"sync/atomic"

	"github.com/JeffreyRichter/enum/enum"
)

// EState is used as the receiver for the State enum's symbol methods, following
// the same method-symbol idiom as the rest of this package's enums.
var EState = State(0)

// State is the transfer/block lifecycle state from the transition table. Kept
// 32-bit so AtomicLoad/AtomicStore can operate on it.
type State int32

func (State) Pending() State     { return State(0) }
func (State) InProgress() State  { return State(1) }
func (State) Paused() State      { return State(2) }
func (State) Complete() State    { return State(3) }
func (State) Failed() State      { return State(4) }
func (State) Canceled() State    { return State(5) }
func (State) Deleted() State     { return State(6) }

// Terminal reports whether no further transition is accepted from this state.
func (s State) Terminal() bool {
	return s == EState.Complete() || s == EState.Canceled() || s == EState.Deleted()
}

// Pauseable mirrors the manager's derived predicate: pending or in-flight work
// can be paused; anything else is a silent no-op.
func (s State) Pauseable() bool {
	return s == EState.Pending() || s == EState.InProgress()
}

// Resumable mirrors the manager's derived predicate.
func (s State) Resumable() bool {
	return s == EState.Paused() || s == EState.Failed()
}

func (s State) String() string {
	return enum.StringInt(s, reflect.TypeOf(s))
}

func (s *State) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(State)
	}
	return err
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return s.Parse(str)
}

func (s *State) AtomicLoad() State { return State(atomic.LoadInt32((*int32)(s))) }
func (s *State) AtomicStore(newState State) {
	atomic.StoreInt32((*int32)(s), int32(newState))
}

// EDirection is the receiver for the Direction enum.
var EDirection = Direction(0)

type Direction int32

func (Direction) Upload() Direction   { return Direction(0) }
func (Direction) Download() Direction { return Direction(1) }

func (d Direction) String() string {
	return enum.StringInt(d, reflect.TypeOf(d))
}

func (d *Direction) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(d), str, true, true)
	if err == nil {
		*d = val.(Direction)
	}
	return err
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return d.Parse(str)
}
