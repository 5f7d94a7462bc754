package gosim

import "sync/atomic"

// eventIDCounter is the process-wide monotonic event id sequence. It is
// conceptually module-level state, initialized at process start and
// torn down with the process.
var eventIDCounter atomic.Uint64

func nextEventID() uint64 {
	return eventIDCounter.Add(1)
}

// Event wraps a TypedValue with a logical timestamp (the producing
// cycle number) and a globally unique, strictly increasing id.
type Event struct {
	Payload   TypedValue
	EventID   uint64
	Timestamp uint64
}

// NewEvent assigns the next globally-unique id and wraps v with ts.
func NewEvent[T any](ts uint64, v T) Event {
	return Event{
		Payload:   NewTypedValue(v),
		EventID:   nextEventID(),
		Timestamp: ts,
	}
}

// Clone returns a copy of e. The event id and timestamp are copied
// verbatim; only the payload goes through its recorded clone thunk.
func (e Event) Clone() Event {
	return Event{
		Payload:   e.Payload.Clone(),
		EventID:   e.EventID,
		Timestamp: e.Timestamp,
	}
}
