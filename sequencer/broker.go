package sequencer

import (
	"time"
)

type (
	// Broker is the centralized message hub between the engine goroutine, the
	// input adapters and the model/UI. It is many-to-one communication, one
	// channel per recipient. Input adapters (MIDI, pads) and the model send to
	// ToEngine; the engine publishes transport position and capture results to
	// ToModel. All sends from the engine goroutine are non-blocking so the
	// timing loop can never dead-lock on a slow consumer.
	//
	// CloseEngine has a capacity of 1, so requesting closure never blocks; if
	// the channel is already full the engine is already closing and dropping
	// the message is fine. FinishedEngine is closed (never sent to) when the
	// engine goroutine has cleaned up; wait for it with TimeoutReceive to
	// avoid hanging on an engine that already died.
	Broker struct {
		ToEngine chan any
		ToModel  chan MsgToModel

		CloseEngine    chan struct{}
		FinishedEngine chan struct{}
	}

	// MsgToModel is the message published to the model. The frequently sent
	// fields (transport state and step position) are unboxed to avoid
	// allocations in the timing loop; infrequent payloads (capture results,
	// alerts) ride in Data.
	MsgToModel struct {
		HasPosition bool
		Playing     bool
		Step        int

		Data any
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToEngine:       make(chan any, 1024),
		ToModel:        make(chan MsgToModel, 1024),
		CloseEngine:    make(chan struct{}, 1),
		FinishedEngine: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Returns true if the value was sent,
// false otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from
// a channel, or timing out after t. ok will be false if the timeout occurred
// or if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
