//go:build !cgo

package main

import (
	"go.uber.org/zap"

	"github.com/hkarvila/komppi/sequencer"
)

// nullMIDIContext stands in when the MIDI driver is not compiled in.
type nullMIDIContext struct{}

func (nullMIDIContext) TryToOpenBy(namePrefix string, takeFirst bool) {}
func (nullMIDIContext) Close()                                        {}

func newMIDIContext(broker *sequencer.Broker, logger *zap.Logger) midiContext {
	return nullMIDIContext{}
}
