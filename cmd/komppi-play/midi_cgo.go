//go:build cgo

package main

import (
	"go.uber.org/zap"

	"github.com/hkarvila/komppi/midi"
	"github.com/hkarvila/komppi/sequencer"
)

func newMIDIContext(broker *sequencer.Broker, logger *zap.Logger) midiContext {
	return midi.NewContext(broker, logger)
}
