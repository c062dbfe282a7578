// Package midi connects hardware MIDI input to the engine. Incoming note
// messages become performance input events on the broker; everything else is
// ignored. The adapter never blocks: a full engine queue drops the event.
package midi

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
	"github.com/hkarvila/komppi/sequencer"
)

type (
	// Context owns the MIDI driver and the currently open input port.
	Context struct {
		driver             *rtmididrv.Driver
		broker             *sequencer.Broker
		logger             *zap.Logger
		currentIn          drivers.In
		inputDevices       []Device
		devicesInitialized bool
	}

	// Device is one enumerable MIDI input port.
	Device struct {
		context *Context
		in      drivers.In
	}
)

// NewContext opens the MIDI driver. A machine without a working driver still
// gets a usable Context; it just never yields any devices.
func NewContext(broker *sequencer.Broker, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{broker: broker, logger: logger}
	c.driver, _ = rtmididrv.New()
	return c
}

// InputDevices iterates over the available MIDI input ports. The device list
// is enumerated once and cached; call it on a fresh Context to rescan.
func (c *Context) InputDevices(yield func(Device) bool) {
	if c.devicesInitialized {
		for _, device := range c.inputDevices {
			if !yield(device) {
				break
			}
		}
		return
	}
	if c.driver == nil {
		return
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return
	}
	for _, in := range ins {
		device := Device{context: c, in: in}
		c.inputDevices = append(c.inputDevices, device)
		if !yield(device) {
			break
		}
	}
	c.devicesInitialized = true
}

// TryToOpenBy opens the first input device whose name starts with namePrefix,
// or the first device of any name when takeFirst is set.
func (c *Context) TryToOpenBy(namePrefix string, takeFirst bool) {
	if namePrefix == "" && !takeFirst {
		return
	}
	for device := range c.InputDevices {
		if takeFirst || strings.HasPrefix(device.String(), namePrefix) {
			if err := device.Open(); err != nil {
				c.logger.Warn("could not open MIDI input", zap.String("device", device.String()), zap.Error(err))
			}
			return
		}
	}
	c.logger.Info("no matching MIDI input found", zap.String("prefix", namePrefix))
}

// Open opens the device for listening, closing the currently open one first.
func (d Device) Open() error {
	c := d.context
	if c.currentIn == d.in {
		return nil
	}
	if c.driver == nil {
		return errors.New("no driver available")
	}
	if c.HasDeviceOpen() {
		c.currentIn.Close()
	}
	c.currentIn = d.in
	if err := d.in.Open(); err != nil {
		c.currentIn = nil
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	if _, err := midi.ListenTo(d.in, c.handleMessage); err != nil {
		d.in.Close()
		c.currentIn = nil
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.logger.Info("opened MIDI input", zap.String("device", d.String()))
	return nil
}

func (d Device) String() string { return d.in.String() }

func (c *Context) HasDeviceOpen() bool {
	return c.currentIn != nil && c.currentIn.IsOpen()
}

// Close closes the open input port and the driver.
func (c *Context) Close() {
	if c.driver == nil {
		return
	}
	if c.currentIn != nil && c.currentIn.IsOpen() {
		c.currentIn.Close()
	}
	c.driver.Close()
}

// handleMessage runs on the driver's callback goroutine, so it only converts
// and hands off.
func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		sequencer.TrySend(c.broker.ToEngine, any(sequencer.InputEvent{
			Kind:     sequencer.EventNoteOn,
			Note:     komppi.PitchFromMIDI(int(key)),
			Velocity: float64(velocity) / 127,
		}))
	case msg.GetNoteOff(&channel, &key, &velocity):
		sequencer.TrySend(c.broker.ToEngine, any(sequencer.InputEvent{
			Kind: sequencer.EventNoteOff,
			Note: komppi.PitchFromMIDI(int(key)),
		}))
	}
}
