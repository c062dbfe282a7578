package sequencer

import (
	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

type (
	// EventKind enumerates the complete set of performance inputs the engine
	// reacts to. Keeping this a closed set, delivered as plain messages over
	// the broker, is what makes the core drivable without any UI.
	EventKind int

	// InputEvent is one performance input. Note events carry Note and
	// Velocity; pad events carry Pad (a track index). Blur and Hidden carry
	// nothing and exist so that losing the window can never leave notes
	// stuck.
	InputEvent struct {
		Kind     EventKind
		Note     komppi.Pitch
		Velocity float64
		Pad      int
	}

	// PerformanceInputHandler routes the input events to the capture session,
	// the arpeggiator, the note repeater and the direct performance voice. It
	// owns the set of directly sounding held notes so every note-on is paired
	// with exactly one release, whatever path sounded it.
	PerformanceInputHandler struct {
		clock    *Clock
		bank     komppi.VoiceBank
		store    *PatternStore
		capture  *CaptureSession
		arp      *Arpeggiator
		repeater *NoteRepeater
		logger   *zap.Logger

		melodicVoiceID string
		melodicParams  komppi.VoiceParams

		heldDirect map[komppi.Pitch]int
	}
)

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventPadDown
	EventPadUp
	EventPadLeave
	EventTouchCancel
	EventBlur
	EventHidden
)

func NewPerformanceInputHandler(clock *Clock, bank komppi.VoiceBank, store *PatternStore,
	capture *CaptureSession, arp *Arpeggiator, repeater *NoteRepeater,
	melodicVoiceID string, logger *zap.Logger) *PerformanceInputHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceInputHandler{
		clock:          clock,
		bank:           bank,
		store:          store,
		capture:        capture,
		arp:            arp,
		repeater:       repeater,
		logger:         logger,
		melodicVoiceID: melodicVoiceID,
		heldDirect:     make(map[komppi.Pitch]int),
	}
}

// SetMelodicParams sets the family record sent with directly performed notes.
func (h *PerformanceInputHandler) SetMelodicParams(p komppi.VoiceParams) {
	h.melodicParams = p
}

// Handle processes one performance input event.
func (h *PerformanceInputHandler) Handle(e InputEvent) {
	switch e.Kind {
	case EventNoteOn:
		h.noteOn(e.Note, e.Velocity)
	case EventNoteOff:
		h.noteOff(e.Note)
	case EventPadDown:
		h.padDown(e.Pad, e.Velocity)
	case EventPadUp, EventPadLeave, EventTouchCancel:
		h.repeater.PadUp()
	case EventBlur, EventHidden:
		h.ReleaseAll()
	}
}

// SetArpEnabled toggles the arpeggiator. Notes the arpeggiator sounds
// directly on disable become held direct notes, released by their own
// note-offs like any other.
func (h *PerformanceInputHandler) SetArpEnabled(on bool) {
	for _, note := range h.arp.SetEnabled(on) {
		if id, err := note.MIDI(); err == nil {
			h.heldDirect[note] = id
		}
	}
}

func (h *PerformanceInputHandler) noteOn(note komppi.Pitch, velocity float64) {
	h.capture.NoteOn(note, velocity)
	if h.arp.Enabled() {
		h.arp.Hold(note, velocity)
		return
	}
	id, err := note.MIDI()
	if err != nil {
		h.logger.Warn("ignored unparsable note", zap.String("note", string(note)))
		return
	}
	if velocity <= 0 {
		velocity = 1
	}
	h.trigger(note, id, velocity)
	h.heldDirect[note] = id
}

func (h *PerformanceInputHandler) noteOff(note komppi.Pitch) {
	h.capture.NoteOff(note)
	if h.arp.Enabled() {
		h.arp.Release(note)
	}
	if id, ok := h.heldDirect[note]; ok {
		delete(h.heldDirect, note)
		h.bank.Release(h.melodicVoiceID, id, h.clock.NowSeconds())
	}
}

func (h *PerformanceInputHandler) padDown(pad int, velocity float64) {
	// the pad hit itself sounds right away; the repeater only takes over
	// after its first full interval
	p := h.store.Current()
	if p != nil && pad >= 0 && pad < len(p.Tracks) {
		t := &p.Tracks[pad]
		v := velocity * t.Mix.Volume
		if v <= 0 {
			v = t.Mix.Volume
		}
		if v > 1 {
			v = 1
		}
		h.safeTrigger(t.VoiceID, v, t.Params)
	}
	h.repeater.PadDown(pad, velocity)
}

func (h *PerformanceInputHandler) trigger(note komppi.Pitch, id int, velocity float64) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("performance trigger failed", zap.String("note", string(note)), zap.Any("panic", r))
		}
	}()
	h.bank.Trigger(h.melodicVoiceID, h.clock.NowSeconds(), velocity,
		komppi.NoteParams{Note: note, NoteID: id, Base: h.melodicParams})
}

func (h *PerformanceInputHandler) safeTrigger(voiceID string, velocity float64, params komppi.VoiceParams) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("pad trigger failed", zap.String("voice", voiceID), zap.Any("panic", r))
		}
	}()
	h.bank.Trigger(voiceID, h.clock.NowSeconds(), velocity, params)
}

// ReleaseAll silences everything the performance paths may be holding: the
// arpeggiator, the repeater and the direct notes. Required on transport stop,
// window blur and visibility-hidden.
func (h *PerformanceInputHandler) ReleaseAll() {
	h.arp.Clear()
	h.repeater.PadUp()
	at := h.clock.NowSeconds()
	for note, id := range h.heldDirect {
		h.bank.Release(h.melodicVoiceID, id, at)
		delete(h.heldDirect, note)
	}
}
