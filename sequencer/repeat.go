package sequencer

import (
	"time"

	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

type (
	// Swing modifies the note repeat rate: straight, dotted or triplet.
	Swing int

	// NoteRepeater retriggers the held pad's track at a rate derived from the
	// note value, the tempo and the swing modifier. The first retrigger comes
	// only after one full interval has elapsed; the pad-down hit itself is
	// played by the performance path, not by the repeater. Lifting the pad in
	// any way (pad-up, pad-leave, touch-cancel) stops it immediately and
	// unconditionally.
	NoteRepeater struct {
		clock  *Clock
		store  *PatternStore
		bank   komppi.VoiceBank
		logger *zap.Logger

		noteValue float64 // fraction of a whole note per repeat, 1/16 default
		swing     Swing

		pad      int // held track index, -1 when idle
		velocity float64
	}
)

const (
	SwingNormal  Swing = iota // x1
	SwingDotted               // x1.5
	SwingTriplet              // x2/3
)

func NewNoteRepeater(clock *Clock, store *PatternStore, bank komppi.VoiceBank, logger *zap.Logger) *NoteRepeater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoteRepeater{
		clock:     clock,
		store:     store,
		bank:      bank,
		logger:    logger,
		noteValue: 1.0 / 16,
		pad:       -1,
		velocity:  1,
	}
}

// SetRate sets the repeat note value (as a fraction of a whole note) and the
// swing modifier.
func (r *NoteRepeater) SetRate(noteValue float64, swing Swing) {
	if noteValue > 0 {
		r.noteValue = noteValue
	}
	r.swing = swing
}

// Interval converts (noteValue, tempo, swing) to the retrigger period.
func (r *NoteRepeater) Interval() time.Duration {
	wholeNote := 4 * 60 / r.clock.BPM() // seconds, 4/4 time
	seconds := wholeNote * r.noteValue
	switch r.swing {
	case SwingDotted:
		seconds *= 1.5
	case SwingTriplet:
		seconds *= 2.0 / 3
	}
	return time.Duration(seconds * float64(time.Second))
}

// PadDown arms the repeater on the given track. Retriggering starts one full
// interval from now.
func (r *NoteRepeater) PadDown(track int, velocity float64) {
	r.pad = track
	if velocity > 0 {
		r.velocity = velocity
	}
}

// PadUp stops the repeater immediately, regardless of how many periods have
// elapsed.
func (r *NoteRepeater) PadUp() {
	r.pad = -1
}

// Active reports whether the retrigger timer should be running.
func (r *NoteRepeater) Active() bool { return r.pad >= 0 }

// Tick fires one retrigger of the held pad's track voice.
func (r *NoteRepeater) Tick() {
	if r.pad < 0 {
		return
	}
	p := r.store.Current()
	if p == nil || r.pad >= len(p.Tracks) {
		return
	}
	t := &p.Tracks[r.pad]
	r.dispatch(t)
}

func (r *NoteRepeater) dispatch(t *komppi.Track) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("note repeat trigger failed", zap.String("voice", t.VoiceID), zap.Any("panic", rec))
		}
	}()
	velocity := r.velocity * t.Mix.Volume
	if velocity > 1 {
		velocity = 1
	}
	r.bank.Trigger(t.VoiceID, r.clock.NowSeconds(), velocity, t.Params)
}
