package sequencer

import (
	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

// MetronomeVoiceID is the voice bank key the metronome clicks dispatch to.
const MetronomeVoiceID = "metronome"

type (
	// StepScheduler turns clock ticks into voice triggers. It never mutates
	// the pattern; every tick re-reads the live pattern from the store, so
	// step content edited while playing is picked up on the very next tick
	// without any rebuild. Within one tick the order is fixed: due note
	// releases, track triggers in ascending track order, then the metronome.
	// Plain clock listeners (UI) always run after the scheduler.
	StepScheduler struct {
		store  *PatternStore
		clock  *Clock
		bank   komppi.VoiceBank
		logger *zap.Logger

		metronome    bool
		justCaptured func(track, step int) bool

		pending []pendingRelease
	}

	pendingRelease struct {
		dueStep int
		voiceID string
		noteID  int
	}
)

func NewStepScheduler(store *PatternStore, clock *Clock, bank komppi.VoiceBank, logger *zap.Logger) *StepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StepScheduler{store: store, clock: clock, bank: bank, logger: logger}
}

// SetMetronome enables the click on quarter-note boundaries.
func (s *StepScheduler) SetMetronome(on bool) { s.metronome = on }

// SetCaptureGuard installs the "just captured this hit" predicate. A live
// recording write landing on the same track and step within the same tick
// already sounded through the performance path; triggering it again here
// would double it.
func (s *StepScheduler) SetCaptureGuard(fn func(track, step int) bool) {
	s.justCaptured = fn
}

// OnStep implements StepHandler.
func (s *StepScheduler) OnStep(step int) {
	p := s.store.Current()
	if p == nil || p.StepsPerTrack == 0 {
		return
	}
	idx := step % p.StepsPerTrack
	at := s.clock.TimeAtStep(step)
	s.releaseDue(step, at)
	soloActive := false
	for i := range p.Tracks {
		if p.Tracks[i].Solo {
			soloActive = true
			break
		}
	}
	for i := range p.Tracks {
		t := &p.Tracks[i]
		if t.Muted || (soloActive && !t.Solo) || !t.Steps[idx].Active {
			continue
		}
		if s.justCaptured != nil && s.justCaptured(i, idx) {
			continue
		}
		velocity := t.Velocities[idx] * t.Mix.Volume
		if velocity < 0 {
			velocity = 0
		} else if velocity > 1 {
			velocity = 1
		}
		s.dispatch(i, t, idx, step, at, velocity)
	}
	if s.metronome && idx%4 == 0 {
		s.click(idx, at)
	}
}

// dispatch triggers one track's voice. A panicking voice implementation is
// contained here: the failure is logged and the remaining tracks of this tick
// still fire.
func (s *StepScheduler) dispatch(trackIndex int, t *komppi.Track, stepIdx, step int, at, velocity float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("voice trigger failed",
				zap.String("voice", t.VoiceID), zap.Int("step", stepIdx), zap.Any("panic", r))
		}
	}()
	st := t.Steps[stepIdx]
	params := t.Params
	if st.Note != "" {
		id := noteID(trackIndex, stepIdx)
		length := st.Length
		if length < 1 {
			length = 1
		}
		params = komppi.NoteParams{Note: st.Note, NoteID: id, Base: t.Params}
		s.pending = append(s.pending, pendingRelease{dueStep: step + length, voiceID: t.VoiceID, noteID: id})
	}
	if !s.bank.Trigger(t.VoiceID, at, velocity, params) {
		s.logger.Warn("dropped trigger for unknown voice", zap.String("voice", t.VoiceID))
	}
}

func (s *StepScheduler) click(stepIdx int, at float64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("metronome trigger failed", zap.Any("panic", r))
		}
	}()
	note := komppi.Pitch("A5")
	if stepIdx%komppi.StepsPerBar == 0 {
		note = "A6" // bar downbeat clicks an octave up
	}
	s.bank.Trigger(MetronomeVoiceID, at, 0.6, komppi.NoteParams{Note: note})
}

// releaseDue sends the voice-off events whose step has arrived.
func (s *StepScheduler) releaseDue(step int, at float64) {
	kept := s.pending[:0]
	for _, r := range s.pending {
		if r.dueStep <= step {
			s.bank.Release(r.voiceID, r.noteID, at)
			continue
		}
		kept = append(kept, r)
	}
	s.pending = kept
}

// ReleaseAll cancels every pending voice-off by releasing immediately. The
// engine calls this when the transport stops so no note is left sounding.
func (s *StepScheduler) ReleaseAll(at float64) {
	for _, r := range s.pending {
		s.bank.Release(r.voiceID, r.noteID, at)
	}
	s.pending = s.pending[:0]
}

// noteID gives scheduler-triggered notes an identity distinct per track and
// step, so overlapping releases pair with the right trigger.
func noteID(track, step int) int {
	return track*komppi.MaxSteps + step
}
