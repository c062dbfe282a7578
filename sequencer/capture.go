package sequencer

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

type (
	// CaptureMode selects how the recording window is sized. Fixed mode
	// quantizes into the pattern's existing loop; free capture records into
	// the maximum 16 bar window and infers the loop length afterwards.
	CaptureMode int

	// CaptureSession converts free-timed note-on/note-off performance into
	// quantized step writes on one melodic track. Two time sources are used
	// on purpose: the clock position decides where in the loop a note lands,
	// while a monotonic wall clock measures how long it was held, so a note
	// held across a transport pause still accumulates real time.
	//
	// All methods run on the engine goroutine. Writes go through the pattern
	// store's live reference; a note-off arriving after the pattern was
	// swapped updates the current pattern, never a stale snapshot.
	CaptureSession struct {
		store  *PatternStore
		clock  *Clock
		broker *Broker
		logger *zap.Logger

		trackIndex int
		loopLength int
		mode       CaptureMode
		recording  bool

		noteStarts map[komppi.Pitch]noteStart
		captured   []CapturedEvent

		lastWrite    capturedWrite
		hasLastWrite bool

		now      func() time.Time
		autoStop *time.Timer
	}

	noteStart struct {
		stepIndex int
		startedAt time.Time
		velocity  float64
	}

	capturedWrite struct {
		track int
		step  int
		tick  int
	}

	// CapturedEvent is the session's record of one closed note, published to
	// the model when the session ends.
	CapturedEvent struct {
		Step     int
		Note     komppi.Pitch
		Length   int
		Velocity float64
	}
)

const (
	CaptureFixed CaptureMode = iota
	CaptureFree
)

// maxCapturedLength caps a sustained note at half a bar; longer holds are
// musically indistinguishable from pad notes in a step grid.
const maxCapturedLength = 8

func NewCaptureSession(store *PatternStore, clock *Clock, broker *Broker, trackIndex int, logger *zap.Logger) *CaptureSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureSession{
		store:      store,
		clock:      clock,
		broker:     broker,
		trackIndex: trackIndex,
		logger:     logger,
		noteStarts: make(map[komppi.Pitch]noteStart),
		now:        time.Now,
	}
}

// Arm begins a recording session. In free capture the loop spans the maximum
// window and an auto-stop fires when the window has fully elapsed.
func (c *CaptureSession) Arm(mode CaptureMode) {
	c.cancelAutoStop()
	c.mode = mode
	c.recording = true
	if mode == CaptureFree {
		c.loopLength = komppi.MaxSteps
		window := time.Duration(c.loopLength) * c.clock.StepDuration()
		c.autoStop = time.AfterFunc(window, func() {
			TrySend(c.broker.ToEngine, any(autoStopMsg{}))
		})
	} else {
		c.loopLength = c.store.Current().StepsPerTrack
	}
}

// Recording reports whether the session is armed.
func (c *CaptureSession) Recording() bool { return c.recording }

// PlayingBack reports whether previously captured material is currently
// audible, i.e. the transport runs and the session has closed notes.
func (c *CaptureSession) PlayingBack() bool {
	return c.clock.Running() && len(c.captured) > 0
}

// LoopLength returns the session's quantization window in steps.
func (c *CaptureSession) LoopLength() int { return c.loopLength }

// NoteOn quantizes a performed note start into the loop and writes a minimal
// step immediately, so a note whose note-off is never delivered still appears
// with an audible length of one.
func (c *CaptureSession) NoteOn(note komppi.Pitch, velocity float64) {
	if !c.recording {
		return
	}
	var stepIndex, tick int
	if !c.clock.Running() {
		// Auto-start on the first note. The pre-start clock position is
		// stale, so this note defines step zero instead of reading it.
		c.clock.Start()
		stepIndex = 0
		tick = c.clock.Step()
	} else {
		pos := math.Mod(c.clock.Pos(), float64(c.loopLength))
		stepIndex = int(math.Round(pos))
		tick = c.clock.Step()
		if stepIndex >= c.loopLength {
			stepIndex = c.loopLength - 1
		} else if float64(stepIndex) > pos {
			// rounded up: the quantized step sounds on the tick about to
			// fire, so the guard must match that tick, not this one
			tick++
		}
	}
	if velocity <= 0 {
		velocity = 1
	}
	c.noteStarts[note] = noteStart{stepIndex: stepIndex, startedAt: c.now(), velocity: velocity}
	c.writeStep(stepIndex, komppi.Step{Active: true, Note: note, Length: 1, Velocity: velocity})
	c.lastWrite = capturedWrite{track: c.trackIndex, step: stepIndex, tick: tick}
	c.hasLastWrite = true
}

// NoteOff closes a performed note, updating the already written step's length
// from the measured hold time. The close path depends only on the presence of
// the start record: session flags may lag the event when the transport start
// was asynchronous, and a stale note-off after the session was cleared is
// silently ignored. Closing twice is a no-op.
func (c *CaptureSession) NoteOff(note komppi.Pitch) {
	rec, ok := c.noteStarts[note]
	if !ok {
		return
	}
	delete(c.noteStarts, note)
	c.closeNote(note, rec, c.now())
}

// Stop ends the session, finalizing any still-open notes with their elapsed
// hold so far. In free capture the loop length is inferred from the furthest
// recorded step, rounded up to a whole bar, and the session converts to
// fixed mode. Returns the session's final loop length in steps.
func (c *CaptureSession) Stop() int {
	c.cancelAutoStop()
	now := c.now()
	for note, rec := range c.noteStarts {
		c.closeNote(note, rec, now)
	}
	clear(c.noteStarts)
	c.recording = false
	if c.mode == CaptureFree {
		c.loopLength = c.inferLoopLength()
		c.mode = CaptureFixed
	}
	if len(c.captured) > 0 {
		TrySend(c.broker.ToModel, MsgToModel{Data: append([]CapturedEvent(nil), c.captured...)})
	}
	return c.loopLength
}

// Clear tears the session down without keeping anything: open notes are
// finalized, tracking state and captured events are dropped.
func (c *CaptureSession) Clear() {
	c.Stop()
	c.captured = c.captured[:0]
	c.hasLastWrite = false
}

// JustCaptured is the scheduler's guard: true if a live write on this track
// and step sounds on the current tick, in which case the hit already played
// through the performance path. A write quantized forward onto the next step
// boundary is stamped with that upcoming tick, so the scheduler skips it
// exactly when the boundary arrives.
func (c *CaptureSession) JustCaptured(track, step int) bool {
	return c.hasLastWrite &&
		c.lastWrite.track == track &&
		c.lastWrite.step == step &&
		c.lastWrite.tick == c.clock.Step()
}

func (c *CaptureSession) closeNote(note komppi.Pitch, rec noteStart, now time.Time) {
	elapsed := now.Sub(rec.startedAt)
	length := int(elapsed / c.clock.StepDuration())
	maxLength := maxCapturedLength
	if c.loopLength < maxLength {
		maxLength = c.loopLength
	}
	if length < 1 {
		length = 1
	} else if length > maxLength {
		length = maxLength
	}
	c.store.Update(func(p *komppi.Pattern) {
		if c.trackIndex >= len(p.Tracks) {
			return
		}
		t := &p.Tracks[c.trackIndex]
		if rec.stepIndex >= len(t.Steps) || t.Steps[rec.stepIndex].Note != note {
			return
		}
		s := t.Steps[rec.stepIndex]
		s.Length = length
		t.SetStep(rec.stepIndex, s)
	})
	c.captured = append(c.captured, CapturedEvent{Step: rec.stepIndex, Note: note, Length: length, Velocity: rec.velocity})
}

// Captured returns the closed notes of the session. Steps recorded past the
// current track length were not written to the grid; the engine re-applies
// these after the post-capture rebuild.
func (c *CaptureSession) Captured() []CapturedEvent {
	return c.captured
}

func (c *CaptureSession) writeStep(stepIndex int, s komppi.Step) {
	c.store.Update(func(p *komppi.Pattern) {
		if c.trackIndex >= len(p.Tracks) {
			c.logger.Warn("capture write dropped, track out of range",
				zap.Int("track", c.trackIndex), zap.Int("tracks", len(p.Tracks)))
			return
		}
		t := &p.Tracks[c.trackIndex]
		if stepIndex >= len(t.Steps) {
			return
		}
		t.SetStep(stepIndex, s)
		if stepIndex < len(t.Velocities) {
			t.Velocities[stepIndex] = s.Velocity
		}
	})
}

func (c *CaptureSession) inferLoopLength() int {
	furthest := 0
	for _, e := range c.captured {
		if e.Step > furthest {
			furthest = e.Step
		}
	}
	bars := furthest/komppi.StepsPerBar + 1
	length := bars * komppi.StepsPerBar
	if length > komppi.MaxSteps {
		length = komppi.MaxSteps
	}
	return length
}

// cancelAutoStop fully cancels the pending auto-stop timer, draining an
// already-fired timer so a replacement can never race the old one.
func (c *CaptureSession) cancelAutoStop() {
	if c.autoStop == nil {
		return
	}
	c.autoStop.Stop()
	c.autoStop = nil
}

type autoStopMsg struct{}
