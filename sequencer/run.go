package sequencer

import (
	"time"

	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

type (
	// Engine owns the whole runtime: the clock, the scheduler, the capture
	// session, the arpeggiator and the note repeater, plus the three timers
	// that drive them. Everything runs on the one goroutine executing Run,
	// which is what makes the pattern safe to share without locks: writes and
	// reads interleave cooperatively, never concurrently.
	Engine struct {
		broker *Broker
		store  *PatternStore
		logger *zap.Logger

		clock    *Clock
		sched    *StepScheduler
		capture  *CaptureSession
		arp      *Arpeggiator
		repeater *NoteRepeater
		input    *PerformanceInputHandler

		stepTimer *time.Timer
		arpTimer  *time.Timer
		repTimer  *time.Timer
	}

	// EngineOptions carries the optional wiring of an Engine.
	EngineOptions struct {
		Logger         *zap.Logger
		Warmup         func() error // audio backend warm-up run by the first Start
		CaptureTrack   int          // melodic track index live recording writes to
		MelodicVoiceID string       // voice the performance paths play through
	}
)

// Control messages accepted on Broker.ToEngine. InputEvent values are
// accepted alongside these.
type (
	StartMsg     struct{}
	StopMsg      struct{}
	PauseMsg     struct{}
	BPMMsg       struct{ BPM float64 }
	MetronomeMsg struct{ On bool }

	// LoopLengthMsg changes the pattern's step count: the hot rebuild path.
	LoopLengthMsg struct{ Steps int }

	// SwapPatternMsg replaces the whole pattern, e.g. with generated content.
	SwapPatternMsg struct{ Pattern komppi.Pattern }

	RecordMsg      struct{ Mode CaptureMode }
	StopRecordMsg  struct{}
	ClearRecordMsg struct{}

	ArpEnabledMsg struct{ On bool }
	ArpModeMsg    struct{ Mode ArpMode }
	ArpRateMsg    struct{ Rate float64 }

	RepeatRateMsg struct {
		NoteValue float64
		Swing     Swing
	}
)

func NewEngine(broker *Broker, pattern komppi.Pattern, bank komppi.VoiceBank, opts EngineOptions) (*Engine, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	melodic := opts.MelodicVoiceID
	if melodic == "" && opts.CaptureTrack < len(pattern.Tracks) {
		melodic = pattern.Tracks[opts.CaptureTrack].VoiceID
	}
	store := NewPatternStore(pattern)
	clock := NewClock(pattern.BPM, logger)
	clock.SetWarmup(opts.Warmup)
	sched := NewStepScheduler(store, clock, bank, logger)
	capture := NewCaptureSession(store, clock, broker, opts.CaptureTrack, logger)
	arp := NewArpeggiator(clock, bank, melodic, logger)
	repeater := NewNoteRepeater(clock, store, bank, logger)
	input := NewPerformanceInputHandler(clock, bank, store, capture, arp, repeater, melodic, logger)
	sched.SetCaptureGuard(capture.JustCaptured)
	clock.AddHandler(sched)
	e := &Engine{
		broker:   broker,
		store:    store,
		logger:   logger,
		clock:    clock,
		sched:    sched,
		capture:  capture,
		arp:      arp,
		repeater: repeater,
		input:    input,
	}
	clock.AddListener(e.publishPosition)
	return e, nil
}

// Clock exposes the transport for callers outside the engine goroutine; all
// Clock methods are safe to call concurrently.
func (e *Engine) Clock() *Clock { return e.clock }

// Store exposes the pattern store.
func (e *Engine) Store() *PatternStore { return e.store }

// Run is the engine goroutine: it processes broker messages and the step,
// arpeggiator and repeater timers until CloseEngine is signalled. The select
// makes the execution model cooperative and single-threaded; within one timer
// expiry the tick order is fully deterministic.
func (e *Engine) Run() {
	defer close(e.broker.FinishedEngine)
	for {
		var stepC, arpC, repC <-chan time.Time
		if e.stepTimer != nil {
			stepC = e.stepTimer.C
		}
		if e.arpTimer != nil {
			arpC = e.arpTimer.C
		}
		if e.repTimer != nil {
			repC = e.repTimer.C
		}
		select {
		case <-e.broker.CloseEngine:
			e.stopTransport()
			e.discardTimers()
			return
		case msg := <-e.broker.ToEngine:
			e.handleMessage(msg)
		case <-stepC:
			e.clock.Tick()
			e.stepTimer.Reset(e.clock.StepDuration())
		case <-arpC:
			e.arp.Tick()
			e.arpTimer.Reset(e.arp.Interval())
		case <-repC:
			e.repeater.Tick()
			e.repTimer.Reset(e.repeater.Interval())
		}
		e.syncTimers()
	}
}

func (e *Engine) handleMessage(msg any) {
	switch m := msg.(type) {
	case StartMsg:
		e.clock.Start()
	case StopMsg:
		e.stopTransport()
	case PauseMsg:
		e.clock.Pause()
	case BPMMsg:
		e.clock.SetTempo(m.BPM)
		e.store.Update(func(p *komppi.Pattern) { p.BPM = m.BPM })
	case MetronomeMsg:
		e.sched.SetMetronome(m.On)
	case LoopLengthMsg:
		e.rebuild(m.Steps)
	case SwapPatternMsg:
		if err := m.Pattern.Validate(); err != nil {
			e.logger.Warn("rejected invalid pattern", zap.Error(err))
			return
		}
		if m.Pattern.StepsPerTrack != e.store.Current().StepsPerTrack {
			e.swapRebuilding(m.Pattern)
			return
		}
		e.store.Swap(m.Pattern)
	case RecordMsg:
		e.capture.Arm(m.Mode)
	case StopRecordMsg, autoStopMsg:
		e.finishRecording()
	case ClearRecordMsg:
		e.capture.Clear()
	case InputEvent:
		e.input.Handle(m)
	case ArpEnabledMsg:
		e.input.SetArpEnabled(m.On)
	case ArpModeMsg:
		e.arp.SetMode(m.Mode)
	case ArpRateMsg:
		e.arp.SetRate(m.Rate)
	case RepeatRateMsg:
		e.repeater.SetRate(m.NoteValue, m.Swing)
	default:
		// ignore unknown messages
	}
}

// rebuild is the hot rebuild path: called when the loop length changes, it
// swaps in a resized pattern and, if the transport was playing, restarts the
// tick source from step zero. Content-only edits never come
// through here; the scheduler reads those fresh on the next tick.
func (e *Engine) rebuild(steps int) {
	if steps <= 0 || steps%komppi.StepsPerBar != 0 || steps > komppi.MaxSteps {
		e.logger.Warn("rejected loop length", zap.Int("steps", steps))
		return
	}
	old := e.store.Current()
	next := old.Copy()
	next.StepsPerTrack = steps
	for i := range next.Tracks {
		next.Tracks[i] = next.Tracks[i].Resize(steps)
	}
	e.swapRebuilding(next)
}

func (e *Engine) swapRebuilding(next komppi.Pattern) {
	wasPlaying := e.clock.Running()
	e.stopTransport()
	e.discardTimers() // the old tick source is gone for good
	e.store.Swap(next)
	if wasPlaying {
		e.clock.Start()
	}
}

func (e *Engine) finishRecording() {
	loop := e.capture.Stop()
	if loop != e.store.Current().StepsPerTrack {
		e.rebuild(loop)
		// free-capture notes past the old loop length were rejected by the
		// track bounds check; now that the track is resized, write them in
		e.store.Update(func(p *komppi.Pattern) {
			if e.capture.trackIndex >= len(p.Tracks) {
				return
			}
			t := &p.Tracks[e.capture.trackIndex]
			for _, ev := range e.capture.Captured() {
				if ev.Step >= len(t.Steps) {
					continue
				}
				t.SetStep(ev.Step, komppi.Step{Active: true, Note: ev.Note, Length: ev.Length, Velocity: ev.Velocity})
				t.Velocities[ev.Step] = ev.Velocity
			}
		})
	}
}

// stopTransport stops the clock and releases everything: scheduled voice-off
// events fire immediately and the performance paths are silenced, so no note
// can be left stuck.
func (e *Engine) stopTransport() {
	e.clock.Stop()
	e.sched.ReleaseAll(e.clock.NowSeconds())
	e.input.ReleaseAll()
}

// syncTimers arms and cancels the three timers from current state. Timers are
// fully cancelled (stopped and drained), never merely flagged, so a
// replacement timer can never overlap its predecessor.
func (e *Engine) syncTimers() {
	if e.clock.Running() {
		if e.stepTimer == nil {
			e.stepTimer = time.NewTimer(e.clock.StepDuration())
		}
	} else if e.stepTimer != nil {
		stopTimer(e.stepTimer)
		e.stepTimer = nil
	}
	if e.arp.Active() {
		if e.arpTimer == nil {
			e.arpTimer = time.NewTimer(e.arp.Interval())
		}
	} else if e.arpTimer != nil {
		stopTimer(e.arpTimer)
		e.arpTimer = nil
	}
	if e.repeater.Active() {
		if e.repTimer == nil {
			e.repTimer = time.NewTimer(e.repeater.Interval())
		}
	} else if e.repTimer != nil {
		stopTimer(e.repTimer)
		e.repTimer = nil
	}
}

func (e *Engine) discardTimers() {
	stopTimer(e.stepTimer)
	stopTimer(e.arpTimer)
	stopTimer(e.repTimer)
	e.stepTimer, e.arpTimer, e.repTimer = nil, nil, nil
}

// stopTimer fully cancels a timer, draining the channel if it already fired.
func stopTimer(t *time.Timer) {
	if t == nil {
		return
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func (e *Engine) publishPosition(step int) {
	TrySend(e.broker.ToModel, MsgToModel{
		HasPosition: true,
		Playing:     e.clock.Running(),
		Step:        step,
	})
}
