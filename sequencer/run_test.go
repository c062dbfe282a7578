package sequencer

import (
	"testing"
	"time"

	"github.com/hkarvila/komppi"
)

func newTestEngine(t *testing.T) (*Engine, *Broker, *bankLog) {
	t.Helper()
	p := komppi.New("engine", 120, 16, 2)
	p.Tracks[0].VoiceID = "kick"
	p.Tracks[1].VoiceID = "lead"
	bank, log := newRecorderBank("kick", "lead", MetronomeVoiceID)
	broker := NewBroker()
	e, err := NewEngine(broker, p, bank, EngineOptions{CaptureTrack: 1})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, broker, log
}

func TestEngineRejectsInvalidPattern(t *testing.T) {
	bank, _ := newRecorderBank()
	if _, err := NewEngine(NewBroker(), komppi.Pattern{}, bank, EngineOptions{}); err == nil {
		t.Error("NewEngine accepted the zero pattern")
	}
}

func TestEngineHotRebuildKeepsPlaying(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.handleMessage(StartMsg{})
	if !e.clock.Running() {
		t.Fatal("not running after start")
	}
	e.handleMessage(LoopLengthMsg{Steps: 32})
	if !e.clock.Running() {
		t.Error("hot rebuild stopped the transport")
	}
	if got := e.clock.Step(); got != 0 {
		t.Errorf("position after rebuild = %d, want 0", got)
	}
	if got := e.store.Current().StepsPerTrack; got != 32 {
		t.Errorf("steps per track after rebuild = %d, want 32", got)
	}
}

func TestEngineRebuildWhileStoppedStaysStopped(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.handleMessage(LoopLengthMsg{Steps: 48})
	if e.clock.Running() {
		t.Error("rebuild started a stopped transport")
	}
	if got := e.store.Current().StepsPerTrack; got != 48 {
		t.Errorf("steps per track = %d, want 48", got)
	}
}

func TestEngineRebuildPreservesContent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.store.Update(func(p *komppi.Pattern) { p.Tracks[0].ToggleStep(3) })
	e.handleMessage(LoopLengthMsg{Steps: 32})
	if !e.store.Current().Tracks[0].Steps[3].Active {
		t.Error("rebuild lost step content")
	}
}

func TestEngineRejectsBadLoopLength(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for _, steps := range []int{0, -16, 7, komppi.MaxSteps + 16} {
		e.handleMessage(LoopLengthMsg{Steps: steps})
		if got := e.store.Current().StepsPerTrack; got != 16 {
			t.Errorf("loop length %d was accepted, pattern now has %d steps", steps, got)
		}
	}
}

func TestEngineSwapPatternValidates(t *testing.T) {
	e, _, _ := newTestEngine(t)
	bad := komppi.New("bad", 0, 16, 1)
	e.handleMessage(SwapPatternMsg{Pattern: bad})
	if e.store.Current().ID == "bad" {
		t.Error("invalid pattern was swapped in")
	}
	good := komppi.New("good", 100, 16, 1)
	e.handleMessage(SwapPatternMsg{Pattern: good})
	if e.store.Current().ID != "good" {
		t.Error("valid pattern was not swapped in")
	}
}

func TestEngineStopReleasesEverything(t *testing.T) {
	e, _, log := newTestEngine(t)
	e.store.Update(func(p *komppi.Pattern) {
		p.Tracks[1].SetStep(0, komppi.Step{Active: true, Note: "C4", Length: 8, Velocity: 1})
	})
	e.handleMessage(StartMsg{}) // step 0 triggers the held note
	e.handleMessage(InputEvent{Kind: EventNoteOn, Note: "E4", Velocity: 1})
	e.handleMessage(StopMsg{})
	if e.clock.Running() {
		t.Fatal("still running after stop")
	}
	// one release for the scheduled note, one for the performed note
	if len(log.releases) != 2 {
		t.Errorf("stop sent %d releases, want 2: %+v", len(log.releases), log.releases)
	}
}

func TestEngineBPMChangeUpdatesPattern(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.handleMessage(BPMMsg{BPM: 174})
	if got := e.clock.BPM(); got != 174 {
		t.Errorf("clock BPM = %v", got)
	}
	if got := e.store.Current().BPM; got != 174 {
		t.Errorf("pattern BPM = %v", got)
	}
}

func TestEngineRecordFinishRebuildsToInferredLoop(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.handleMessage(RecordMsg{Mode: CaptureFree})
	e.handleMessage(InputEvent{Kind: EventNoteOn, Note: "C4", Velocity: 1})
	for i := 0; i < 20; i++ {
		e.clock.Tick()
	}
	e.handleMessage(InputEvent{Kind: EventNoteOn, Note: "E4", Velocity: 0.7})
	e.handleMessage(InputEvent{Kind: EventNoteOff, Note: "C4"})
	e.handleMessage(InputEvent{Kind: EventNoteOff, Note: "E4"})
	e.handleMessage(StopRecordMsg{})
	p := e.store.Current()
	if p.StepsPerTrack != 32 {
		t.Fatalf("pattern not rebuilt to the inferred loop: %d steps", p.StepsPerTrack)
	}
	s := p.Tracks[1].Steps[20]
	if !s.Active || s.Note != "E4" {
		t.Errorf("note beyond the old loop not materialized after rebuild: %+v", s)
	}
	if s.Velocity != 0.7 {
		t.Errorf("materialized velocity = %v, want 0.7", s.Velocity)
	}
}

func TestEngineRunLifecycle(t *testing.T) {
	e, broker, _ := newTestEngine(t)
	go e.Run()
	TrySend(broker.ToEngine, any(StartMsg{}))
	broker.CloseEngine <- struct{}{}
	if _, ok := TimeoutReceive(broker.FinishedEngine, 5*time.Second); ok {
		t.Error("FinishedEngine delivered a value; it should close")
	}
	select {
	case <-broker.FinishedEngine:
	default:
		t.Error("engine did not close FinishedEngine")
	}
}
