package sequencer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// fakeTime is a controllable monotonic clock for tests.
type fakeTime struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{t: time.Unix(0, 0)}
}

func (f *fakeTime) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeTime) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestClockStopResetsPosition(t *testing.T) {
	tests := []struct {
		bpm   float64
		ticks int
	}{
		{60, 0},
		{60, 1},
		{120, 7},
		{174, 16},
		{200, 33},
	}
	for _, test := range tests {
		ft := newFakeTime()
		c := NewClock(test.bpm, nil)
		c.now = ft.now
		c.Start()
		for i := 0; i < test.ticks; i++ {
			c.Tick()
		}
		if got := c.Step(); got != test.ticks {
			t.Errorf("bpm %v: Step() = %d after %d ticks", test.bpm, got, test.ticks)
		}
		c.Stop()
		if got := c.Pos(); got != 0 {
			t.Errorf("bpm %v: Pos() = %v after Stop, want 0", test.bpm, got)
		}
		if got := c.Step(); got != 0 {
			t.Errorf("bpm %v: Step() = %d after Stop, want 0", test.bpm, got)
		}
		if c.Running() {
			t.Errorf("bpm %v: still running after Stop", test.bpm)
		}
	}
}

func TestClockStopNotifiesListenersNotHandlers(t *testing.T) {
	c := NewClock(120, nil)
	var handlerSteps, listenerSteps []int
	c.AddHandler(stepFunc(func(step int) { handlerSteps = append(handlerSteps, step) }))
	c.AddListener(func(step int) { listenerSteps = append(listenerSteps, step) })
	c.Start()
	c.Tick()
	c.Stop()
	wantHandlers := []int{0, 1}
	wantListeners := []int{0, 1, 0}
	if !equalInts(handlerSteps, wantHandlers) {
		t.Errorf("handler steps = %v, want %v", handlerSteps, wantHandlers)
	}
	if !equalInts(listenerSteps, wantListeners) {
		t.Errorf("listener steps = %v, want %v", listenerSteps, wantListeners)
	}
}

func TestClockDoubleStart(t *testing.T) {
	c := NewClock(120, nil)
	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	c.SetWarmup(func() error {
		entered <- struct{}{}
		<-release
		return nil
	})
	var mu sync.Mutex
	var zeroFires int
	c.AddListener(func(step int) {
		if step == 0 {
			mu.Lock()
			zeroFires++
			mu.Unlock()
		}
	})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.Start() }()
	<-entered // first caller is inside the warm-up
	go func() { defer wg.Done(); c.Start() }()
	close(release)
	wg.Wait()
	if !c.Running() {
		t.Fatal("clock not running after Start")
	}
	mu.Lock()
	defer mu.Unlock()
	if zeroFires != 1 {
		t.Errorf("step zero fired %d times, want exactly 1", zeroFires)
	}
	select {
	case <-entered:
		t.Error("warm-up ran twice")
	default:
	}
}

func TestClockWarmupFailureAbortsStart(t *testing.T) {
	c := NewClock(120, nil)
	c.SetWarmup(func() error { return errBoom })
	c.Start()
	if c.Running() {
		t.Error("clock running despite failed warm-up")
	}
}

func TestClockPauseResume(t *testing.T) {
	ft := newFakeTime()
	c := NewClock(120, nil) // 125 ms per step
	c.now = ft.now
	var zeroFires int
	c.AddListener(func(step int) {
		if step == 0 {
			zeroFires++
		}
	})
	c.Start()
	for i := 0; i < 4; i++ {
		c.Tick()
	}
	ft.advance(62500 * time.Microsecond) // half a step
	c.Pause()
	if got := c.Pos(); got != 4.5 {
		t.Errorf("paused Pos() = %v, want 4.5", got)
	}
	ft.advance(time.Hour)
	if got := c.Pos(); got != 4.5 {
		t.Errorf("Pos() drifted to %v while paused", got)
	}
	c.Start() // resume
	if zeroFires != 1 {
		t.Errorf("resume fired step zero; %d zero notifications total", zeroFires)
	}
	if got := c.Step(); got != 4 {
		t.Errorf("resume reset the step counter to %d", got)
	}
}

func TestClockTickWhenNotRunning(t *testing.T) {
	c := NewClock(120, nil)
	if got := c.Tick(); got != -1 {
		t.Errorf("Tick() on a stopped clock = %d, want -1", got)
	}
}

func TestClockPanickingHandlerDoesNotStarveListeners(t *testing.T) {
	c := NewClock(120, nil)
	c.AddHandler(stepFunc(func(step int) { panic("boom") }))
	var listenerCalls int
	c.AddListener(func(step int) { listenerCalls++ })
	c.Start()
	c.Tick()
	if listenerCalls != 2 {
		t.Errorf("listener called %d times, want 2", listenerCalls)
	}
}

func TestClockStepDuration(t *testing.T) {
	tests := []struct {
		bpm  float64
		want time.Duration
	}{
		{60, 250 * time.Millisecond},
		{120, 125 * time.Millisecond},
		{240, 62500 * time.Microsecond},
	}
	for _, test := range tests {
		c := NewClock(test.bpm, nil)
		if got := c.StepDuration(); got != test.want {
			t.Errorf("StepDuration(bpm=%v) = %v, want %v", test.bpm, got, test.want)
		}
	}
}

type stepFunc func(step int)

func (f stepFunc) OnStep(step int) { f(step) }

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
