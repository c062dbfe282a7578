package sequencer

import (
	"testing"
	"time"

	"github.com/hkarvila/komppi"
)

func newTestRepeater(t *testing.T) (*NoteRepeater, *bankLog) {
	t.Helper()
	p := komppi.New("rep", 120, 16, 1)
	p.Tracks[0].VoiceID = "snare"
	bank, log := newRecorderBank("snare")
	clock := NewClock(p.BPM, nil)
	clock.now = newFakeTime().now
	return NewNoteRepeater(clock, NewPatternStore(p), bank, nil), log
}

func TestRepeaterIntervalTable(t *testing.T) {
	tests := []struct {
		noteValue float64
		swing     Swing
		want      time.Duration
	}{
		{1.0 / 16, SwingNormal, 125 * time.Millisecond},
		{1.0 / 16, SwingDotted, 187500 * time.Microsecond},
		{1.0 / 8, SwingNormal, 250 * time.Millisecond},
		{1.0 / 32, SwingNormal, 62500 * time.Microsecond},
	}
	for _, test := range tests {
		r, _ := newTestRepeater(t)
		r.SetRate(test.noteValue, test.swing)
		if got := r.Interval(); got != test.want {
			t.Errorf("Interval(%v, swing %d) = %v, want %v", test.noteValue, test.swing, got, test.want)
		}
	}
}

func TestRepeaterTripletInterval(t *testing.T) {
	r, _ := newTestRepeater(t)
	r.SetRate(1.0/16, SwingTriplet)
	got := r.Interval()
	tripletStep := 0.125 * 2 / 3.0
	want := time.Duration(tripletStep * float64(time.Second))
	if diff := got - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("triplet interval = %v, want about %v", got, want)
	}
}

func TestRepeaterTickOnlyWhileHeld(t *testing.T) {
	r, log := newTestRepeater(t)
	r.Tick()
	if len(log.triggers) != 0 {
		t.Fatal("idle repeater triggered")
	}
	r.PadDown(0, 0.9)
	if !r.Active() {
		t.Fatal("not active after pad down")
	}
	r.Tick()
	r.Tick()
	if len(log.triggers) != 2 {
		t.Fatalf("held repeater fired %d times over two ticks", len(log.triggers))
	}
	if log.triggers[0].velocity != 0.9 {
		t.Errorf("repeat velocity = %v, want the pad velocity 0.9", log.triggers[0].velocity)
	}
	r.PadUp()
	if r.Active() {
		t.Error("active after pad up")
	}
	r.Tick()
	if len(log.triggers) != 2 {
		t.Error("repeater fired after the pad was lifted")
	}
}

func TestRepeaterIgnoresBadPad(t *testing.T) {
	r, log := newTestRepeater(t)
	r.PadDown(5, 1) // out of range track
	r.Tick()
	if len(log.triggers) != 0 {
		t.Errorf("out-of-range pad triggered: %+v", log.triggers)
	}
}
