package sequencer

import (
	"testing"
	"time"

	"github.com/hkarvila/komppi"
)

func newTestArp(t *testing.T) (*Arpeggiator, *bankLog, *Clock) {
	t.Helper()
	bank, log := newRecorderBank("lead")
	clock := NewClock(120, nil)
	clock.now = newFakeTime().now
	return NewArpeggiator(clock, bank, "lead", nil), log, clock
}

func triggeredNotes(log *bankLog) []komppi.Pitch {
	var notes []komppi.Pitch
	for _, tr := range log.triggers {
		notes = append(notes, tr.params.(komppi.NoteParams).Note)
	}
	return notes
}

func equalPitches(a, b []komppi.Pitch) bool {
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

func TestArpDownSequence(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.SetMode(ArpDown)
	// held in performance order; the cycle walks pitch order regardless
	a.Hold("E4", 1)
	a.Hold("C4", 1)
	a.Hold("G4", 1)
	for i := 0; i < 6; i++ {
		a.Tick()
	}
	want := []komppi.Pitch{"G4", "E4", "C4", "G4", "E4", "C4"}
	if got := triggeredNotes(log); !equalPitches(got, want) {
		t.Errorf("down mode played %v, want %v", got, want)
	}
}

func TestArpUpSequence(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("G4", 1)
	a.Hold("C4", 1)
	a.Hold("E4", 1)
	for i := 0; i < 4; i++ {
		a.Tick()
	}
	want := []komppi.Pitch{"C4", "E4", "G4", "C4"}
	if got := triggeredNotes(log); !equalPitches(got, want) {
		t.Errorf("up mode played %v, want %v", got, want)
	}
}

func TestArpUpDownBounce(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.SetMode(ArpUpDown)
	a.Hold("C4", 1)
	a.Hold("E4", 1)
	a.Hold("G4", 1)
	for i := 0; i < 7; i++ {
		a.Tick()
	}
	// the turnaround notes are not repeated
	want := []komppi.Pitch{"C4", "E4", "G4", "E4", "C4", "E4", "G4"}
	if got := triggeredNotes(log); !equalPitches(got, want) {
		t.Errorf("updown mode played %v, want %v", got, want)
	}
}

func TestArpHeldSetChangeRestartsCycle(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("C4", 1)
	a.Hold("E4", 1)
	a.Tick()
	a.Tick() // C4, E4
	a.Hold("D4", 1)
	a.Tick()
	got := triggeredNotes(log)
	if got[2] != "C4" {
		t.Errorf("cycle did not restart on held-set change: third note %v", got[2])
	}
}

func TestArpReleaseThenTriggerPerTick(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("C4", 1)
	a.Hold("E4", 1)
	a.Tick()
	if len(log.releases) != 0 {
		t.Fatalf("first tick released something: %+v", log.releases)
	}
	a.Tick()
	if len(log.releases) != 1 {
		t.Fatalf("second tick did not release the first note: %+v", log.releases)
	}
	first := log.triggers[0].params.(komppi.NoteParams)
	if log.releases[0].noteID != first.NoteID {
		t.Errorf("release id %d does not pair with trigger id %d", log.releases[0].noteID, first.NoteID)
	}
}

func TestArpReleaseLastNoteSilences(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("C4", 1)
	a.Tick()
	a.Release("C4")
	if len(log.releases) != 1 {
		t.Errorf("releasing the last held note left it sounding: %+v", log.releases)
	}
	if a.Active() {
		t.Error("arp still active with no held notes")
	}
}

func TestArpDisableSoundsHeldNotes(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("C4", 1)
	a.Hold("E4", 1)
	a.Tick()
	log.triggers = nil
	sounded := a.SetEnabled(false)
	if len(sounded) != 2 {
		t.Fatalf("disable sounded %v, want both held notes", sounded)
	}
	if len(log.triggers) != 2 {
		t.Errorf("disable triggered %d notes, want 2", len(log.triggers))
	}
	if len(log.releases) != 1 {
		t.Errorf("disable did not release the arpeggiated note first")
	}
}

func TestArpDisableMonoSoundsMostRecent(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetMono(true)
	a.SetEnabled(true)
	a.Hold("G4", 1)
	a.Hold("C4", 1) // most recent, though lowest in pitch
	log.triggers = nil
	sounded := a.SetEnabled(false)
	if len(sounded) != 1 || sounded[0] != "C4" {
		t.Errorf("mono disable sounded %v, want just C4", sounded)
	}
}

func TestArpIntervalMapping(t *testing.T) {
	a, _, _ := newTestArp(t)
	a.SetRate(1)
	if got := a.Interval(); got != arpMinInterval {
		t.Errorf("rate 1 interval = %v, want %v", got, arpMinInterval)
	}
	a.SetRate(0)
	if got := a.Interval(); got != arpMaxInterval {
		t.Errorf("rate 0 interval = %v, want %v", got, arpMaxInterval)
	}
	a.SetRate(0.5)
	mid := a.Interval()
	if mid <= arpMinInterval || mid >= 225*time.Millisecond {
		t.Errorf("rate 0.5 interval = %v, want the nonlinear map below the midpoint", mid)
	}
}

func TestArpClear(t *testing.T) {
	a, log, _ := newTestArp(t)
	a.SetEnabled(true)
	a.Hold("C4", 1)
	a.Tick()
	a.Clear()
	if len(log.releases) != 1 {
		t.Error("Clear left the sounding note unreleased")
	}
	if a.Active() || len(a.Held()) != 0 {
		t.Error("Clear left held notes behind")
	}
}
