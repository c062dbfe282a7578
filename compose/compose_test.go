package compose

import (
	"math/rand"
	"testing"

	"github.com/hkarvila/komppi"
)

var cMajor = []string{
	"C3", "D3", "E3", "F3", "G3", "A3", "B3",
	"C4", "D4", "E4", "F4", "G4", "A4", "B4",
	"C5", "D5", "E5", "F5", "G5", "A5", "B5",
}

func testParams(mode Mode) Params {
	return Params{
		Mode:       mode,
		Contour:    ContourArch,
		Energy:     0.5,
		Complexity: 0.5,
		Tension:    0.3,
		Rand:       rand.New(rand.NewSource(42)),
	}
}

func TestGenerateBufferSize(t *testing.T) {
	for _, bars := range []int{1, 4, 16, 0, 99} {
		steps := Generate(cMajor, bars, testParams(ModeMelody))
		if len(steps) != komppi.MaxSteps {
			t.Fatalf("bars %d: buffer length %d, want %d", bars, len(steps), komppi.MaxSteps)
		}
	}
}

func TestGenerateFlatZeroComplexityStaysOnOneNote(t *testing.T) {
	p := testParams(ModeMelody)
	p.Contour = ContourFlat
	p.Complexity = 0
	p.Energy = 0
	steps := Generate(cMajor, 4, p)
	var note komppi.Pitch
	active := 0
	for _, s := range steps {
		if !s.Active {
			continue
		}
		active++
		if note == "" {
			note = s.Note
		} else if s.Note != note {
			t.Fatalf("flat contour with zero complexity wandered: %q and %q", note, s.Note)
		}
	}
	if active == 0 {
		t.Fatal("nothing generated")
	}
	if m, err := note.MIDI(); err != nil || m%12 != 0 {
		t.Errorf("resting note %q is not a C (the tonic)", note)
	}
}

func TestGenerateTooFewNotesLeavesBufferEmpty(t *testing.T) {
	for _, scale := range [][]string{nil, {}, {"C4"}, {"C4", "E4", "G4", "B4"}} {
		for _, mode := range []Mode{ModeMelody, ModeChords, ModeBoth} {
			steps := Generate(scale, 2, testParams(mode))
			for i, s := range steps {
				if s.Active {
					t.Fatalf("scale %v mode %d wrote step %d", scale, mode, i)
				}
			}
		}
	}
}

func TestGenerateStaysWithinBars(t *testing.T) {
	steps := Generate(cMajor, 2, testParams(ModeMelody))
	for i := 2 * komppi.StepsPerBar; i < len(steps); i++ {
		if steps[i].Active {
			t.Fatalf("step %d active beyond the requested 2 bars", i)
		}
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	p1 := testParams(ModeBoth)
	p2 := testParams(ModeBoth)
	a := Generate(cMajor, 4, p1)
	b := Generate(cMajor, 4, p2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at step %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerateVelocitiesInRange(t *testing.T) {
	for _, energy := range []float64{0, 0.5, 1} {
		p := testParams(ModeBoth)
		p.Energy = energy
		steps := Generate(cMajor, 4, p)
		for i, s := range steps {
			if !s.Active {
				continue
			}
			if s.Velocity <= 0 || s.Velocity > 1 {
				t.Fatalf("energy %v: step %d velocity %v outside (0,1]", energy, i, s.Velocity)
			}
			if s.Length < 1 {
				t.Fatalf("step %d has length %d", i, s.Length)
			}
		}
	}
}

func TestGenerateChordsUseLowRegister(t *testing.T) {
	steps := Generate(cMajor, 4, testParams(ModeChords))
	melodyFloor, _ := komppi.Pitch("C5").MIDI()
	active := 0
	for i, s := range steps {
		if !s.Active {
			continue
		}
		active++
		m, err := s.Note.MIDI()
		if err != nil {
			t.Fatalf("step %d has unparsable note %q", i, s.Note)
		}
		if m >= melodyFloor {
			t.Errorf("chord note %q at step %d sits in the melody register", s.Note, i)
		}
	}
	if active == 0 {
		t.Fatal("chord mode generated nothing")
	}
}

func TestGenerateBothLayersWithoutCollisions(t *testing.T) {
	steps := Generate(cMajor, 4, testParams(ModeBoth))
	active := 0
	for _, s := range steps {
		if s.Active {
			active++
		}
	}
	if active == 0 {
		t.Fatal("both mode generated nothing")
	}
}
