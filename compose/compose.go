// Package compose is the generative composition engine: pure functions that
// synthesize step content from music-theory parameters. It has no dependency
// on the clock or the scheduler; the only state across a call is the caller's
// pseudo-random source.
package compose

import (
	"math/rand"

	"github.com/hkarvila/komppi"
)

type (
	// Mode selects what Generate writes: a melody, a chord progression, or
	// chords as harmonic foundation with a melody layered on top.
	Mode int

	// Contour names the target pitch-height curve across a musical phrase.
	Contour int

	// Params are the musical controls of one generation call. All float
	// controls are 0..1. A nil Rand gets a time-seeded source; pass an
	// explicit one for reproducible output.
	Params struct {
		Mode       Mode
		Contour    Contour
		Energy     float64 // drives velocity and rhythmic density
		Complexity float64 // drives motif interval spread and rhythm busyness
		Tension    float64 // selects the chord progression bucket
		PhraseBars int     // phrase length in bars, 2 by default
		Rand       *rand.Rand
	}
)

const (
	ModeMelody Mode = iota
	ModeChords
	ModeBoth
)

const (
	ContourArch Contour = iota
	ContourAscending
	ContourDescending
	ContourWave
	ContourFlat
	ContourRandom
)

// minRegisterNotes is the fewest usable notes a register needs before chord
// or melody placement is attempted in it.
const minRegisterNotes = 5

// Generate synthesizes a step buffer of komppi.MaxSteps slots from the given
// scale. Indices are always clamped into the buffer; a scale with too few
// usable notes in a targeted register leaves that register's placement out
// and returns the buffer otherwise unmodified rather than failing.
func Generate(scaleNotes []string, bars int, p Params) []komppi.Step {
	steps := make([]komppi.Step, komppi.MaxSteps)
	if bars < 1 {
		bars = 1
	} else if bars > komppi.MaxBars {
		bars = komppi.MaxBars
	}
	if p.PhraseBars < 1 {
		p.PhraseBars = 2
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	scale := komppi.ScaleFromStrings(scaleNotes)

	switch p.Mode {
	case ModeMelody:
		placeMelody(steps, melodyRegister(scale), bars, p, nil)
	case ModeChords:
		placeChords(steps, chordRegister(scale), bars, p)
	case ModeBoth:
		harmony := placeChords(steps, chordRegister(scale), bars, p)
		placeMelody(steps, melodyRegister(scale), bars, p, harmony)
	}
	shapeVelocities(steps, p.Energy)
	return steps
}

// melodyRegister is the upper two thirds of the scale.
func melodyRegister(scale komppi.Scale) komppi.Scale {
	if len(scale) < minRegisterNotes {
		return nil
	}
	return scale[len(scale)/3:]
}

// chordRegister is the lower two thirds of the scale.
func chordRegister(scale komppi.Scale) komppi.Scale {
	if len(scale) < minRegisterNotes {
		return nil
	}
	upper := 2 * len(scale) / 3
	if upper < minRegisterNotes {
		upper = len(scale)
	}
	return scale[:upper]
}

func clampStep(i int) int {
	if i < 0 {
		return 0
	}
	if i >= komppi.MaxSteps {
		return komppi.MaxSteps - 1
	}
	return i
}
