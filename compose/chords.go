package compose

import (
	"math/rand"

	"github.com/hkarvila/komppi"
)

// Articulation names the playing style of one generated chord: how its tones
// are staggered in time and how long they sustain.
type Articulation int

const (
	ArtBlock Articulation = iota
	ArtStrum
	ArtArpeggio
	ArtBroken
	ArtPulse
	ArtRolled
	ArtStab
	ArtPad
)

func (a Articulation) String() string {
	switch a {
	case ArtBlock:
		return "block"
	case ArtStrum:
		return "strum"
	case ArtArpeggio:
		return "arpeggio"
	case ArtBroken:
		return "broken"
	case ArtPulse:
		return "pulse"
	case ArtRolled:
		return "rolled"
	case ArtStab:
		return "stab"
	case ArtPad:
		return "pad"
	}
	return "unknown"
}

// progression is a hand-authored chord sequence, one chord per bar, cycled
// over the generated bars. Roots are 0-based heptatonic degrees; seventh adds
// the seventh chord tone to every voicing.
type progression struct {
	roots         []int
	seventh       bool
	articulations []Articulation
}

// Progressions bucketed by harmonic tension. Low tension stays on the
// primary triads, mid borrows the relative minor and the supertonic, high
// leans on sevenths and the unresolved dominant.
var (
	lowTension = []progression{
		{roots: []int{0, 3, 5, 4}, articulations: []Articulation{ArtPad, ArtBlock, ArtRolled}},
		{roots: []int{0, 5, 3, 4}, articulations: []Articulation{ArtPad, ArtArpeggio}},
	}
	midTension = []progression{
		{roots: []int{5, 3, 0, 4}, articulations: []Articulation{ArtBroken, ArtArpeggio, ArtStrum}},
		{roots: []int{1, 4, 0, 5}, articulations: []Articulation{ArtStrum, ArtPulse, ArtBroken}},
	}
	highTension = []progression{
		{roots: []int{5, 4, 1, 4}, seventh: true, articulations: []Articulation{ArtStab, ArtPulse}},
		{roots: []int{1, 4, 5, 4}, seventh: true, articulations: []Articulation{ArtStab, ArtStrum, ArtPulse}},
	}
)

func pickProgression(r *rand.Rand, tension float64) progression {
	bucket := lowTension
	switch {
	case tension >= 0.66:
		bucket = highTension
	case tension >= 0.33:
		bucket = midTension
	}
	return bucket[r.Intn(len(bucket))]
}

// placeChords writes one chord per bar into the buffer and returns a mask of
// the steps it claimed, so a layered melody can avoid them. A register with
// too few usable notes places nothing and returns a nil mask.
func placeChords(steps []komppi.Step, register komppi.Scale, bars int, p Params) []bool {
	if len(register) < minRegisterNotes {
		return nil
	}
	prog := pickProgression(p.Rand, p.Tension)
	art := prog.articulations[p.Rand.Intn(len(prog.articulations))]
	mask := make([]bool, komppi.MaxSteps)

	for bar := 0; bar < bars && bar < komppi.MaxBars; bar++ {
		root := prog.roots[bar%len(prog.roots)]
		tones := voicing(register, root, prog.seventh)
		if len(tones) < 3 {
			continue
		}
		barStart := bar * komppi.StepsPerBar
		for _, pl := range articulate(art, tones) {
			i := clampStep(barStart + pl.offset)
			if steps[i].Active {
				continue
			}
			steps[i] = komppi.Step{
				Active:   true,
				Note:     register[pl.tone],
				Length:   pl.length,
				Velocity: pl.velocity,
			}
			mask[i] = true
		}
	}
	return mask
}

// voicing resolves a chord root degree to scale indices of the triad (plus
// the seventh when asked). Tones that fall off the register are dropped.
func voicing(register komppi.Scale, rootDegree int, seventh bool) []int {
	offsets := []int{0, 2, 4}
	if seventh {
		offsets = append(offsets, 6)
	}
	var tones []int
	for _, o := range offsets {
		idx := rootDegree + o
		if idx < len(register) {
			tones = append(tones, idx)
		}
	}
	return tones
}

// placement is one note of an articulated chord: which chord tone, at what
// step offset within the bar, for how long and how loud.
type placement struct {
	tone     int
	offset   int
	length   int
	velocity float64
}

// articulate expands chord tones into placements. The grid holds one note
// per step, so simultaneous styles stagger their tones across adjacent steps
// and let the sustains overlap instead.
func articulate(a Articulation, tones []int) []placement {
	var out []placement
	switch a {
	case ArtBlock:
		for i, t := range tones {
			out = append(out, placement{tone: t, offset: i, length: komppi.StepsPerBar - i, velocity: 0.7})
		}
	case ArtStrum:
		for i, t := range tones {
			out = append(out, placement{tone: t, offset: i, length: 3, velocity: 0.65 + 0.05*float64(i)})
		}
	case ArtArpeggio:
		for beat := 0; beat < 4; beat++ {
			out = append(out, placement{tone: tones[beat%len(tones)], offset: beat * 4, length: 3, velocity: 0.7})
		}
	case ArtBroken:
		order := []int{0, len(tones) - 1, 1, 0}
		for beat, oi := range order {
			out = append(out, placement{tone: tones[oi], offset: beat * 4, length: 4, velocity: 0.7})
		}
	case ArtPulse:
		for beat := 0; beat < 4; beat++ {
			vel := 0.7
			if beat == 0 {
				vel = 0.85
			}
			out = append(out, placement{tone: tones[0], offset: beat * 4, length: 1, velocity: vel})
		}
	case ArtRolled:
		for i, t := range tones {
			out = append(out, placement{tone: t, offset: i * 2, length: komppi.StepsPerBar - i*2, velocity: 0.6})
		}
	case ArtStab:
		for i, t := range tones {
			out = append(out, placement{tone: t, offset: i, length: 1, velocity: 0.9})
		}
	case ArtPad:
		for i, t := range tones {
			out = append(out, placement{tone: t, offset: i, length: komppi.StepsPerBar, velocity: 0.55})
		}
	}
	return out
}
