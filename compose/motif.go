package compose

import (
	"math"
	"math/rand"

	"github.com/hkarvila/komppi"
)

// Motif is the melodic cell the generator repeats and varies: a short run of
// relative scale-degree intervals and a rhythm mask saying which slots of the
// cell actually sound.
type Motif struct {
	Intervals []int
	Rhythm    []bool
}

// beatWeights is the metric strength of each 16th within a bar. The downbeat
// is strongest, beat 3 next, beats 2 and 4 after that, offbeats weakest.
var beatWeights = [komppi.StepsPerBar]float64{
	1.0, 0.1, 0.3, 0.1,
	0.6, 0.1, 0.3, 0.1,
	0.8, 0.1, 0.3, 0.1,
	0.6, 0.1, 0.4, 0.2,
}

// strongBeatWeight is the threshold above which a slot counts as a strong
// beat and gets pulled toward a chord tone.
const strongBeatWeight = 0.6

// NewMotif draws a motif from the random source. Complexity 0 yields a motif
// of zero intervals (every note stays put); higher complexity widens both the
// interval spread and the rhythmic density.
func NewMotif(r *rand.Rand, complexity, energy float64) Motif {
	n := 2 + int(math.Round(complexity*3))
	spread := int(math.Round(complexity * 3))
	intervals := make([]int, n)
	for i := range intervals {
		if spread > 0 {
			intervals[i] = r.Intn(2*spread+1) - spread
		}
	}
	density := 0.3 + 0.5*complexity + 0.2*energy
	rhythm := make([]bool, 8)
	rhythm[0] = true
	for i := 1; i < len(rhythm); i++ {
		rhythm[i] = r.Float64() < density
	}
	return Motif{Intervals: intervals, Rhythm: rhythm}
}

// contourValue maps a phrase position in [0,1) to a target pitch height in
// [0,1]. ContourRandom is deterministic per position so repeated phrases of
// one generation agree with each other.
func contourValue(c Contour, x float64) float64 {
	switch c {
	case ContourArch:
		return math.Sin(math.Pi * x)
	case ContourAscending:
		return x
	case ContourDescending:
		return 1 - x
	case ContourWave:
		return 0.5 + 0.5*math.Sin(2*math.Pi*x)
	case ContourRandom:
		v := math.Sin(x*12.9898) * 43758.5453
		return v - math.Floor(v)
	}
	return 0.5
}

// tendencyResolutions maps an unstable scale degree (0-based within the
// heptatonic octave) to where it wants to resolve and how strongly.
var tendencyResolutions = map[int]struct {
	move int
	pull float64
}{
	6: {move: +1, pull: 0.9}, // leading tone up to the tonic
	3: {move: -1, pull: 0.7}, // fourth down to the third
	5: {move: -1, pull: 0.6}, // sixth down to the fifth
	1: {move: -1, pull: 0.5}, // second down to the tonic
}

// placeMelody walks the motif over the buffer, blending the raw walk toward
// the contour target, snapping strong beats to chord tones and resolving
// tendency tones over the last tenth of each phrase. A nil or too small
// register leaves the buffer untouched. The harmony argument, when non-nil,
// marks steps already claimed by chord notes; the melody skips those.
func placeMelody(steps []komppi.Step, register komppi.Scale, bars int, p Params, harmony []bool) {
	if len(register) < minRegisterNotes {
		return
	}
	motif := NewMotif(p.Rand, p.Complexity, p.Energy)
	phraseSteps := p.PhraseBars * komppi.StepsPerBar
	total := bars * komppi.StepsPerBar

	// The walk starts on the tonic nearest the register center, so a flat
	// contour with a zero-interval motif holds one note for the whole buffer.
	center := (len(register) - 1) / 2
	start := nearestDegree(center, len(register), 0)
	degree := start
	motifPos := 0
	rhythmPos := 0

	for step := 0; step < total && step < komppi.MaxSteps; step++ {
		inBar := step % komppi.StepsPerBar
		phrasePos := float64(step%phraseSteps) / float64(phraseSteps)
		sounds := motif.Rhythm[rhythmPos%len(motif.Rhythm)]
		rhythmPos++
		if !sounds {
			continue
		}
		if harmony != nil && harmony[clampStep(step)] {
			continue
		}

		degree += motif.Intervals[motifPos%len(motif.Intervals)]
		motifPos++

		// Blend toward the contour height. The pull is gentle so the motif
		// shape survives; only sustained drift gets corrected.
		target := float64(start) + (contourValue(p.Contour, phrasePos)-0.5)*float64(len(register)-1)
		degree += int(math.Round((target - float64(degree)) * 0.4))
		if degree < 0 {
			degree = 0
		} else if degree > len(register)-1 {
			degree = len(register) - 1
		}

		if beatWeights[inBar] >= strongBeatWeight {
			degree = nearestChordTone(degree, len(register))
		}

		if phrasePos >= 0.9 {
			w := (phrasePos - 0.9) / 0.1
			if res, ok := tendencyResolutions[degree%7]; ok && res.pull*w >= 0.5 {
				next := degree + res.move
				if next >= 0 && next < len(register) {
					degree = next
				}
			}
		}

		length := 1
		if !motif.Rhythm[rhythmPos%len(motif.Rhythm)] && inBar < komppi.StepsPerBar-1 {
			length = 2
		}
		steps[clampStep(step)] = komppi.Step{
			Active:   true,
			Note:     register[degree],
			Length:   length,
			Velocity: 0.5 + 0.5*beatWeights[inBar],
		}
	}
}

// nearestDegree finds the scale index closest to around whose heptatonic
// degree equals want.
func nearestDegree(around, size, want int) int {
	best := around
	bestDist := math.MaxInt32
	for i := 0; i < size; i++ {
		if i%7 != want {
			continue
		}
		d := i - around
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// nearestChordTone pulls a scale index to the closest tonic triad member
// (degrees 1, 3 and 5 of the heptatonic octave).
func nearestChordTone(idx, size int) int {
	best := idx
	bestDist := math.MaxInt32
	for i := idx - 3; i <= idx+3; i++ {
		if i < 0 || i >= size {
			continue
		}
		switch i % 7 {
		case 0, 2, 4:
		default:
			continue
		}
		d := i - idx
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
