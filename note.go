package komppi

import (
	"fmt"
	"strings"
)

// Pitch is a note name in scientific pitch notation, e.g. "C4", "F#3", "Eb2".
// The empty string is a valid "no pitch" for drum steps.
type Pitch string

var noteIndex = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "F": 5,
	"F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDI converts the pitch to its MIDI note number. C4 is 60, following the
// convention most controllers use.
func (p Pitch) MIDI() (int, error) {
	s := string(p)
	if len(s) < 2 {
		return 0, fmt.Errorf("pitch %q too short", s)
	}
	split := 1
	if len(s) > 2 && (s[1] == '#' || s[1] == 'b') {
		split = 2
	}
	idx, ok := noteIndex[s[:split]]
	if !ok {
		return 0, fmt.Errorf("pitch %q has an unknown note name", s)
	}
	octave := 0
	rest := s[split:]
	neg := false
	if strings.HasPrefix(rest, "-") {
		neg = true
		rest = rest[1:]
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("pitch %q has a malformed octave", s)
		}
		octave = octave*10 + int(c-'0')
	}
	if neg {
		octave = -octave
	}
	return (octave+1)*12 + idx, nil
}

// PitchFromMIDI converts a MIDI note number back to a pitch name, using
// sharps for the black keys.
func PitchFromMIDI(note int) Pitch {
	name := sharpNames[((note%12)+12)%12]
	octave := note/12 - 1
	return Pitch(fmt.Sprintf("%s%d", name, octave))
}

// Transpose shifts the pitch by the given number of semitones. An unparsable
// pitch transposes to itself.
func (p Pitch) Transpose(semitones int) Pitch {
	n, err := p.MIDI()
	if err != nil {
		return p
	}
	return PitchFromMIDI(n + semitones)
}

// Scale is an ordered sequence of pitch names, low to high, as the
// composition engine consumes it.
type Scale []Pitch

// ScaleFromStrings is a convenience converter for callers holding plain
// strings, e.g. deserialized generation requests.
func ScaleFromStrings(notes []string) Scale {
	ret := make(Scale, len(notes))
	for i, n := range notes {
		ret[i] = Pitch(n)
	}
	return ret
}

var majorOffsets = [7]int{0, 2, 4, 5, 7, 9, 11}
var minorOffsets = [7]int{0, 2, 3, 5, 7, 8, 10}

// MajorScale builds the major scale over the given number of octaves starting
// from the root pitch.
func MajorScale(root Pitch, octaves int) Scale {
	return buildScale(root, octaves, majorOffsets)
}

// MinorScale builds the natural minor scale over the given number of octaves
// starting from the root pitch.
func MinorScale(root Pitch, octaves int) Scale {
	return buildScale(root, octaves, minorOffsets)
}

func buildScale(root Pitch, octaves int, offsets [7]int) Scale {
	base, err := root.MIDI()
	if err != nil {
		return nil
	}
	var ret Scale
	for o := 0; o < octaves; o++ {
		for _, offset := range offsets {
			ret = append(ret, PitchFromMIDI(base+o*12+offset))
		}
	}
	return ret
}
