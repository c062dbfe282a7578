package komppi

import "testing"

func TestPitchMIDI(t *testing.T) {
	tests := []struct {
		pitch   Pitch
		want    int
		wantErr bool
	}{
		{"C4", 60, false},
		{"A4", 69, false},
		{"C-1", 0, false},
		{"G9", 127, false},
		{"F#3", 54, false},
		{"Gb3", 54, false},
		{"Eb2", 39, false},
		{"", 0, true},
		{"H4", 0, true},
		{"C", 0, true},
		{"Cx4", 0, true},
	}
	for _, test := range tests {
		got, err := test.pitch.MIDI()
		if (err != nil) != test.wantErr {
			t.Errorf("%q.MIDI() error = %v, wantErr %v", test.pitch, err, test.wantErr)
			continue
		}
		if err == nil && got != test.want {
			t.Errorf("%q.MIDI() = %d, want %d", test.pitch, got, test.want)
		}
	}
}

func TestPitchFromMIDIRoundTrip(t *testing.T) {
	for n := 0; n <= 127; n++ {
		p := PitchFromMIDI(n)
		got, err := p.MIDI()
		if err != nil {
			t.Fatalf("PitchFromMIDI(%d) = %q, which does not parse: %v", n, p, err)
		}
		if got != n {
			t.Errorf("round trip %d -> %q -> %d", n, p, got)
		}
	}
}

func TestTranspose(t *testing.T) {
	if got := Pitch("C4").Transpose(12); got != "C5" {
		t.Errorf("C4 + octave = %q", got)
	}
	if got := Pitch("C4").Transpose(-1); got != "B3" {
		t.Errorf("C4 - semitone = %q", got)
	}
	if got := Pitch("junk").Transpose(5); got != "junk" {
		t.Errorf("unparsable pitch should transpose to itself, got %q", got)
	}
}

func TestScales(t *testing.T) {
	major := MajorScale("C4", 1)
	wantMajor := Scale{"C4", "D4", "E4", "F4", "G4", "A4", "B4"}
	if len(major) != len(wantMajor) {
		t.Fatalf("major scale has %d notes", len(major))
	}
	for i := range major {
		if major[i] != wantMajor[i] {
			t.Errorf("major[%d] = %q, want %q", i, major[i], wantMajor[i])
		}
	}

	minor := MinorScale("A3", 2)
	if len(minor) != 14 {
		t.Fatalf("two octave minor scale has %d notes", len(minor))
	}
	if minor[2] != "C4" {
		t.Errorf("A minor third note = %q, want C4", minor[2])
	}
	if minor[7] != "A4" {
		t.Errorf("A minor octave = %q, want A4", minor[7])
	}

	if s := MajorScale("junk", 1); s != nil {
		t.Errorf("scale from unparsable root should be nil, got %v", s)
	}
}
