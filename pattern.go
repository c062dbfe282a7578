package komppi

import (
	"errors"
	"fmt"
)

type (
	// Pattern is the shared mutable data the whole engine reads and writes: a
	// named, tempo-stamped grid of tracks. All tracks in one Pattern have
	// exactly StepsPerTrack steps; one musical bar is 16 steps, so
	// StepsPerTrack is always a positive multiple of 16. The zero value is not
	// usable; construct through New or unmarshal and Validate.
	Pattern struct {
		ID            string  `yaml:"id" json:"id"`
		Name          string  `yaml:"name" json:"name"`
		BPM           float64 `yaml:"tempoBPM" json:"tempoBPM"`
		StepsPerTrack int     `yaml:"stepsPerTrack" json:"stepsPerTrack"`
		Tracks        []Track `yaml:"tracks" json:"tracks"`
	}

	// Track is one voice lane of a Pattern. Steps and Velocities always have
	// the Pattern's StepsPerTrack length. Mix carries the per-track mixer
	// settings, Params the voice family specific parameter record that is
	// passed opaquely to the Voice on every trigger.
	Track struct {
		ID         string      `yaml:"id" json:"id"`
		VoiceID    string      `yaml:"voiceId" json:"voiceId"`
		Steps      []Step      `yaml:"steps,flow" json:"steps"`
		Velocities []float64   `yaml:"velocities,flow" json:"velocities"`
		Muted      bool        `yaml:"muted,omitempty" json:"muted,omitempty"`
		Solo       bool        `yaml:"solo,omitempty" json:"solo,omitempty"`
		Mix        TrackMix    `yaml:"mix" json:"mix"`
		Params     VoiceParams `yaml:"-" json:"-"`
	}

	// Step is one slot of the sequencer grid. For drum lanes only Active and
	// Velocity matter; the melodic sequencer materializes Note and Length as
	// well. An inactive step keeps its Note and Length so that toggling a step
	// off and back on restores it exactly.
	Step struct {
		Active   bool    `yaml:"active" json:"active"`
		Note     Pitch   `yaml:"note,omitempty" json:"note,omitempty"`
		Length   int     `yaml:"length,omitempty" json:"length,omitempty"`
		Velocity float64 `yaml:"velocity,omitempty" json:"velocity,omitempty"`
	}

	// TrackMix holds the mixer parameters of one track. Volume scales trigger
	// velocities; the rest are passed through to the voice untouched.
	TrackMix struct {
		Volume    float64 `yaml:"volume" json:"volume"`
		Pan       float64 `yaml:"pan" json:"pan"`
		Tone      float64 `yaml:"tone" json:"tone"`
		ReverbMix float64 `yaml:"reverbMix" json:"reverbMix"`
		DelayMix  float64 `yaml:"delayMix" json:"delayMix"`
	}
)

// StepsPerBar is the resolution of the grid: sixteenth notes in 4/4 time.
const StepsPerBar = 16

// MaxBars caps the free-capture recording window and the generated buffers.
const MaxBars = 16

// MaxSteps is the longest loop the engine supports, 16 bars of 16 steps.
const MaxSteps = MaxBars * StepsPerBar

var (
	ErrBadBPM       = errors.New("tempo must be positive")
	ErrBadStepCount = errors.New("steps per track must be a positive multiple of 16")
)

// New creates an empty pattern with the given number of tracks, all steps
// inactive and velocities at full scale.
func New(id string, bpm float64, stepsPerTrack, numTracks int) Pattern {
	p := Pattern{ID: id, BPM: bpm, StepsPerTrack: stepsPerTrack}
	for i := 0; i < numTracks; i++ {
		p.Tracks = append(p.Tracks, NewTrack(fmt.Sprintf("track-%d", i), stepsPerTrack))
	}
	return p
}

// NewTrack creates an empty track sized to stepsPerTrack, with unity volume.
func NewTrack(id string, stepsPerTrack int) Track {
	velocities := make([]float64, stepsPerTrack)
	for i := range velocities {
		velocities[i] = 1
	}
	return Track{
		ID:         id,
		Steps:      make([]Step, stepsPerTrack),
		Velocities: velocities,
		Mix:        TrackMix{Volume: 1},
	}
}

// Validate checks the structural invariants of the pattern. It is meant to be
// called at construction and deserialization boundaries; the playback path
// assumes a valid pattern and never re-checks.
func (p *Pattern) Validate() error {
	if p.BPM <= 0 {
		return ErrBadBPM
	}
	if p.StepsPerTrack <= 0 || p.StepsPerTrack%StepsPerBar != 0 {
		return ErrBadStepCount
	}
	if p.StepsPerTrack > MaxSteps {
		return fmt.Errorf("steps per track %d exceeds the %d step maximum", p.StepsPerTrack, MaxSteps)
	}
	for i, t := range p.Tracks {
		if len(t.Steps) != p.StepsPerTrack {
			return fmt.Errorf("track %d has %d steps, pattern has %d steps per track", i, len(t.Steps), p.StepsPerTrack)
		}
		if len(t.Velocities) != len(t.Steps) {
			return fmt.Errorf("track %d has %d velocities for %d steps", i, len(t.Velocities), len(t.Steps))
		}
		if t.Params != nil {
			if err := t.Params.Validate(); err != nil {
				return fmt.Errorf("track %d params: %w", i, err)
			}
		}
	}
	return nil
}

// Copy makes a deep copy of the pattern. The engine swaps whole Pattern
// objects when the step count changes, so copies must be fully independent.
func (p *Pattern) Copy() Pattern {
	tracks := make([]Track, len(p.Tracks))
	for i, t := range p.Tracks {
		tracks[i] = t.Copy()
	}
	return Pattern{ID: p.ID, Name: p.Name, BPM: p.BPM, StepsPerTrack: p.StepsPerTrack, Tracks: tracks}
}

// Copy makes a deep copy of a track.
func (t *Track) Copy() Track {
	steps := make([]Step, len(t.Steps))
	copy(steps, t.Steps)
	velocities := make([]float64, len(t.Velocities))
	copy(velocities, t.Velocities)
	ret := *t
	ret.Steps = steps
	ret.Velocities = velocities
	return ret
}

// ToggleStep flips the active flag of one step. Note, Length and Velocity are
// left alone so the toggle is idempotent: off-on-off restores the original
// state exactly.
func (t *Track) ToggleStep(index int) {
	if index < 0 || index >= len(t.Steps) {
		return
	}
	t.Steps[index].Active = !t.Steps[index].Active
}

// SetStep writes the whole step at once. Writers must go through this so a
// reader never observes a half-updated {active, note, length} triple.
func (t *Track) SetStep(index int, s Step) {
	if index < 0 || index >= len(t.Steps) {
		return
	}
	t.Steps[index] = s
}

// Resize returns a copy of the track with the given step count, preserving
// existing content up to the shorter of the two lengths.
func (t *Track) Resize(stepsPerTrack int) Track {
	ret := NewTrack(t.ID, stepsPerTrack)
	ret.VoiceID = t.VoiceID
	ret.Muted = t.Muted
	ret.Solo = t.Solo
	ret.Mix = t.Mix
	ret.Params = t.Params
	copy(ret.Steps, t.Steps)
	copy(ret.Velocities, t.Velocities)
	return ret
}

// DryGain returns the gain for the unprocessed signal given the wet mixes.
// When several sends are raised at once, only the largest counts; summing
// them would clip the bus as soon as two effects are up.
func (m TrackMix) DryGain() float64 {
	wet := m.ReverbMix
	if m.DelayMix > wet {
		wet = m.DelayMix
	}
	if wet > 1 {
		wet = 1
	}
	return 1 - wet/2
}
