// Package voice is a deliberately small rendered voice bank so the demo
// binary makes sound: decaying sine and noise blips shaped per family. It is
// not an instrument engine; it exists to exercise the trigger path end to
// end.
package voice

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hkarvila/komppi"
	"github.com/hkarvila/komppi/sequencer"
)

const sampleRate = 44100

type (
	// Synth sums the currently sounding blips into stereo float buffers. The
	// engine goroutine adds blips through the instruments; the audio goroutine
	// renders. The mutex is held only for the buffer being rendered, which at
	// the demo's buffer sizes stays well under the device period.
	Synth struct {
		mu    sync.Mutex
		blips []blip
		noise *rand.Rand
	}

	blip struct {
		freq    float64
		phase   float64
		amp     float64
		decay   float64 // per-sample amplitude multiplier while decaying
		noise   float64 // noise-to-sine balance
		held    bool    // held blips sustain until released
		noteID  int
		voiceID string
	}

	// Instrument is one voice bank entry backed by the shared Synth.
	Instrument struct {
		synth   *Synth
		id      string
		family  komppi.VoiceFamily
		freq    float64
		decay   float64 // seconds to fall 60 dB
		noise   float64
		sustain bool
	}
)

func NewSynth() *Synth {
	return &Synth{noise: rand.New(rand.NewSource(1))}
}

// NewBank builds the default demo bank. The melodic lead and the metronome
// derive their frequency from the note they are triggered with; the drum
// entries ignore pitch.
func NewBank(s *Synth) komppi.VoiceBank {
	return komppi.VoiceBank{
		"kick":                     &Instrument{synth: s, id: "kick", family: komppi.FamilyKick, freq: 55, decay: 0.3},
		"snare":                    &Instrument{synth: s, id: "snare", family: komppi.FamilySnare, freq: 180, decay: 0.2, noise: 0.6},
		"hihat":                    &Instrument{synth: s, id: "hihat", family: komppi.FamilyHihat, freq: 6000, decay: 0.05, noise: 1},
		"clap":                     &Instrument{synth: s, id: "clap", family: komppi.FamilyClap, freq: 1200, decay: 0.15, noise: 0.9},
		"tom":                      &Instrument{synth: s, id: "tom", family: komppi.FamilyTom, freq: 110, decay: 0.25},
		"lead":                     &Instrument{synth: s, id: "lead", family: komppi.FamilyMelodic, freq: 440, decay: 0.4, sustain: true},
		sequencer.MetronomeVoiceID: &Instrument{synth: s, id: sequencer.MetronomeVoiceID, family: komppi.FamilyHihat, freq: 880, decay: 0.04},
	}
}

func (i *Instrument) Trigger(atTime, velocity float64, params komppi.VoiceParams) {
	freq := i.freq
	held := i.sustain
	noteID := -1
	if np, ok := params.(komppi.NoteParams); ok {
		noteID = np.NoteID
		if np.Note != "" {
			if m, err := np.Note.MIDI(); err == nil {
				freq = 440 * math.Pow(2, float64(m-69)/12)
			}
		}
	}
	decay := i.decay
	if decay <= 0 {
		decay = 0.1
	}
	i.synth.add(blip{
		freq:    freq,
		amp:     velocity,
		decay:   decayCoef(decay),
		noise:   i.noise,
		held:    held,
		noteID:  noteID,
		voiceID: i.id,
	})
}

func (i *Instrument) Release(noteID int, atTime float64) {
	i.synth.release(i.id, noteID)
}

// decayCoef converts a 60 dB decay time in seconds to a per-sample multiplier.
func decayCoef(seconds float64) float64 {
	return math.Pow(0.001, 1/(seconds*sampleRate))
}

func (s *Synth) add(b blip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blips = append(s.blips, b)
}

func (s *Synth) release(voiceID string, noteID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.blips {
		if s.blips[i].voiceID == voiceID && s.blips[i].noteID == noteID {
			s.blips[i].held = false
		}
	}
}

// Render fills an interleaved stereo buffer and drops blips that have decayed
// to silence.
func (s *Synth) Render(buffer []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 0; n+1 < len(buffer); n += 2 {
		var sum float64
		for i := range s.blips {
			b := &s.blips[i]
			tone := math.Sin(2 * math.Pi * b.phase)
			if b.noise > 0 {
				tone = tone*(1-b.noise) + (s.noise.Float64()*2-1)*b.noise
			}
			sum += tone * b.amp
			b.phase += b.freq / sampleRate
			if b.phase >= 1 {
				b.phase -= 1
			}
			if !b.held {
				b.amp *= b.decay
			}
		}
		v := float32(sum * 0.25)
		buffer[n] = v
		buffer[n+1] = v
	}
	kept := s.blips[:0]
	for _, b := range s.blips {
		if b.held || b.amp > 1e-4 {
			kept = append(kept, b)
		}
	}
	s.blips = kept
}

// Play renders into the sink until done closes. It owns the sink and closes
// it on return.
func Play(context komppi.AudioContext, s *Synth, done <-chan struct{}) error {
	sink := context.Output()
	defer sink.Close()
	buffer := make([]float32, 2048)
	for {
		select {
		case <-done:
			return nil
		default:
		}
		s.Render(buffer)
		if err := sink.WriteAudio(buffer); err != nil {
			return err
		}
	}
}
