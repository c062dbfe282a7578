package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hkarvila/komppi"
	"github.com/hkarvila/komppi/compose"
	"github.com/hkarvila/komppi/oto"
	"github.com/hkarvila/komppi/sequencer"
	"github.com/hkarvila/komppi/version"
	"github.com/hkarvila/komppi/voice"
)

// midiContext is what the build-tag gated constructors return: the real
// driver-backed context with cgo, a null context without.
type midiContext interface {
	TryToOpenBy(namePrefix string, takeFirst bool)
	Close()
}

func main() {
	bpm := flag.Float64("bpm", 0, "Override the pattern tempo.")
	metronome := flag.Bool("m", false, "Enable the metronome.")
	generate := flag.Bool("g", false, "Generate melodic content onto the lead track before playing.")
	genMode := flag.String("mode", "melody", "Generation mode: melody, chords or both.")
	contour := flag.String("contour", "arch", "Generation contour: arch, ascending, descending, wave, flat or random.")
	energy := flag.Float64("energy", 0.5, "Generation energy, 0 to 1.")
	complexity := flag.Float64("complexity", 0.5, "Generation complexity, 0 to 1.")
	tension := flag.Float64("tension", 0.3, "Generation harmonic tension, 0 to 1.")
	seed := flag.Int64("seed", 0, "Generation random seed; 0 picks one.")
	bars := flag.Int("bars", 1, "Loop length in bars, 1 to 16.")
	midiPrefix := flag.String("midi", "", "Open the first MIDI input whose name starts with this prefix.")
	anyMidi := flag.Bool("anymidi", false, "Open the first available MIDI input.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	pattern := demoPattern(*bars * komppi.StepsPerBar)
	if flag.NArg() > 0 {
		pattern, err = loadPattern(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not load pattern: %v\n", err)
			os.Exit(1)
		}
	}
	if *bpm > 0 {
		pattern.BPM = *bpm
	}
	if *generate {
		applyGenerated(&pattern, *bars, compose.Params{
			Mode:       parseMode(*genMode),
			Contour:    parseContour(*contour),
			Energy:     *energy,
			Complexity: *complexity,
			Tension:    *tension,
			Rand:       newRand(*seed),
		})
	}

	synth := voice.NewSynth()
	bank := voice.NewBank(synth)
	broker := sequencer.NewBroker()
	engine, err := sequencer.NewEngine(broker, pattern, bank, sequencer.EngineOptions{
		Logger:         logger,
		CaptureTrack:   len(pattern.Tracks) - 1,
		MelodicVoiceID: "lead",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create engine: %v\n", err)
		os.Exit(1)
	}

	audioContext, err := oto.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not acquire audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioContext.Close()

	midiCtx := newMIDIContext(broker, logger)
	defer midiCtx.Close()
	midiCtx.TryToOpenBy(*midiPrefix, *anyMidi)

	go engine.Run()
	audioDone := make(chan struct{})
	go func() {
		if err := voice.Play(audioContext, synth, audioDone); err != nil {
			logger.Warn("audio output stopped", zap.Error(err))
		}
	}()
	go drainModel(broker)

	if *metronome {
		sequencer.TrySend(broker.ToEngine, any(sequencer.MetronomeMsg{On: true}))
	}
	sequencer.TrySend(broker.ToEngine, any(sequencer.StartMsg{}))

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)
	<-interrupted

	broker.CloseEngine <- struct{}{}
	<-broker.FinishedEngine
	close(audioDone)
}

// drainModel keeps the model channel from filling up; a headless player has
// no UI to consume position updates.
func drainModel(broker *sequencer.Broker) {
	for range broker.ToModel {
	}
}

func loadPattern(filename string) (komppi.Pattern, error) {
	var pattern komppi.Pattern
	inputBytes, err := os.ReadFile(filename)
	if err != nil {
		return pattern, fmt.Errorf("could not read file %v: %w", filename, err)
	}
	if errJSON := json.Unmarshal(inputBytes, &pattern); errJSON != nil {
		if errYaml := yaml.Unmarshal(inputBytes, &pattern); errYaml != nil {
			return pattern, fmt.Errorf("the pattern could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	return pattern, pattern.Validate()
}

// demoPattern is a four-on-the-floor starter kit with an empty lead track.
func demoPattern(steps int) komppi.Pattern {
	if steps < komppi.StepsPerBar || steps > komppi.MaxSteps {
		steps = komppi.StepsPerBar
	}
	p := komppi.New("demo", 120, steps, 0)
	kick := komppi.NewTrack("kick", steps)
	kick.VoiceID = "kick"
	snare := komppi.NewTrack("snare", steps)
	snare.VoiceID = "snare"
	hihat := komppi.NewTrack("hihat", steps)
	hihat.VoiceID = "hihat"
	lead := komppi.NewTrack("lead", steps)
	lead.VoiceID = "lead"
	lead.Params = komppi.MelodicParams{Release: 0.2}
	for i := 0; i < steps; i++ {
		if i%4 == 0 {
			kick.Steps[i].Active = true
		}
		if i%8 == 4 {
			snare.Steps[i].Active = true
		}
		if i%2 == 0 {
			hihat.Steps[i].Active = true
			hihat.Velocities[i] = 0.6
		}
	}
	p.Tracks = append(p.Tracks, kick, snare, hihat, lead)
	return p
}

// applyGenerated writes composed content onto the last (lead) track.
func applyGenerated(p *komppi.Pattern, bars int, params compose.Params) {
	if len(p.Tracks) == 0 {
		return
	}
	generated := compose.Generate([]string{
		"C3", "D3", "E3", "F3", "G3", "A3", "B3",
		"C4", "D4", "E4", "F4", "G4", "A4", "B4",
		"C5", "D5", "E5", "F5", "G5", "A5", "B5",
	}, bars, params)
	lead := &p.Tracks[len(p.Tracks)-1]
	for i := 0; i < p.StepsPerTrack && i < len(generated); i++ {
		lead.Steps[i] = generated[i]
		if generated[i].Active {
			lead.Velocities[i] = generated[i].Velocity
		}
	}
}

func parseMode(s string) compose.Mode {
	switch s {
	case "chords":
		return compose.ModeChords
	case "both":
		return compose.ModeBoth
	}
	return compose.ModeMelody
}

func parseContour(s string) compose.Contour {
	switch s {
	case "ascending":
		return compose.ContourAscending
	case "descending":
		return compose.ContourDescending
	case "wave":
		return compose.ContourWave
	case "flat":
		return compose.ContourFlat
	case "random":
		return compose.ContourRandom
	}
	return compose.ContourArch
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = rand.Int63()
	}
	return rand.New(rand.NewSource(seed))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Komppi command line player for .yml/.json pattern files.\nUsage: %s [flags] [pattern file]\n", os.Args[0])
	flag.PrintDefaults()
}
