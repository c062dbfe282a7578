package komppi

type (
	// Voice is the capability the engine triggers to make sound. How a voice
	// renders audio is not komppi's concern; the engine only promises to call
	// Trigger with the precise musical timestamp of the step (in seconds from
	// transport start) and a velocity already scaled by the track volume.
	// Melodic voices additionally get Release calls, paired to Trigger calls
	// through noteID.
	Voice interface {
		Trigger(atTime float64, velocity float64, params VoiceParams)
		Release(noteID int, atTime float64)
	}

	// VoiceBank maps voice ids to Voices. A nil bank or a missing id is not an
	// error; the trigger is simply dropped.
	VoiceBank map[string]Voice

	// VoiceFamily enumerates the instrument families the engine knows
	// parameter shapes for.
	VoiceFamily int
)

const (
	FamilyKick VoiceFamily = iota
	FamilySnare
	FamilyHihat
	FamilyClap
	FamilyTom
	FamilyFM
	FamilyMelodic
)

func (f VoiceFamily) String() string {
	switch f {
	case FamilyKick:
		return "kick"
	case FamilySnare:
		return "snare"
	case FamilyHihat:
		return "hihat"
	case FamilyClap:
		return "clap"
	case FamilyTom:
		return "tom"
	case FamilyFM:
		return "fm"
	case FamilyMelodic:
		return "melodic"
	}
	return "unknown"
}

// Trigger looks up the voice for id and triggers it, returning false if no
// voice was registered under that id.
func (b VoiceBank) Trigger(id string, atTime, velocity float64, params VoiceParams) bool {
	v, ok := b[id]
	if !ok || v == nil {
		return false
	}
	v.Trigger(atTime, velocity, params)
	return true
}

// Release releases the note with the given id on the voice, if present.
func (b VoiceBank) Release(id string, noteID int, atTime float64) {
	if v, ok := b[id]; ok && v != nil {
		v.Release(noteID, atTime)
	}
}
