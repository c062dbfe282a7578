package komppi

import "fmt"

type (
	// VoiceParams is the parameter bag handed to a Voice on every trigger.
	// Instead of a loosely typed map there is one record type per voice
	// family, each validated at construction; the engine passes the records
	// through opaquely.
	VoiceParams interface {
		Family() VoiceFamily
		Validate() error
	}

	// KickParams shape the kick drum family.
	KickParams struct {
		Tune  float64 // 0..1, fundamental pitch
		Decay float64 // 0..1, amplitude envelope decay
		Click float64 // 0..1, transient click amount
	}

	// SnareParams shape the snare family.
	SnareParams struct {
		Tune  float64
		Decay float64
		Snap  float64 // 0..1, noise-to-body balance
	}

	// HihatParams shape the hi-hat family.
	HihatParams struct {
		Decay float64
		Tone  float64 // 0..1, filter brightness
		Open  bool
	}

	// ClapParams shape the clap family.
	ClapParams struct {
		Decay  float64
		Spread float64 // 0..1, multi-tap spread
	}

	// TomParams shape the tom family.
	TomParams struct {
		Tune  float64
		Decay float64
	}

	// FMParams shape the two-operator FM percussion family.
	FMParams struct {
		Ratio    float64 // modulator/carrier frequency ratio, > 0
		ModDepth float64 // 0..1
		Decay    float64
	}

	// MelodicParams shape the polyphonic melodic family; the only family that
	// receives Release calls.
	MelodicParams struct {
		Attack  float64 // seconds
		Release float64 // seconds
		Glide   float64 // 0..1
	}
)

func (KickParams) Family() VoiceFamily    { return FamilyKick }
func (SnareParams) Family() VoiceFamily   { return FamilySnare }
func (HihatParams) Family() VoiceFamily   { return FamilyHihat }
func (ClapParams) Family() VoiceFamily    { return FamilyClap }
func (TomParams) Family() VoiceFamily     { return FamilyTom }
func (FMParams) Family() VoiceFamily      { return FamilyFM }
func (MelodicParams) Family() VoiceFamily { return FamilyMelodic }

func unitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s %v outside [0,1]", name, v)
	}
	return nil
}

func (p KickParams) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{{"tune", p.Tune}, {"decay", p.Decay}, {"click", p.Click}} {
		if err := unitRange(c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

func (p SnareParams) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{{"tune", p.Tune}, {"decay", p.Decay}, {"snap", p.Snap}} {
		if err := unitRange(c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

func (p HihatParams) Validate() error {
	if err := unitRange("decay", p.Decay); err != nil {
		return err
	}
	return unitRange("tone", p.Tone)
}

func (p ClapParams) Validate() error {
	if err := unitRange("decay", p.Decay); err != nil {
		return err
	}
	return unitRange("spread", p.Spread)
}

func (p TomParams) Validate() error {
	if err := unitRange("tune", p.Tune); err != nil {
		return err
	}
	return unitRange("decay", p.Decay)
}

func (p FMParams) Validate() error {
	if p.Ratio <= 0 {
		return fmt.Errorf("ratio %v must be positive", p.Ratio)
	}
	if err := unitRange("moddepth", p.ModDepth); err != nil {
		return err
	}
	return unitRange("decay", p.Decay)
}

func (p MelodicParams) Validate() error {
	if p.Attack < 0 || p.Release < 0 {
		return fmt.Errorf("attack %v and release %v must be non-negative", p.Attack, p.Release)
	}
	return unitRange("glide", p.Glide)
}

// NoteParams wraps a family record with the pitch and note id of one melodic
// trigger. Drum families receive their record bare; melodic voices need the
// pitch, and the note id pairs the eventual Release call with this Trigger.
type NoteParams struct {
	Note   Pitch
	NoteID int
	Base   VoiceParams
}

func (p NoteParams) Family() VoiceFamily {
	if p.Base != nil {
		return p.Base.Family()
	}
	return FamilyMelodic
}

func (p NoteParams) Validate() error {
	if p.Base != nil {
		return p.Base.Validate()
	}
	return nil
}
