package sequencer

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hkarvila/komppi"
)

type (
	// ArpMode selects how the arpeggiator walks the held notes.
	ArpMode int

	// Arpeggiator retriggers the currently held notes at its own rate,
	// layered above the step grid. Held notes are kept in insertion order but
	// the cycle always walks them in pitch order; any change to the held set
	// resorts and restarts the cycle from index zero. Each tick releases the
	// previously sounding note before triggering the next, so exactly one
	// arpeggiated note sounds at a time.
	Arpeggiator struct {
		clock  *Clock
		bank   komppi.VoiceBank
		logger *zap.Logger

		voiceID string
		params  komppi.VoiceParams

		enabled  bool
		mono     bool
		mode     ArpMode
		rate     float64 // 0..1, mapped nonlinearly to the retrigger interval
		velocity float64

		held  []komppi.Pitch // insertion order
		cycle []komppi.Pitch // pitch order, restarted on every change
		pos   int

		bounceIdx int
		bounceDir int

		sounding   komppi.Pitch
		soundingID int
		hasSound   bool

		rand *rand.Rand
	}
)

const (
	ArpUp ArpMode = iota
	ArpDown
	ArpUpDown
	ArpRandom
)

const (
	arpMinInterval = 50 * time.Millisecond
	arpMaxInterval = 400 * time.Millisecond
)

func NewArpeggiator(clock *Clock, bank komppi.VoiceBank, voiceID string, logger *zap.Logger) *Arpeggiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arpeggiator{
		clock:     clock,
		bank:      bank,
		logger:    logger,
		voiceID:   voiceID,
		velocity:  1,
		bounceDir: 1,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (a *Arpeggiator) SetMode(mode ArpMode) { a.mode = mode }
func (a *Arpeggiator) SetMono(mono bool)    { a.mono = mono }
func (a *Arpeggiator) Mode() ArpMode        { return a.mode }
func (a *Arpeggiator) Enabled() bool        { return a.enabled }

// SetParams sets the family record passed with every arpeggiated trigger.
func (a *Arpeggiator) SetParams(p komppi.VoiceParams) { a.params = p }

// SetRate sets the 0..1 rate control.
func (a *Arpeggiator) SetRate(rate float64) {
	if rate < 0 {
		rate = 0
	} else if rate > 1 {
		rate = 1
	}
	a.rate = rate
}

// Interval maps the rate control nonlinearly onto 50..400 ms; the square
// keeps the fast end of the knob usable instead of cramming it into the last
// few degrees.
func (a *Arpeggiator) Interval() time.Duration {
	span := float64(arpMaxInterval - arpMinInterval)
	return arpMinInterval + time.Duration(span*math.Pow(1-a.rate, 2))
}

// Active reports whether the retrigger timer should be running.
func (a *Arpeggiator) Active() bool {
	return a.enabled && len(a.cycle) > 0
}

// Hold adds a held note. The cycle resorts and restarts.
func (a *Arpeggiator) Hold(note komppi.Pitch, velocity float64) {
	for _, n := range a.held {
		if n == note {
			return
		}
	}
	a.held = append(a.held, note)
	if velocity > 0 {
		a.velocity = velocity
	}
	a.rebuildCycle()
}

// Release removes a held note. The cycle resorts and restarts; releasing the
// last note silences the sounding one.
func (a *Arpeggiator) Release(note komppi.Pitch) {
	for i, n := range a.held {
		if n == note {
			a.held = append(a.held[:i], a.held[i+1:]...)
			break
		}
	}
	a.rebuildCycle()
	if len(a.cycle) == 0 {
		a.silence(a.clock.NowSeconds())
	}
}

// Held returns the held notes in insertion order, most recent last.
func (a *Arpeggiator) Held() []komppi.Pitch { return a.held }

// SetEnabled turns the arpeggiator on or off. Turning it off with notes held
// must not leave an audible hole: the held notes sound immediately through
// the direct path (only the most recent one in mono mode). The caller owns
// those direct notes from here on and releases them on their note-offs.
func (a *Arpeggiator) SetEnabled(on bool) (sounded []komppi.Pitch) {
	if a.enabled == on {
		return nil
	}
	a.enabled = on
	if on {
		a.pos = 0
		a.bounceIdx = 0
		a.bounceDir = 1
		return nil
	}
	at := a.clock.NowSeconds()
	a.silence(at)
	if len(a.held) == 0 {
		return nil
	}
	if a.mono {
		sounded = []komppi.Pitch{a.held[len(a.held)-1]}
	} else {
		sounded = append(sounded, a.held...)
	}
	for _, note := range sounded {
		a.trigger(note, at, false)
	}
	a.held = a.held[:0]
	a.rebuildCycle()
	return sounded
}

// Tick releases the previously sounding note, selects the next index per the
// mode and triggers it.
func (a *Arpeggiator) Tick() {
	if !a.Active() {
		return
	}
	at := a.clock.NowSeconds()
	a.silence(at)
	n := len(a.cycle)
	var idx int
	switch a.mode {
	case ArpUp:
		idx = a.pos % n
	case ArpDown:
		idx = n - 1 - a.pos%n
	case ArpUpDown:
		idx = a.bounceIdx
		a.bounceIdx += a.bounceDir
		if a.bounceIdx >= n-1 {
			a.bounceIdx = n - 1
			a.bounceDir = -1
		}
		if a.bounceIdx <= 0 {
			a.bounceIdx = 0
			a.bounceDir = 1
		}
	case ArpRandom:
		idx = a.rand.Intn(n)
	}
	a.pos++
	a.trigger(a.cycle[idx], at, true)
}

func (a *Arpeggiator) rebuildCycle() {
	a.cycle = append(a.cycle[:0:0], a.held...)
	sort.Slice(a.cycle, func(i, j int) bool {
		ni, erri := a.cycle[i].MIDI()
		nj, errj := a.cycle[j].MIDI()
		if erri != nil || errj != nil {
			return a.cycle[i] < a.cycle[j]
		}
		return ni < nj
	})
	a.pos = 0
	a.bounceIdx = 0
	a.bounceDir = 1
}

func (a *Arpeggiator) trigger(note komppi.Pitch, at float64, track bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("arpeggiator trigger failed", zap.String("note", string(note)), zap.Any("panic", r))
		}
	}()
	id, err := note.MIDI()
	if err != nil {
		a.logger.Warn("arpeggiator skipped unparsable note", zap.String("note", string(note)))
		return
	}
	a.bank.Trigger(a.voiceID, at, a.velocity, komppi.NoteParams{Note: note, NoteID: id, Base: a.params})
	if track {
		a.sounding = note
		a.soundingID = id
		a.hasSound = true
	}
}

// silence releases the sounding arpeggiated note, if any.
func (a *Arpeggiator) silence(at float64) {
	if !a.hasSound {
		return
	}
	a.bank.Release(a.voiceID, a.soundingID, at)
	a.hasSound = false
}

// Clear drops all held notes and silences the output; used on transport stop
// and window blur so nothing is left sounding.
func (a *Arpeggiator) Clear() {
	a.silence(a.clock.NowSeconds())
	a.held = a.held[:0]
	a.rebuildCycle()
}
