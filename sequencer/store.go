package sequencer

import (
	"sync/atomic"

	"github.com/hkarvila/komppi"
)

// PatternStore is the single authority for the current pattern. Everything
// that touches the pattern reads it fresh through Current on every access;
// caching a snapshot across an asynchronous boundary is exactly the stale
// reference bug this type exists to prevent. Content edits mutate the current
// object in place under the single-writer discipline of the engine goroutine;
// structural changes (step count) swap in a whole new Pattern so a reader
// holding the old pointer still sees a consistent object.
type PatternStore struct {
	current atomic.Pointer[komppi.Pattern]
}

func NewPatternStore(p komppi.Pattern) *PatternStore {
	s := &PatternStore{}
	s.current.Store(&p)
	return s
}

// Current returns the live pattern. Never retain the pointer across a wait;
// re-read instead.
func (s *PatternStore) Current() *komppi.Pattern {
	return s.current.Load()
}

// Swap replaces the whole pattern object atomically.
func (s *PatternStore) Swap(p komppi.Pattern) {
	s.current.Store(&p)
}

// Update runs fn against the live pattern. fn must complete synchronously;
// step writes inside it are whole-Step assignments so no torn triple is ever
// visible.
func (s *PatternStore) Update(fn func(p *komppi.Pattern)) {
	fn(s.current.Load())
}
