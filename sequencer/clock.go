package sequencer

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type (
	// Clock is the single source of musical time: it owns the transport state
	// and the tempo-to-wall-clock conversion. The engine loop calls Tick once
	// per step duration; everything else observes the clock through Pos and
	// the step notifications. Position is monotonic while running; only Stop
	// resets it to zero.
	//
	// Start may involve an opaque warm-up of the audio backend. Two callers
	// racing into Start (two near-simultaneous performance events both
	// auto-starting the transport) must collapse into exactly one transition
	// and one step-zero notification; the starting flag guards the window
	// while the warm-up runs outside the lock.
	Clock struct {
		mu        sync.Mutex
		bpm       float64
		state     transportState
		starting  bool
		step      int
		stepBegan time.Time
		pausedPos float64

		now    func() time.Time
		warmup func() error
		logger *zap.Logger

		handlers  []StepHandler
		listeners []func(step int)
	}

	// StepHandler receives the tick before the plain listeners; the scheduler
	// registers here so voice triggers always precede UI highlighting within
	// one tick. Handlers are not called on Stop.
	StepHandler interface {
		OnStep(step int)
	}

	transportState int
)

const (
	stateStopped transportState = iota
	stateRunning
	statePaused
)

func NewClock(bpm float64, logger *zap.Logger) *Clock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Clock{
		bpm:    bpm,
		now:    time.Now,
		logger: logger,
	}
}

// SetWarmup installs the audio backend warm-up hook run by the first Start.
// The hook may block; the clock stays in the starting state until it returns.
func (c *Clock) SetWarmup(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmup = fn
}

// SetTempo updates the step duration. Effective immediately; already elapsed
// steps are not repositioned.
func (c *Clock) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bpm = bpm
}

func (c *Clock) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// SecondsPerStep converts the current tempo to the duration of one sixteenth
// note step.
func (c *Clock) SecondsPerStep() float64 {
	return 60 / c.BPM() / 4
}

// StepDuration is SecondsPerStep as a time.Duration, for timer arming.
func (c *Clock) StepDuration() time.Duration {
	return time.Duration(c.SecondsPerStep() * float64(time.Second))
}

// TimeAtStep returns the musical timestamp of a step in seconds from
// transport start, at the current tempo. Triggers are stamped with this, not
// with wall-clock now, so dispatch jitter does not shift the audio.
func (c *Clock) TimeAtStep(step int) float64 {
	return float64(step) * c.SecondsPerStep()
}

// AddHandler registers a tick handler. Handlers run in registration order,
// before any listener.
func (c *Clock) AddHandler(h StepHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// AddListener registers an onStep callback, typically UI step highlighting.
// Listeners also get the position-zero notification on Stop.
func (c *Clock) AddListener(fn func(step int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start transitions stopped->running or paused->running. Idempotent and
// race-free: a second caller observing starting or running returns without
// side effects. A fresh start (not a resume) fires the step-zero tick.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.state == stateRunning || c.starting {
		c.mu.Unlock()
		return
	}
	resume := c.state == statePaused
	c.starting = true
	warmup := c.warmup
	c.mu.Unlock()

	var err error
	if warmup != nil {
		err = warmup()
	}

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("transport start aborted", zap.Error(err))
		return
	}
	c.state = stateRunning
	c.stepBegan = c.now()
	if resume {
		c.mu.Unlock()
		return
	}
	c.step = 0
	c.mu.Unlock()
	c.fire(0, true)
}

// Pause freezes the position without resetting it.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateRunning {
		return
	}
	c.pausedPos = c.posLocked()
	c.state = statePaused
}

// Stop resets the position to zero and notifies listeners of position zero.
// Handlers are deliberately not called: stopping must not retrigger step
// zero's voices.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.state == stateStopped {
		c.mu.Unlock()
		return
	}
	c.state = stateStopped
	c.step = 0
	c.pausedPos = 0
	c.mu.Unlock()
	c.fire(0, false)
}

// Tick advances the transport one step and fires the notifications. Returns
// the step just begun, or -1 if the transport is not running.
func (c *Clock) Tick() int {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return -1
	}
	c.step++
	c.stepBegan = c.now()
	step := c.step
	c.mu.Unlock()
	c.fire(step, true)
	return step
}

// Running reports whether the transport is running.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// Step returns the whole-step counter, the identity of the current tick.
func (c *Clock) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Pos returns the fractional position in steps. Zero when stopped, frozen
// while paused.
func (c *Clock) Pos() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posLocked()
}

func (c *Clock) posLocked() float64 {
	switch c.state {
	case stateStopped:
		return 0
	case statePaused:
		return c.pausedPos
	}
	frac := c.now().Sub(c.stepBegan).Seconds() / (60 / c.bpm / 4)
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return float64(c.step) + frac
}

// fire notifies handlers (when ticking) and then listeners, each behind a
// recover so one failing callback cannot take down the tick or starve the
// callbacks after it.
func (c *Clock) fire(step int, withHandlers bool) {
	c.mu.Lock()
	handlers := c.handlers
	listeners := c.listeners
	c.mu.Unlock()
	if withHandlers {
		for _, h := range handlers {
			c.safeHandle(h, step)
		}
	}
	for _, fn := range listeners {
		c.safeListen(fn, step)
	}
}

func (c *Clock) safeHandle(h StepHandler, step int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("step handler panicked", zap.Int("step", step), zap.Any("panic", r))
		}
	}()
	h.OnStep(step)
}

func (c *Clock) safeListen(fn func(int), step int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("step listener panicked", zap.Int("step", step), zap.Any("panic", r))
		}
	}()
	fn(step)
}

// NowSeconds returns the current musical time in seconds from transport
// start, the timestamp free-running generators stamp their triggers with.
func (c *Clock) NowSeconds() float64 {
	return c.Pos() * c.SecondsPerStep()
}
