package ratelimit

import (
	"sync"
	"time"

	"hcexport/pkg/logger"
)

// Limiter gates every outbound API call. Acquire blocks until the next call
// is safe to issue; it never fails, it only delays. Penalize records a
// server-signaled cooldown (HTTP 429) that suspends all grants.
type Limiter interface {
	Acquire()
	Penalize(cooldown time.Duration)
}

// Options configures a PacedWindow limiter. Clock and Sleep are injectable so
// tests can drive the limiter without real waits.
type Options struct {
	// Interval is the minimum spacing between consecutive grants.
	Interval time.Duration
	// WindowCalls is the number of grants before a proactive cooldown.
	// Zero disables the fixed window.
	WindowCalls int
	// WindowCooldown is the pause imposed once WindowCalls is reached.
	WindowCooldown time.Duration
	Logger         logger.Logger
	Clock          func() time.Time
	Sleep          func(time.Duration)
}

// PacedWindow composes two throttling mechanisms: pacing (a minimum interval
// between grants) and a fixed-window call budget with a mandatory cooldown.
type PacedWindow struct {
	interval       time.Duration
	windowCalls    int
	windowCooldown time.Duration

	now   func() time.Time
	sleep func(time.Duration)
	log   logger.Logger

	mu             sync.Mutex
	lastGrant      time.Time
	calls          int
	suspendedUntil time.Time
}

// New creates a PacedWindow limiter from the given options.
func New(opts Options) *PacedWindow {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &PacedWindow{
		interval:       opts.Interval,
		windowCalls:    opts.WindowCalls,
		windowCooldown: opts.WindowCooldown,
		now:            opts.Clock,
		sleep:          opts.Sleep,
		log:            opts.Logger,
	}
}

// Acquire blocks until the next call may start. The mutex is held across the
// waits: callers are sequential by design, and a parallel caller must not be
// granted while a cooldown is in progress.
func (pw *PacedWindow) Acquire() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	// Proactive fixed-window cooldown.
	if pw.windowCalls > 0 && pw.calls >= pw.windowCalls {
		pw.log.WarnWithFields("call budget exhausted, cooling down", map[string]interface{}{
			"calls":    pw.calls,
			"cooldown": pw.windowCooldown,
		})
		pw.sleep(pw.windowCooldown)
		pw.calls = 0
	}

	// Server-signaled suspension, recorded by Penalize.
	if wait := pw.suspendedUntil.Sub(pw.now()); wait > 0 {
		pw.log.WarnWithFields("throttled by server, waiting out cooldown", map[string]interface{}{
			"wait": wait,
		})
		pw.sleep(wait)
		pw.calls = 0
	}

	// Pacing between consecutive grants.
	if !pw.lastGrant.IsZero() {
		if wait := pw.interval - pw.now().Sub(pw.lastGrant); wait > 0 {
			pw.sleep(wait)
		}
	}

	pw.lastGrant = pw.now()
	pw.calls++
}

// Penalize suspends all grants for the given cooldown. The wait itself
// happens inside the next Acquire so the retried request funnels through the
// same gate as every other call.
func (pw *PacedWindow) Penalize(cooldown time.Duration) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	until := pw.now().Add(cooldown)
	if until.After(pw.suspendedUntil) {
		pw.suspendedUntil = until
	}
	pw.log.WarnWithFields("rate limit reached, scheduling cooldown", map[string]interface{}{
		"cooldown": cooldown,
	})
}

// Calls returns the number of grants in the current window.
func (pw *PacedWindow) Calls() int {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.calls
}
