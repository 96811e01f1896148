// Package recheck implements the observation recheck countdown: a small
// state machine driven by one tick per second from an external scheduler.
// On expiry it raises a persistent alert and requests a repeated cue at a
// configurable interval. It never touches assessment state.
package recheck

import "fmt"

// Status is the lifecycle state of the countdown.
type Status string

const (
	// StatusIdle means no countdown has been started.
	StatusIdle Status = "idle"

	// StatusRunning means the countdown is decrementing.
	StatusRunning Status = "running"

	// StatusExpired means the countdown ran out. Terminal until Start is
	// called again.
	StatusExpired Status = "expired"
)

// Config holds the countdown policy.
type Config struct {
	// Seconds is the countdown duration. Default 900 (15 minutes).
	Seconds int

	// CueRepeat is how many extra cues fire after the expiry cue. Default 3.
	CueRepeat int

	// CueIntervalSeconds is the spacing between repeated cues. Default 60.
	CueIntervalSeconds int
}

func (c Config) withDefaults() Config {
	if c.Seconds <= 0 {
		c.Seconds = 900
	}
	if c.CueRepeat < 0 {
		c.CueRepeat = 0
	}
	if c.CueIntervalSeconds <= 0 {
		c.CueIntervalSeconds = 60
	}
	return c
}

// State is the externally visible countdown state after a tick.
type State struct {
	Status           Status `json:"status"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Display          string `json:"display"`
	CueRequested     bool   `json:"cue_requested,omitempty"`
	Expired          bool   `json:"expired,omitempty"` // true on the tick that transitions to expired
}

// Timer is a single recheck countdown. One per session; starting again
// while running supersedes the previous countdown.
type Timer struct {
	cfg         Config
	status      Status
	remaining   int
	sinceExpiry int
	cuesFired   int
}

// New creates an idle timer with the given policy.
func New(cfg Config) *Timer {
	return &Timer{cfg: cfg.withDefaults(), status: StatusIdle}
}

// Start begins (or restarts) the countdown. Any running or expired
// countdown is discarded: there is at most one active countdown.
func (t *Timer) Start() State {
	t.status = StatusRunning
	t.remaining = t.cfg.Seconds
	t.sinceExpiry = 0
	t.cuesFired = 0
	return t.State()
}

// Tick advances the countdown by one second. Idle timers are unaffected.
// The countdown expires on the tick that exhausts it: a 900-second timer
// is expired after 900 ticks. After expiry, ticks drive the repeated cue.
func (t *Timer) Tick() State {
	switch t.status {
	case StatusRunning:
		t.remaining--
		if t.remaining <= 0 {
			t.remaining = 0
			t.status = StatusExpired
			s := t.State()
			s.CueRequested = true
			s.Expired = true
			return s
		}
		return t.State()

	case StatusExpired:
		t.sinceExpiry++
		s := t.State()
		if t.cuesFired < t.cfg.CueRepeat && t.sinceExpiry%t.cfg.CueIntervalSeconds == 0 {
			t.cuesFired++
			s.CueRequested = true
		}
		return s

	default:
		return t.State()
	}
}

// State returns the current countdown state without advancing it.
func (t *Timer) State() State {
	return State{
		Status:           t.status,
		RemainingSeconds: t.remaining,
		Display:          t.display(),
	}
}

func (t *Timer) display() string {
	switch t.status {
	case StatusRunning:
		return fmt.Sprintf("%d:%02d until recheck", t.remaining/60, t.remaining%60)
	case StatusExpired:
		return "Time to recheck observations"
	default:
		return ""
	}
}
