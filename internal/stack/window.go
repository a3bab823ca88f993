package stack

import (
	"time"

	"github.com/nightsky-data/skystack/internal/timeutil"
)

// WindowState is the per-window accumulation state.
type WindowState int

const (
	// WaitingForFirstFrame means no window is open; the next frame seeds one.
	WaitingForFirstFrame WindowState = iota
	// Accumulating means frames are being folded into the open window.
	Accumulating
)

func (s WindowState) String() string {
	switch s {
	case WaitingForFirstFrame:
		return "waiting_for_first_frame"
	case Accumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// SessionState is the outer session lifecycle state.
type SessionState int

const (
	// SessionRunning means the session deadline has not been reached.
	SessionRunning SessionState = iota
	// SessionStopped is terminal; reached once the deadline passes.
	SessionStopped
)

// FrameAction tells the accumulation loop what to do with an arriving frame.
type FrameAction int

const (
	// SeedWindow: the frame opens a new window; copy it as the baseline,
	// do not compare it.
	SeedWindow FrameAction = iota
	// AccumulateFrame: fold the frame into the open window.
	AccumulateFrame
	// FlushThenSeed: the frame's timestamp is past the window deadline.
	// Flush the open window first; this frame belongs to the next window
	// and seeds it.
	FlushThenSeed
)

// WindowController decides window boundaries (when to flush a composite) and
// the session boundary (when to stop entirely). Deadlines are computed once
// and stored as data; the injected clock is the single time source.
type WindowController struct {
	clock       timeutil.Clock
	stackLength time.Duration

	state          WindowState
	session        SessionState
	windowStart    time.Time
	windowDeadline time.Time

	sessionDeadline time.Time
}

// NewWindowController creates a controller with the session deadline fixed at
// stackPeriod from now on the given clock.
func NewWindowController(clock timeutil.Clock, stackLength, stackPeriod time.Duration) *WindowController {
	return &WindowController{
		clock:           clock,
		stackLength:     stackLength,
		state:           WaitingForFirstFrame,
		session:         SessionRunning,
		sessionDeadline: clock.Now().Add(stackPeriod),
	}
}

// OnFrame advances the window state machine for a frame with the given
// capture timestamp and returns the action the loop must take.
func (w *WindowController) OnFrame(ts time.Time) FrameAction {
	switch w.state {
	case WaitingForFirstFrame:
		w.openWindow(ts)
		return SeedWindow
	case Accumulating:
		if ts.After(w.windowDeadline) {
			// Flush the finished window; the triggering frame opens the
			// next one and is not folded into the flushed composite.
			w.openWindow(ts)
			return FlushThenSeed
		}
		return AccumulateFrame
	}
	// Unreachable with valid states; treat as a fresh window.
	w.openWindow(ts)
	return SeedWindow
}

func (w *WindowController) openWindow(ts time.Time) {
	w.state = Accumulating
	w.windowStart = ts
	w.windowDeadline = ts.Add(w.stackLength)
}

// WindowFlushed resets the controller to the between-windows state without
// opening a new window. Used when a window is flushed at session end rather
// than by a triggering frame.
func (w *WindowController) WindowFlushed() {
	w.state = WaitingForFirstFrame
	w.windowStart = time.Time{}
	w.windowDeadline = time.Time{}
}

// SessionExpired reports whether the session deadline has passed, latching
// the terminal SessionStopped state the first time it observes that.
func (w *WindowController) SessionExpired() bool {
	if w.session == SessionStopped {
		return true
	}
	if w.clock.Now().After(w.sessionDeadline) {
		w.session = SessionStopped
		return true
	}
	return false
}

// StopSession forces the terminal session state (external shutdown request).
func (w *WindowController) StopSession() {
	w.session = SessionStopped
}

// State returns the current window state.
func (w *WindowController) State() WindowState {
	return w.state
}

// Session returns the current session state.
func (w *WindowController) Session() SessionState {
	return w.session
}

// WindowStart returns the open window's start timestamp (zero when waiting).
func (w *WindowController) WindowStart() time.Time {
	return w.windowStart
}

// SessionDeadline returns the fixed session deadline.
func (w *WindowController) SessionDeadline() time.Time {
	return w.sessionDeadline
}
