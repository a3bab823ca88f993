package stack

import (
	"testing"
	"time"

	"github.com/nightsky-data/skystack/internal/timeutil"
)

func newTestController(stackLength, stackPeriod time.Duration) (*WindowController, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC))
	return NewWindowController(clock, stackLength, stackPeriod), clock
}

func TestFirstFrameSeedsWindow(t *testing.T) {
	wc, clock := newTestController(5*time.Minute, time.Hour)

	if wc.State() != WaitingForFirstFrame {
		t.Fatalf("initial state = %v, want waiting", wc.State())
	}

	ts := clock.Now()
	if got := wc.OnFrame(ts); got != SeedWindow {
		t.Errorf("first frame action = %v, want SeedWindow", got)
	}
	if wc.State() != Accumulating {
		t.Errorf("state after seed = %v, want Accumulating", wc.State())
	}
	if !wc.WindowStart().Equal(ts) {
		t.Errorf("window start = %v, want %v", wc.WindowStart(), ts)
	}
}

func TestFlushExactlyWhenDeadlineExceeded(t *testing.T) {
	wc, clock := newTestController(5*time.Minute, time.Hour)

	start := clock.Now()
	wc.OnFrame(start)

	// A frame exactly at window_start + stack_length does NOT flush:
	// flushing requires strictly exceeding the deadline.
	if got := wc.OnFrame(start.Add(5 * time.Minute)); got != AccumulateFrame {
		t.Errorf("frame at exact deadline: action = %v, want AccumulateFrame", got)
	}

	// One nanosecond past: flush, and the triggering frame opens the next
	// window.
	trigger := start.Add(5*time.Minute + time.Nanosecond)
	if got := wc.OnFrame(trigger); got != FlushThenSeed {
		t.Errorf("frame past deadline: action = %v, want FlushThenSeed", got)
	}
	if !wc.WindowStart().Equal(trigger) {
		t.Errorf("next window start = %v, want triggering frame time %v", wc.WindowStart(), trigger)
	}
}

func TestFramesWithinWindowAccumulate(t *testing.T) {
	wc, clock := newTestController(5*time.Minute, time.Hour)

	start := clock.Now()
	wc.OnFrame(start)
	for i := 1; i <= 10; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		if got := wc.OnFrame(ts); got != AccumulateFrame {
			t.Fatalf("frame %d action = %v, want AccumulateFrame", i, got)
		}
	}
}

func TestSessionExpiresAtDeadline(t *testing.T) {
	wc, clock := newTestController(5*time.Minute, time.Hour)

	if wc.SessionExpired() {
		t.Fatal("session expired immediately")
	}
	if wc.Session() != SessionRunning {
		t.Fatalf("session state = %v, want running", wc.Session())
	}

	clock.Advance(time.Hour)
	if wc.SessionExpired() {
		t.Error("session expired at exact deadline; deadline must be strictly exceeded")
	}

	clock.Advance(time.Second)
	if !wc.SessionExpired() {
		t.Error("session not expired past deadline")
	}
	if wc.Session() != SessionStopped {
		t.Errorf("session state = %v, want stopped", wc.Session())
	}

	// Terminal: stays expired even if the clock were wound back.
	clock.Set(clock.Now().Add(-2 * time.Hour))
	if !wc.SessionExpired() {
		t.Error("stopped session reported running again")
	}
}

func TestStopSessionIsTerminal(t *testing.T) {
	wc, _ := newTestController(5*time.Minute, time.Hour)

	wc.StopSession()
	if !wc.SessionExpired() {
		t.Error("stopped session reported not expired")
	}
}

func TestWindowFlushedReturnsToWaiting(t *testing.T) {
	wc, clock := newTestController(5*time.Minute, time.Hour)

	wc.OnFrame(clock.Now())
	wc.WindowFlushed()
	if wc.State() != WaitingForFirstFrame {
		t.Errorf("state after WindowFlushed = %v, want waiting", wc.State())
	}
	if !wc.WindowStart().IsZero() {
		t.Errorf("window start after WindowFlushed = %v, want zero", wc.WindowStart())
	}
}

func TestSessionDeadlineStoredAsData(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC))
	wc := NewWindowController(clock, 5*time.Minute, 8*time.Hour)

	want := clock.Now().Add(8 * time.Hour)
	if !wc.SessionDeadline().Equal(want) {
		t.Errorf("session deadline = %v, want %v", wc.SessionDeadline(), want)
	}
}
