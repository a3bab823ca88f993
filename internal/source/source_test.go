package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nightsky-data/skystack/internal/stack"
	"github.com/nightsky-data/skystack/internal/timeutil"
)

func scriptFrames(t0 time.Time, n int) []stack.Frame {
	frames := make([]stack.Frame, n)
	for i := range frames {
		f := stack.NewFrame(2, 2, t0.Add(time.Duration(i)*time.Second))
		for j := range f.Pix {
			f.Pix[j] = uint8(i)
		}
		frames[i] = f
	}
	return frames
}

func TestCaptureDeliversFramesInOrder(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	handle := NewScriptedHandle(scriptFrames(t0, 5), nil)

	capt, err := NewCapture(CaptureConfig{Handle: handle})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}
	defer capt.Stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f, err := capt.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if f.Seq != uint64(i) {
			t.Errorf("frame %d: seq = %d, want %d", i, f.Seq, i)
		}
		if f.Pix[0] != uint8(i) {
			t.Errorf("frame %d delivered out of order: pix = %d", i, f.Pix[0])
		}
	}
}

func TestCaptureReportsStreamEndAfterDrain(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	handle := NewScriptedHandle(scriptFrames(t0, 3), errors.New("camera gone"))

	capt, err := NewCapture(CaptureConfig{Handle: handle})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}
	defer capt.Stop()

	// All queued frames come out before the end-of-stream signal.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := capt.Read(ctx); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if _, err := capt.Read(ctx); !errors.Is(err, stack.ErrStreamEnded) {
		t.Errorf("read after drain: err = %v, want ErrStreamEnded", err)
	}
}

func TestCaptureAssignsArrivalTimestamp(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC))

	// A handle that leaves timestamps zero gets them from the clock.
	f := stack.NewFrame(2, 2, time.Time{})
	handle := NewScriptedHandle([]stack.Frame{f}, nil)

	capt, err := NewCapture(CaptureConfig{Handle: handle, Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}
	defer capt.Stop()

	got, err := capt.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Timestamp.Equal(clock.Now()) {
		t.Errorf("timestamp = %v, want clock time %v", got.Timestamp, clock.Now())
	}
}

func TestCaptureStopReleasesHandle(t *testing.T) {
	t0 := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)

	// Endless feed with a small queue: the producer is blocked on a full
	// queue when Stop is called, and Stop must still return promptly.
	handle := NewScriptedHandle(scriptFrames(t0, 1), nil)
	handle.Feed = func() (stack.Frame, error) {
		return stack.NewFrame(2, 2, t0), nil
	}

	capt, err := NewCapture(CaptureConfig{Handle: handle, QueueCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}

	if _, err := capt.Read(context.Background()); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		capt.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if !handle.Closed() {
		t.Error("handle not closed after Stop")
	}
}

func TestCaptureReadHonoursContext(t *testing.T) {
	handle := NewScriptedHandle(nil, nil)
	handle.Feed = func() (stack.Frame, error) {
		// Block forever; the read side must still unblock on cancel.
		select {}
	}

	capt, err := NewCapture(CaptureConfig{Handle: handle})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := capt.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("read on cancelled ctx: err = %v, want context.Canceled", err)
	}
}

func TestCaptureRejectsNilHandle(t *testing.T) {
	if _, err := NewCapture(CaptureConfig{}); err == nil {
		t.Error("expected error for nil handle, got nil")
	}
}

func TestCaptureStartTwiceFails(t *testing.T) {
	handle := NewScriptedHandle(nil, nil)
	capt, err := NewCapture(CaptureConfig{Handle: handle})
	if err != nil {
		t.Fatal(err)
	}
	if err := capt.Start(); err != nil {
		t.Fatal(err)
	}
	defer capt.Stop()
	if err := capt.Start(); err == nil {
		t.Error("expected error on second Start, got nil")
	}
}
