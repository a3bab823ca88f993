package stack_test

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nightsky-data/skystack/internal/persist"
	"github.com/nightsky-data/skystack/internal/source"
	"github.com/nightsky-data/skystack/internal/stack"
	"github.com/nightsky-data/skystack/internal/testutil"
)

// TestPipelineEndToEnd runs scripted frames through the real capture,
// stacking and persistence path and checks the composites on disk.
func TestPipelineEndToEnd(t *testing.T) {
	const w, h = 32, 24
	t0 := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)

	frames := []stack.Frame{
		// Window 1: dim seed, a frame with a bright streak, then noise.
		testutil.SolidFrame(w, h, t0, 5),
		testutil.TransientFrame(w, h, t0.Add(time.Second), 1, 2, 2, 10),
		testutil.NoiseFrame(w, h, t0.Add(2*time.Second), 2),
		// Window 2: the 11s frame exceeds the 10s window and seeds it.
		testutil.SolidFrame(w, h, t0.Add(11*time.Second), 5),
		testutil.SolidFrame(w, h, t0.Add(12*time.Second), 6),
	}

	handle := source.NewScriptedHandle(frames, nil)
	capture, err := source.NewCapture(source.CaptureConfig{Handle: handle})
	testutil.AssertNoError(t, err)

	dir := t.TempDir()
	persister, err := persist.NewPersister(persist.PersisterConfig{
		Writer:   persist.PNGWriter{},
		FnameFmt: filepath.Join(dir, "{stack_type}_{start_time}.png"),
	})
	testutil.AssertNoError(t, err)

	stacker, err := stack.NewStacker(stack.StackerConfig{
		Source:      capture,
		Sink:        persister,
		StackLength: 10 * time.Second,
		StackPeriod: time.Hour,
		SessionID:   "e2e",
		Workers:     2,
	})
	testutil.AssertNoError(t, err)

	summary, err := stacker.Run(context.Background())
	testutil.AssertNoError(t, err)

	if summary.FramesTotal != len(frames) {
		t.Errorf("frames total = %d, want %d", summary.FramesTotal, len(frames))
	}
	if summary.JobsEnqueued != 2 {
		t.Fatalf("composites = %d, want 2", summary.JobsEnqueued)
	}

	entries, err := os.ReadDir(dir)
	testutil.AssertNoError(t, err)
	if len(entries) != 2 {
		t.Fatalf("files on disk = %d, want 2", len(entries))
	}

	// The first window's composite keeps the streak: per-pixel maximum
	// selection must preserve the transient against later noise.
	first := filepath.Join(dir, "max_"+strconv.FormatInt(t0.Unix(), 10)+".png")
	f, err := os.Open(first)
	testutil.AssertNoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	testutil.AssertNoError(t, err)

	for i := 0; i < 3; i++ {
		r, g, b, _ := img.At(2+i, 2+i).RGBA()
		if r != 0xFFFF || g != 0xFFFF || b != 0xFFFF {
			t.Errorf("streak pixel (%d,%d) = (%d,%d,%d), want white", 2+i, 2+i, r>>8, g>>8, b>>8)
		}
	}
}
