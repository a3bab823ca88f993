// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"
	"time"

	"github.com/nightsky-data/skystack/internal/stack"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SolidFrame returns a w×h frame with every channel set to value.
func SolidFrame(w, h int, ts time.Time, value uint8) stack.Frame {
	f := stack.NewFrame(w, h, ts)
	for i := range f.Pix {
		f.Pix[i] = value
	}
	return f
}

// NoiseFrame returns a w×h frame with a deterministic pseudo-random fill
// derived from seed, so tests are reproducible without a RNG.
func NoiseFrame(w, h int, ts time.Time, seed int) stack.Frame {
	f := stack.NewFrame(w, h, ts)
	for i := range f.Pix {
		f.Pix[i] = uint8((i*31 + seed*97) % 251)
	}
	return f
}

// TransientFrame returns a NoiseFrame with a saturated bright streak of
// the given length starting at (x, y), standing in for a meteor.
func TransientFrame(w, h int, ts time.Time, seed, x, y, length int) stack.Frame {
	f := NoiseFrame(w, h, ts, seed)
	for i := 0; i < length; i++ {
		px, py := x+i, y+i
		if px >= w || py >= h {
			break
		}
		off := (py*w + px) * stack.Channels
		f.Pix[off] = 255
		f.Pix[off+1] = 255
		f.Pix[off+2] = 255
	}
	return f
}
