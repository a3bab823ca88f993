package stack

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Accumulator maintains the running max-stack for one window: the composite
// pixel buffer and its per-pixel brightness-sum buffer. The two buffers are
// always pixel-aligned: sum[i] is the channel sum of the pixel stored at
// maxPix[i*Channels:], so each coordinate always holds a whole pixel from a
// single winning frame, never a blend.
//
// An Accumulator is touched only by the accumulation loop (single writer),
// so it needs no locking of its own.
type Accumulator struct {
	workers int

	width  int
	height int
	maxPix []uint8
	sum    []uint16

	windowStart time.Time
	frames      int
}

// NewAccumulator creates an accumulator that parallelises pixel updates
// across the given number of workers. workers <= 0 selects GOMAXPROCS.
func NewAccumulator(workers int) *Accumulator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Accumulator{workers: workers}
}

// Active reports whether a window is currently being accumulated.
func (a *Accumulator) Active() bool {
	return a.maxPix != nil
}

// WindowStart returns the capture timestamp of the current window's seed frame.
func (a *Accumulator) WindowStart() time.Time {
	return a.windowStart
}

// FrameCount returns the number of frames compared into the current window.
// The seed frame is not counted.
func (a *Accumulator) FrameCount() int {
	return a.frames
}

// Seed starts a new window from the given frame. The frame's pixels are
// copied as the initial composite and the sum buffer is zeroed, so the seed
// frame itself is never compared. It is only the baseline that any later
// frame with a strictly positive pixel sum can overwrite.
func (a *Accumulator) Seed(f Frame) {
	a.width = f.Width
	a.height = f.Height
	a.maxPix = make([]uint8, len(f.Pix))
	copy(a.maxPix, f.Pix)
	a.sum = make([]uint16, f.PixelCount())
	a.windowStart = f.Timestamp
	a.frames = 0
}

// Update folds one frame into the window: for every pixel independently,
// the frame's channel sum is compared against the stored sum and the stored
// pixel is overwritten only when the new sum is strictly greater. Equal sums
// retain the earlier-seen pixel. Rows are split into bands processed
// concurrently; bands never overlap, so the workers share no pixels.
func (a *Accumulator) Update(f Frame) error {
	if !a.Active() {
		return fmt.Errorf("update before seed")
	}
	if f.Width != a.width || f.Height != a.height {
		return fmt.Errorf("frame size %dx%d does not match window %dx%d",
			f.Width, f.Height, a.width, a.height)
	}

	workers := a.workers
	if workers > a.height {
		workers = a.height
	}
	if workers <= 1 {
		a.updateRows(f, 0, a.height)
		a.frames++
		return nil
	}

	rowsPer := (a.height + workers - 1) / workers
	var wg sync.WaitGroup
	for r0 := 0; r0 < a.height; r0 += rowsPer {
		r1 := r0 + rowsPer
		if r1 > a.height {
			r1 = a.height
		}
		wg.Add(1)
		go func(r0, r1 int) {
			defer wg.Done()
			a.updateRows(f, r0, r1)
		}(r0, r1)
	}
	wg.Wait()

	a.frames++
	return nil
}

// updateRows runs the compare-and-maybe-overwrite over rows [r0, r1).
func (a *Accumulator) updateRows(f Frame, r0, r1 int) {
	for y := r0; y < r1; y++ {
		pi := y * a.width // pixel index of row start
		bi := pi * Channels
		for x := 0; x < a.width; x++ {
			s := uint16(f.Pix[bi]) + uint16(f.Pix[bi+1]) + uint16(f.Pix[bi+2])
			if s > a.sum[pi] {
				a.sum[pi] = s
				a.maxPix[bi] = f.Pix[bi]
				a.maxPix[bi+1] = f.Pix[bi+1]
				a.maxPix[bi+2] = f.Pix[bi+2]
			}
			pi++
			bi += Channels
		}
	}
}

// Flush hands off the finished composite as a SaveJob and resets the
// accumulator to the between-windows state. The returned job owns the pixel
// buffer; no copy is made.
func (a *Accumulator) Flush(windowLength time.Duration) SaveJob {
	job := SaveJob{
		WindowStart:  a.windowStart,
		WindowLength: windowLength,
		Kind:         KindMax,
		Width:        a.width,
		Height:       a.height,
		Pix:          a.maxPix,
		Frames:       a.frames,
	}
	a.Reset()
	return job
}

// Reset discards any in-progress window.
func (a *Accumulator) Reset() {
	a.maxPix = nil
	a.sum = nil
	a.windowStart = time.Time{}
	a.frames = 0
	a.width = 0
	a.height = 0
}

// PixelSum returns the stored brightness sum for the pixel at (x, y).
// Diagnostic accessor used by tests and the sum heat-map plotter.
func (a *Accumulator) PixelSum(x, y int) uint16 {
	return a.sum[y*a.width+x]
}

// Composite returns the current composite buffer without flushing.
// The caller must not mutate it while the window is still accumulating.
func (a *Accumulator) Composite() []uint8 {
	return a.maxPix
}
