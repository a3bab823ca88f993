// Command stack-sim runs the stacking pipeline against a synthetic frame
// sequence with injected bright transients, writing real composite PNGs.
// It exercises acquisition, accumulation, windowing and persistence end to
// end without a camera.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/nightsky-data/skystack/internal/persist"
	"github.com/nightsky-data/skystack/internal/source"
	"github.com/nightsky-data/skystack/internal/stack"
)

var (
	width       = flag.Int("width", 640, "Frame width in pixels")
	height      = flag.Int("height", 480, "Frame height in pixels")
	frames      = flag.Int("frames", 300, "Number of frames to generate")
	fps         = flag.Float64("fps", 10, "Synthetic frame rate")
	stackLength = flag.Float64("stack-length", 10, "Stack window length in seconds")
	transients  = flag.Int("transients", 5, "Number of bright streaks to inject")
	fnameFmt    = flag.String("out", "sim_{stack_type}_{start_time}.png", "Output filename template")
	seed        = flag.Int64("seed", 1, "RNG seed")
)

func main() {
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	script := generate(rng)

	handle := source.NewScriptedHandle(script, nil)
	capture, err := source.NewCapture(source.CaptureConfig{Handle: handle})
	if err != nil {
		log.Fatalf("[StackSim] %v", err)
	}

	persister, err := persist.NewPersister(persist.PersisterConfig{
		Writer:   persist.PNGWriter{},
		FnameFmt: *fnameFmt,
	})
	if err != nil {
		log.Fatalf("[StackSim] %v", err)
	}

	stacker, err := stack.NewStacker(stack.StackerConfig{
		Source:      capture,
		Sink:        persister,
		StackLength: time.Duration(*stackLength * float64(time.Second)),
		StackPeriod: 24 * time.Hour,
		SessionID:   "stack-sim",
	})
	if err != nil {
		log.Fatalf("[StackSim] %v", err)
	}

	summary, err := stacker.Run(context.Background())
	if err != nil {
		log.Fatalf("[StackSim] %v", err)
	}
	log.Printf("[StackSim] done: frames=%d composites=%d", summary.FramesTotal, summary.JobsEnqueued)
}

// generate builds the synthetic night: low-level sensor noise on every
// frame, plus a handful of frames carrying a bright diagonal streak.
func generate(rng *rand.Rand) []stack.Frame {
	t0 := time.Now().UTC()
	interval := time.Duration(float64(time.Second) / *fps)

	streakAt := make(map[int]bool, *transients)
	for len(streakAt) < *transients && len(streakAt) < *frames {
		streakAt[rng.Intn(*frames)] = true
	}

	script := make([]stack.Frame, *frames)
	for i := range script {
		f := stack.NewFrame(*width, *height, t0.Add(time.Duration(i)*interval))
		for j := range f.Pix {
			f.Pix[j] = uint8(rng.Intn(24))
		}
		if streakAt[i] {
			drawStreak(f, rng)
		}
		script[i] = f
	}
	return script
}

// drawStreak paints a saturated diagonal line at a random position.
func drawStreak(f stack.Frame, rng *rand.Rand) {
	length := 30 + rng.Intn(60)
	x := rng.Intn(f.Width)
	y := rng.Intn(f.Height)
	for i := 0; i < length; i++ {
		px, py := x+i, y+i
		if px >= f.Width || py >= f.Height {
			break
		}
		off := (py*f.Width + px) * stack.Channels
		f.Pix[off] = 255
		f.Pix[off+1] = 255
		f.Pix[off+2] = 255
	}
}
