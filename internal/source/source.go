// Package source acquires decoded frames from a video stream collaborator on
// a dedicated goroutine and delivers them, in arrival order, through a
// bounded queue to the accumulation loop.
package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/stack"
	"github.com/nightsky-data/skystack/internal/timeutil"
)

// StreamHandle is the external video-stream collaborator at the decode
// boundary: it yields fully decoded frames with capture timestamps and
// releases the stream on Close. Reconnect/retry toward the camera is
// deliberately absent at every layer.
type StreamHandle interface {
	// ReadFrame blocks until the next decoded frame is available. Any
	// error is terminal for the stream (end of stream, dropped
	// connection); the handle will not recover.
	ReadFrame() (stack.Frame, error)
	// Close releases the underlying stream. Called exactly once, after
	// the acquisition goroutine has exited.
	Close() error
}

// DefaultQueueCapacity bounds the frame queue. The queue is bounded with a
// block-producer policy: once it fills, acquisition blocks until the
// accumulation loop catches up, so memory stays bounded and no accepted
// frame is ever dropped while the capture is running.
const DefaultQueueCapacity = 64

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	// Handle is the stream collaborator. Required.
	Handle StreamHandle
	// Clock supplies arrival timestamps for frames whose handle did not
	// set one; nil selects the real clock.
	Clock timeutil.Clock
	// QueueCapacity overrides DefaultQueueCapacity when positive.
	QueueCapacity int
}

// Capture runs frame acquisition on its own goroutine and exposes the
// blocking Read side to the accumulation loop. Frames are delivered in
// strict arrival order. A stream failure ends delivery without crossing
// goroutines: Read reports stack.ErrStreamEnded once the queue drains.
type Capture struct {
	handle StreamHandle
	clock  timeutil.Clock

	frames chan stack.Frame
	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	started  bool
	stopping bool
	stopped  bool
}

// NewCapture builds a Capture around the given stream handle.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Handle == nil {
		return nil, fmt.Errorf("capture: stream handle is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	capQ := cfg.QueueCapacity
	if capQ <= 0 {
		capQ = DefaultQueueCapacity
	}
	return &Capture{
		handle: cfg.Handle,
		clock:  clock,
		frames: make(chan stack.Frame, capQ),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins continuous acquisition. It may be called once.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("capture: already started")
	}
	c.started = true
	go c.readLoop()
	return nil
}

// readLoop pulls frames from the handle until stop is requested or the
// stream fails. Closing the frame channel is the end-of-stream signal to
// the consumer; frames already queued are still delivered.
func (c *Capture) readLoop() {
	defer close(c.doneCh)
	defer close(c.frames)

	var seq uint64
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		f, err := c.handle.ReadFrame()
		if err != nil {
			if !c.stopRequested() {
				monitoring.Logf("[Capture] stream ended: %v", err)
			}
			return
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = c.clock.Now()
		}
		f.Seq = seq
		seq++

		select {
		case c.frames <- f:
			// Bounded queue, block-producer policy: backpressure lands
			// here rather than growing memory.
		case <-c.stopCh:
			// Frame read after stop was requested: discarded, not
			// delivered.
			return
		}
	}
}

func (c *Capture) stopRequested() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Read blocks until the next frame is available, the stream has ended, or
// ctx is cancelled. Frames come out in the exact order they arrived.
func (c *Capture) Read(ctx context.Context) (stack.Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return stack.Frame{}, stack.ErrStreamEnded
		}
		return f, nil
	case <-ctx.Done():
		return stack.Frame{}, ctx.Err()
	}
}

// Stop signals termination, waits for the acquisition goroutine to exit,
// then releases the stream handle. Safe to call multiple times; only the
// first call does the work.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		alreadyStopping := c.stopping
		c.mu.Unlock()
		if alreadyStopping {
			<-c.doneCh
		}
		return
	}
	c.stopping = true
	c.mu.Unlock()

	close(c.stopCh)
	<-c.doneCh

	if err := c.handle.Close(); err != nil {
		monitoring.Logf("[Capture] closing stream: %v", err)
	}

	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}
