// Package stack implements the max-stack accumulation pipeline: frames in,
// per-pixel maximum composites out.
package stack

import "time"

// Channels is the number of colour channels per pixel. Frames arrive in the
// camera-native BGR order and stay BGR until persistence converts them.
const Channels = 3

// MaxPixelSum is the largest possible per-pixel channel sum for an 8-bit
// 3-channel frame (3 * 255). It fits a uint16 with room to spare, which is
// why the accumulator's sum buffer is uint16.
const MaxPixelSum = Channels * 255

// Frame is one decoded video frame plus its capture timestamp. A Frame is
// exclusively owned by whichever pipeline stage currently holds it and is
// transferred, never shared, across the frame queue.
type Frame struct {
	// Seq is the monotonic arrival sequence number assigned by the source.
	Seq uint64
	// Timestamp is the capture time recorded when the frame was read.
	Timestamp time.Time
	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int
	// Pix holds Width*Height*Channels bytes, BGR interleaved, row-major.
	Pix []uint8
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int, ts time.Time) Frame {
	return Frame{
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Pix:       make([]uint8, width*height*Channels),
	}
}

// PixelCount returns the number of pixels in the frame.
func (f Frame) PixelCount() int {
	return f.Width * f.Height
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	out := f
	out.Pix = pix
	return out
}

// SaveJob is a finished composite handed from the accumulator to the
// persister. It is owned by the accumulator until enqueued, then by the
// persister until written or dropped.
type SaveJob struct {
	// ID uniquely identifies the job in logs and the run catalog.
	ID string
	// SessionID is the owning session's ID.
	SessionID string
	// WindowStart is the capture timestamp of the window's first frame.
	WindowStart time.Time
	// WindowLength is the configured stack window duration.
	WindowLength time.Duration
	// Kind identifies the stacking algorithm that produced the image.
	Kind string
	// Width, Height and Pix describe the composite image, BGR interleaved.
	Width  int
	Height int
	Pix    []uint8
	// Frames is the number of frames compared into this composite, not
	// counting the seed frame.
	Frames int
}

// KindMax is the only stacking algorithm kind produced by this pipeline.
const KindMax = "max"
