package source

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/stack"
)

// ErrFrameNotReady is returned by FFmpegDecoder.Decode when the codec has
// consumed the access unit but not yet emitted a picture. The caller skips
// and feeds the next unit; the picture surfaces one or two units later.
var ErrFrameNotReady = errors.New("decoder: frame not ready")

// FFmpegDecoder decodes H264 access units to raw BGR frames through an
// ffmpeg child process: Annex-B in on stdin, rawvideo bgr24 out on stdout.
// Frame dimensions are learned from the first in-band SPS, so no size
// configuration is needed.
type FFmpegDecoder struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	frames chan []uint8
	quit   chan struct{}

	width   int
	height  int
	started bool
	closed  bool
}

// NewFFmpegDecoder starts the ffmpeg child. It fails fast when the binary
// is not on PATH so a misconfigured host is caught at startup, not at the
// first frame.
func NewFFmpegDecoder() (*FFmpegDecoder, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("decoder: ffmpeg not found: %w", err)
	}

	cmd := exec.Command(path,
		"-hide_banner", "-loglevel", "error",
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-f", "h264", "-i", "pipe:0",
		"-f", "rawvideo", "-pix_fmt", "bgr24", "pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("decoder: start ffmpeg: %w", err)
	}

	return &FFmpegDecoder{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		frames: make(chan []uint8, 4),
		quit:   make(chan struct{}),
	}, nil
}

// Decode feeds one access unit to the codec and returns a decoded frame if
// one is available. The first SPS seen fixes the frame dimensions and
// starts the rawvideo reader.
func (d *FFmpegDecoder) Decode(annexB []byte, pts time.Duration) (stack.Frame, error) {
	if d.width == 0 {
		if w, h, ok := dimensionsFromSPS(annexB); ok {
			d.width, d.height = w, h
			d.mu.Lock()
			d.started = true
			d.mu.Unlock()
			go d.readLoop()
			monitoring.Logf("[Decoder] stream is %dx%d", w, h)
		} else {
			return stack.Frame{}, ErrFrameNotReady
		}
	}

	if _, err := d.stdin.Write(annexB); err != nil {
		return stack.Frame{}, fmt.Errorf("decoder: write access unit: %w", err)
	}

	select {
	case pix, ok := <-d.frames:
		if !ok {
			return stack.Frame{}, fmt.Errorf("decoder: ffmpeg exited")
		}
		f := stack.Frame{
			Width:  d.width,
			Height: d.height,
			Pix:    pix,
		}
		return f, nil
	default:
		return stack.Frame{}, ErrFrameNotReady
	}
}

// readLoop slices ffmpeg's rawvideo stdout into whole frames.
func (d *FFmpegDecoder) readLoop() {
	defer close(d.frames)
	size := d.width * d.height * stack.Channels
	for {
		buf := make([]uint8, size)
		if _, err := io.ReadFull(d.stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				monitoring.Logf("[Decoder] rawvideo read: %v", err)
			}
			return
		}
		select {
		case d.frames <- buf:
		case <-d.quit:
			// Shutdown with pictures still in flight: discard the rest of
			// the flush output so the child can reach EOF and exit.
			io.Copy(io.Discard, d.stdout)
			return
		}
	}
}

// dimensionsFromSPS scans the Annex-B buffer for an SPS NALU and unmarshals
// it for the picture dimensions.
func dimensionsFromSPS(annexB []byte) (int, int, bool) {
	nalus, err := h264.AnnexBUnmarshal(annexB)
	if err != nil {
		return 0, 0, false
	}
	for _, nalu := range nalus {
		if len(nalu) == 0 || h264.NALUType(nalu[0]&0x1F) != h264.NALUTypeSPS {
			continue
		}
		var sps h264.SPS
		if err := sps.Unmarshal(nalu); err != nil {
			continue
		}
		return sps.Width(), sps.Height(), true
	}
	return 0, 0, false
}

// Close shuts the codec down and reaps the child process. ffmpeg flushes
// its remaining decoded pictures when stdin closes; they are discarded so
// the child is never left blocked on a full pipe.
func (d *FFmpegDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	close(d.quit)
	d.stdin.Close()
	if d.started {
		for range d.frames {
		}
	}
	return d.cmd.Wait()
}
