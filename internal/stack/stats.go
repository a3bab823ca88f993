package stack

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// WindowStats summarises the update-latency telemetry for one flushed window.
// This is diagnostic output only; it has no bearing on composite correctness.
type WindowStats struct {
	WindowStart  time.Time
	WindowLength time.Duration
	Frames       int
	MeanUpdate   time.Duration
	StdDevUpdate time.Duration
	MaxUpdate    time.Duration
}

// SessionSummary collects per-window telemetry for a whole session. The
// report package renders it after shutdown.
type SessionSummary struct {
	SessionID    string
	Start        time.Time
	Deadline     time.Time
	End          time.Time
	FramesTotal  int
	JobsEnqueued int
	Windows      []WindowStats
}

// latencyRecorder accumulates per-frame update durations for the current
// window. Touched only by the accumulation loop.
type latencyRecorder struct {
	seconds []float64
	max     time.Duration
}

func (r *latencyRecorder) record(d time.Duration) {
	r.seconds = append(r.seconds, d.Seconds())
	if d > r.max {
		r.max = d
	}
}

// summarize produces the window's stats and resets the recorder.
func (r *latencyRecorder) summarize(windowStart time.Time, windowLength time.Duration, frames int) WindowStats {
	ws := WindowStats{
		WindowStart:  windowStart,
		WindowLength: windowLength,
		Frames:       frames,
		MaxUpdate:    r.max,
	}
	if len(r.seconds) > 0 {
		mean, std := stat.MeanStdDev(r.seconds, nil)
		ws.MeanUpdate = time.Duration(mean * float64(time.Second))
		if len(r.seconds) > 1 {
			ws.StdDevUpdate = time.Duration(std * float64(time.Second))
		}
	}
	r.seconds = r.seconds[:0]
	r.max = 0
	return ws
}
