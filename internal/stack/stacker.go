package stack

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/timeutil"
)

// ErrStreamEnded is returned by a FrameReader when the underlying stream has
// failed or finished. It ends the session cleanly (final flush and drain)
// rather than crashing across goroutines.
var ErrStreamEnded = errors.New("stream ended")

// FrameReader is the frame-source side of the pipeline as the stacker sees
// it. Read blocks until a frame is available, the stream ends, or ctx is
// cancelled; frames arrive in capture order.
type FrameReader interface {
	Start() error
	Read(ctx context.Context) (Frame, error)
	Stop()
}

// JobSink consumes finished composites. Enqueue hands over ownership of the
// job; Stop blocks until every job enqueued before it has been processed.
type JobSink interface {
	Enqueue(job SaveJob)
	Stop()
}

// StackerConfig wires a Stacker.
type StackerConfig struct {
	// Source produces frames. Required.
	Source FrameReader
	// Sink consumes save jobs. Required.
	Sink JobSink
	// Clock is the session time source; nil selects the real clock.
	Clock timeutil.Clock
	// StackLength is the duration of one stack window.
	StackLength time.Duration
	// StackPeriod is the session duration. Must be non-negative; the
	// caller is responsible for never constructing a Stacker when the
	// scheduler said not to run.
	StackPeriod time.Duration
	// SessionID labels logs, jobs and the run catalog. Generated if empty.
	SessionID string
	// Workers bounds accumulator parallelism; <= 0 selects GOMAXPROCS.
	Workers int
}

// Stacker owns the accumulation loop: it consumes frames from the source,
// drives the accumulator and window controller, and hands finished
// composites to the sink. Shutdown order is strict: flush the partial
// window, stop the source, then stop the sink after it has drained.
type Stacker struct {
	source  FrameReader
	sink    JobSink
	clock   timeutil.Clock
	windows *WindowController
	acc     *Accumulator
	rec     latencyRecorder

	stackLength time.Duration
	stackPeriod time.Duration
	sessionID   string

	summary SessionSummary
}

// NewStacker validates the configuration and builds a Stacker. The window
// controller (and with it the session deadline) is not created until Run.
func NewStacker(cfg StackerConfig) (*Stacker, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("stacker: source is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("stacker: sink is required")
	}
	if cfg.StackLength <= 0 {
		return nil, fmt.Errorf("stacker: stack length must be positive, got %v", cfg.StackLength)
	}
	if cfg.StackPeriod < 0 {
		return nil, fmt.Errorf("stacker: negative stack period %v; session must not run", cfg.StackPeriod)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return &Stacker{
		source:      cfg.Source,
		sink:        cfg.Sink,
		clock:       clock,
		acc:         NewAccumulator(cfg.Workers),
		stackLength: cfg.StackLength,
		stackPeriod: cfg.StackPeriod,
		sessionID:   sessionID,
	}, nil
}

// SessionID returns the session identifier.
func (s *Stacker) SessionID() string {
	return s.sessionID
}

// Run executes one session: it starts the source, consumes frames until the
// session deadline passes, the stream ends, or ctx is cancelled, then runs
// the shutdown sequence. It returns the session summary for reporting.
func (s *Stacker) Run(ctx context.Context) (*SessionSummary, error) {
	start := s.clock.Now()
	s.windows = NewWindowController(s.clock, s.stackLength, s.stackPeriod)
	s.summary = SessionSummary{
		SessionID: s.sessionID,
		Start:     start,
		Deadline:  s.windows.SessionDeadline(),
	}

	if err := s.source.Start(); err != nil {
		// The sink worker is already running; stop it so a failed start
		// leaves no goroutine behind.
		s.sink.Stop()
		return nil, fmt.Errorf("stacker: start source: %w", err)
	}
	monitoring.Logf("[Stacker] session %s started: stack_length=%v deadline=%v",
		s.sessionID, s.stackLength, s.summary.Deadline.UTC().Format(time.RFC3339))

	reason := "session deadline reached"
loop:
	for {
		// Session deadline is evaluated once per iteration, before the
		// blocking read, so an idle-but-healthy stream cannot extend the
		// session past its deadline by more than one frame interval.
		if s.windows.SessionExpired() {
			break
		}

		frame, err := s.source.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrStreamEnded):
			reason = "stream ended"
			break loop
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			reason = "cancelled"
			break loop
		default:
			reason = fmt.Sprintf("read error: %v", err)
			break loop
		}

		s.summary.FramesTotal++
		switch s.windows.OnFrame(frame.Timestamp) {
		case SeedWindow:
			s.acc.Seed(frame)
		case FlushThenSeed:
			s.flushWindow()
			s.acc.Seed(frame)
		case AccumulateFrame:
			t0 := s.clock.Now()
			if err := s.acc.Update(frame); err != nil {
				// Size change mid-stream; drop the frame and keep going.
				monitoring.Logf("[Stacker] dropping frame %d: %v", frame.Seq, err)
				continue
			}
			s.rec.record(s.clock.Since(t0))
		}
	}

	s.shutdown(reason)
	s.summary.End = s.clock.Now()
	return &s.summary, nil
}

// flushWindow emits the current window as a SaveJob and records its stats.
func (s *Stacker) flushWindow() {
	frames := s.acc.FrameCount()
	windowStart := s.acc.WindowStart()

	job := s.acc.Flush(s.stackLength)
	job.ID = uuid.New().String()
	job.SessionID = s.sessionID
	s.sink.Enqueue(job)
	s.summary.JobsEnqueued++

	ws := s.rec.summarize(windowStart, s.stackLength, frames)
	s.summary.Windows = append(s.summary.Windows, ws)
	monitoring.Logf("[Stacker] window %s flushed: frames=%d mean_update=%v max_update=%v",
		windowStart.UTC().Format(time.RFC3339), frames, ws.MeanUpdate, ws.MaxUpdate)
}

// shutdown runs the strict shutdown order: (1) flush the partial window,
// (2) stop the frame source, (3) stop the sink after it has drained. This
// guarantees every accepted frame and every produced composite is either
// fully processed or explicitly flushed before Run returns.
func (s *Stacker) shutdown(reason string) {
	monitoring.Logf("[Stacker] session %s stopping: %s", s.sessionID, reason)

	if s.acc.Active() {
		s.flushWindow()
		s.windows.WindowFlushed()
	}
	s.source.Stop()
	s.sink.Stop()

	monitoring.Logf("[Stacker] session %s stopped: frames=%d windows=%d",
		s.sessionID, s.summary.FramesTotal, s.summary.JobsEnqueued)
}
