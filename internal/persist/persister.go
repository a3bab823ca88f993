// Package persist serializes composite writes: a single worker drains a
// bounded FIFO queue so file output never runs concurrently and never
// blocks the accumulation loop for longer than one enqueue.
package persist

import (
	"fmt"
	"sync"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/stack"
)

// DefaultQueueCapacity bounds the job queue. Windows are minutes long and
// produce one job each, so the queue never fills in practice; if it ever
// does, Enqueue blocks rather than dropping the composite.
const DefaultQueueCapacity = 16

// CompositeRecorder receives the outcome of every processed job. The run
// catalog implements it; a nil recorder disables recording.
type CompositeRecorder interface {
	RecordComposite(job stack.SaveJob, fname string, writeErr error)
}

// PersisterConfig configures a Persister.
type PersisterConfig struct {
	// Writer is the image-write collaborator. Required.
	Writer ImageWriter
	// FnameFmt is the output filename template. Required.
	FnameFmt string
	// FnameDateFmt optionally formats {start_time} as a Go layout.
	FnameDateFmt string
	// Recorder, when non-nil, is told about every save and failure.
	Recorder CompositeRecorder
	// QueueCapacity overrides DefaultQueueCapacity when positive.
	QueueCapacity int
}

// Persister owns the save queue and its single worker goroutine. Jobs are
// processed strictly in FIFO order; a failed write is logged and dropped,
// never retried, and never stops the worker.
type Persister struct {
	writer   ImageWriter
	tmpl     string
	dateFmt  string
	recorder CompositeRecorder

	jobs     chan stack.SaveJob
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewPersister validates the filename template and starts the worker.
func NewPersister(cfg PersisterConfig) (*Persister, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("persister: writer is required")
	}
	if cfg.FnameFmt == "" {
		return nil, fmt.Errorf("persister: filename template is required")
	}
	if err := ValidateTemplate(cfg.FnameFmt); err != nil {
		return nil, fmt.Errorf("persister: %w", err)
	}
	capQ := cfg.QueueCapacity
	if capQ <= 0 {
		capQ = DefaultQueueCapacity
	}

	p := &Persister{
		writer:   cfg.Writer,
		tmpl:     cfg.FnameFmt,
		dateFmt:  cfg.FnameDateFmt,
		recorder: cfg.Recorder,
		jobs:     make(chan stack.SaveJob, capQ),
		doneCh:   make(chan struct{}),
	}
	go p.worker()
	return p, nil
}

// Enqueue hands a job to the worker. Thread-safe. Blocks only when the
// queue is full. Must not be called after Stop.
func (p *Persister) Enqueue(job stack.SaveJob) {
	p.jobs <- job
}

// Stop closes the queue and blocks until every job enqueued before the
// call has been processed and the worker has exited.
func (p *Persister) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobs)
	})
	<-p.doneCh
}

func (p *Persister) worker() {
	defer close(p.doneCh)
	for job := range p.jobs {
		p.process(job)
	}
}

func (p *Persister) process(job stack.SaveJob) {
	fname, err := Filename(p.tmpl, p.dateFmt, job)
	if err != nil {
		monitoring.Logf("[Persister] dropping job %s: %v", job.ID, err)
		p.record(job, "", err)
		return
	}

	if err := p.writer.Write(fname, ToRGBA(job)); err != nil {
		monitoring.Logf("[Persister] failed to save %s: %v", fname, err)
		p.record(job, fname, err)
		return
	}

	monitoring.Logf("[Persister] saved %s (%d frames)", fname, job.Frames)
	p.record(job, fname, nil)
}

func (p *Persister) record(job stack.SaveJob, fname string, writeErr error) {
	if p.recorder == nil {
		return
	}
	p.recorder.RecordComposite(job, fname, writeErr)
}
