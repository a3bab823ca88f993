package source

import (
	"fmt"
	"sync"

	"github.com/nightsky-data/skystack/internal/stack"
)

// ScriptedHandle is a StreamHandle fed from a fixed frame script. Tests and
// the stack-sim tool use it in place of a live camera.
type ScriptedHandle struct {
	mu     sync.Mutex
	frames []stack.Frame
	next   int
	err    error
	closed bool

	// Feed, when non-nil, is called once per ReadFrame after the script is
	// exhausted and may supply further frames.
	Feed func() (stack.Frame, error)
}

// NewScriptedHandle builds a handle that plays back the given frames in
// order and then reports endErr (end of stream).
func NewScriptedHandle(frames []stack.Frame, endErr error) *ScriptedHandle {
	if endErr == nil {
		endErr = fmt.Errorf("scripted stream exhausted")
	}
	return &ScriptedHandle{
		frames: frames,
		err:    endErr,
	}
}

// Append adds frames to the end of the script.
func (s *ScriptedHandle) Append(frames ...stack.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

func (s *ScriptedHandle) ReadFrame() (stack.Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return stack.Frame{}, fmt.Errorf("handle closed")
	}
	if s.next < len(s.frames) {
		f := s.frames[s.next]
		s.next++
		s.mu.Unlock()
		return f, nil
	}
	feed := s.Feed
	err := s.err
	s.mu.Unlock()

	if feed != nil {
		return feed()
	}
	return stack.Frame{}, err
}

func (s *ScriptedHandle) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *ScriptedHandle) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
