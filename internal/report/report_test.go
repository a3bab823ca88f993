package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/stack"
)

func init() {
	monitoring.SetLogger(func(string, ...interface{}) {})
}

func testSummary() *stack.SessionSummary {
	start := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	return &stack.SessionSummary{
		SessionID:    "abc123",
		Start:        start,
		End:          start.Add(time.Hour),
		FramesTotal:  120,
		JobsEnqueued: 2,
		Windows: []stack.WindowStats{
			{
				WindowStart:  start,
				WindowLength: 5 * time.Minute,
				Frames:       60,
				MeanUpdate:   2 * time.Millisecond,
				MaxUpdate:    9 * time.Millisecond,
			},
			{
				WindowStart:  start.Add(5 * time.Minute),
				WindowLength: 5 * time.Minute,
				Frames:       59,
				MeanUpdate:   3 * time.Millisecond,
				MaxUpdate:    7 * time.Millisecond,
			},
		},
	}
}

func TestWriteProducesArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, testSummary()); err != nil {
		t.Fatal(err)
	}

	html, err := os.ReadFile(filepath.Join(dir, "session_abc123.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "abc123") {
		t.Error("HTML report does not mention the session id")
	}

	png, err := os.Stat(filepath.Join(dir, "session_abc123_latency.png"))
	if err != nil {
		t.Fatal(err)
	}
	if png.Size() == 0 {
		t.Error("latency plot is empty")
	}
}

func TestWriteDisabledWithEmptyDir(t *testing.T) {
	if err := Write("", testSummary()); err != nil {
		t.Errorf("empty report dir must disable reporting, got %v", err)
	}
}

func TestWriteSkipsEmptySession(t *testing.T) {
	dir := t.TempDir()
	summary := testSummary()
	summary.Windows = nil

	if err := Write(dir, summary); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("windowless session wrote %d artifacts, want none", len(entries))
	}
}
