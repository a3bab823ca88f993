// Package report renders an end-of-session summary: an HTML chart of
// frames and update latency per window, and a PNG latency plot. Reporting
// is best-effort output; it never fails the session.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/stack"
)

// Write renders every report artifact for the session into dir. An empty
// dir disables reporting entirely.
func Write(dir string, summary *stack.SessionSummary) error {
	if dir == "" {
		return nil
	}
	if len(summary.Windows) == 0 {
		monitoring.Logf("[Report] session %s produced no windows, skipping report", summary.SessionID)
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create %s: %w", dir, err)
	}

	htmlFile := filepath.Join(dir, fmt.Sprintf("session_%s.html", summary.SessionID))
	if err := writeSessionChart(htmlFile, summary); err != nil {
		return err
	}
	pngFile := filepath.Join(dir, fmt.Sprintf("session_%s_latency.png", summary.SessionID))
	if err := writeLatencyPlot(pngFile, summary); err != nil {
		return err
	}

	monitoring.Logf("[Report] session %s report written to %s", summary.SessionID, dir)
	return nil
}

// writeSessionChart renders the per-window bar/line chart as a standalone
// HTML page.
func writeSessionChart(fname string, summary *stack.SessionSummary) error {
	labels := make([]string, len(summary.Windows))
	frames := make([]opts.BarData, len(summary.Windows))
	latency := make([]opts.LineData, len(summary.Windows))
	for i, w := range summary.Windows {
		labels[i] = w.WindowStart.UTC().Format("15:04:05")
		frames[i] = opts.BarData{Value: w.Frames}
		latency[i] = opts.LineData{Value: float64(w.MeanUpdate.Microseconds()) / 1000}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Skystack Session",
			Width:     "1200px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Max-stack session",
			Subtitle: fmt.Sprintf("session=%s start=%s frames=%d windows=%d",
				summary.SessionID,
				summary.Start.UTC().Format(time.RFC3339),
				summary.FramesTotal, len(summary.Windows)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "window start (UTC)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "frames"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("frames", frames)

	line := charts.NewLine()
	line.SetXAxis(labels)
	line.AddSeries("mean update (ms)", latency)
	bar.Overlap(line)

	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", fname, err)
	}
	defer f.Close()
	if err := bar.Render(f); err != nil {
		return fmt.Errorf("report: render %s: %w", fname, err)
	}
	return nil
}
