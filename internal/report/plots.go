package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nightsky-data/skystack/internal/stack"
)

// writeLatencyPlot saves a PNG of mean and max frame-update latency per
// window over the session.
func writeLatencyPlot(fname string, summary *stack.SessionSummary) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame update latency, session %s", summary.SessionID)
	p.X.Label.Text = "window index"
	p.Y.Label.Text = "latency (ms)"

	meanPts := make(plotter.XYs, 0, len(summary.Windows))
	maxPts := make(plotter.XYs, 0, len(summary.Windows))
	for i, w := range summary.Windows {
		meanPts = append(meanPts, plotter.XY{
			X: float64(i),
			Y: float64(w.MeanUpdate.Microseconds()) / 1000,
		})
		maxPts = append(maxPts, plotter.XY{
			X: float64(i),
			Y: float64(w.MaxUpdate.Microseconds()) / 1000,
		})
	}

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return fmt.Errorf("report: mean line: %w", err)
	}
	meanLine.Width = vg.Points(1)
	p.Add(meanLine)
	p.Legend.Add("mean", meanLine)

	maxLine, err := plotter.NewLine(maxPts)
	if err != nil {
		return fmt.Errorf("report: max line: %w", err)
	}
	maxLine.Width = vg.Points(1)
	maxLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(maxLine)
	p.Legend.Add("max", maxLine)

	if err := p.Save(14*vg.Inch, 6*vg.Inch, fname); err != nil {
		return fmt.Errorf("report: save %s: %w", fname, err)
	}
	return nil
}
