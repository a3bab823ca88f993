// Command skystack runs one night-sky stacking session: it connects to the
// configured RTSP camera, accumulates max-stack composites per window, and
// writes them out until the session deadline or the stream ends.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/nightsky-data/skystack/internal/catalog"
	"github.com/nightsky-data/skystack/internal/config"
	"github.com/nightsky-data/skystack/internal/monitoring"
	"github.com/nightsky-data/skystack/internal/persist"
	"github.com/nightsky-data/skystack/internal/report"
	"github.com/nightsky-data/skystack/internal/schedule"
	"github.com/nightsky-data/skystack/internal/source"
	"github.com/nightsky-data/skystack/internal/stack"
	"github.com/nightsky-data/skystack/internal/timeutil"
	"github.com/nightsky-data/skystack/internal/version"
)

var (
	configPath  = flag.String("config", "skystack.yaml", "Path to the YAML configuration file")
	debug       = flag.Bool("debug", false, "Enable per-frame debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Skystack] configuration: %v", err)
	}

	clock := timeutil.RealClock{}

	stackPeriod, ok := cfg.StackPeriod()
	if !ok {
		site := schedule.Site{
			LatitudeDeg:  cfg.Location.Latitude,
			LongitudeDeg: cfg.Location.Longitude,
			ElevationM:   cfg.Location.Elevation,
			SunLimitDeg:  cfg.Location.SunLimit,
		}
		stackPeriod = site.SessionDuration(clock.Now())
	}
	if stackPeriod < 0 {
		// Daylight: nothing to do tonight. Not an error.
		log.Printf("[Skystack] sun above %g°, not starting a session", cfg.Location.SunLimit)
		return
	}

	if err := run(cfg, clock, stackPeriod); err != nil {
		log.Fatalf("[Skystack] %v", err)
	}
}

func run(cfg *config.Config, clock timeutil.Clock, stackPeriod time.Duration) error {
	log.Printf("[Skystack] %s starting: stack_length=%v stack_period=%v",
		version.String(), cfg.StackLength(), stackPeriod)

	var recorder persist.CompositeRecorder
	var cat *catalog.Catalog
	if cfg.Saving.CatalogPath != "" {
		var err error
		cat, err = catalog.Open(cfg.Saving.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()
		recorder = cat
	}

	decoder, err := source.NewFFmpegDecoder()
	if err != nil {
		return err
	}
	defer decoder.Close()

	handle, err := source.DialRTSP(source.RTSPConfig{
		URL:     cfg.StreamURL(),
		Decoder: decoder,
		Clock:   clock,
	})
	if err != nil {
		return err
	}

	capture, err := source.NewCapture(source.CaptureConfig{
		Handle: handle,
		Clock:  clock,
	})
	if err != nil {
		return err
	}

	persister, err := persist.NewPersister(persist.PersisterConfig{
		Writer:       persist.PNGWriter{},
		FnameFmt:     cfg.Saving.FnameFmt,
		FnameDateFmt: cfg.Saving.FnameDateFmt,
		Recorder:     recorder,
	})
	if err != nil {
		return err
	}

	stacker, err := stack.NewStacker(stack.StackerConfig{
		Source:      capture,
		Sink:        persister,
		Clock:       clock,
		StackLength: cfg.StackLength(),
		StackPeriod: stackPeriod,
	})
	if err != nil {
		return err
	}

	if cat != nil {
		// Provisional deadline; EndSession rewrites it with the one the
		// session actually ran against.
		now := clock.Now()
		if err := cat.BeginSession(stacker.SessionID(), now, now.Add(stackPeriod)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := stacker.Run(ctx)
	if err != nil {
		return err
	}

	if cat != nil {
		if err := cat.EndSession(summary); err != nil {
			monitoring.Logf("[Skystack] catalog: %v", err)
		}
	}
	if err := report.Write(cfg.Saving.ReportDir, summary); err != nil {
		monitoring.Logf("[Skystack] report: %v", err)
	}
	return nil
}
