// Command inspect dumps the current screen of the configured device so
// selectors for a new app build can be worked out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/polzovatel/attendee-scraper/internal/config"
	"github.com/polzovatel/attendee-scraper/internal/logging"
	"github.com/polzovatel/attendee-scraper/internal/navigator"
	"github.com/polzovatel/attendee-scraper/internal/recovery"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

// stateSaver is implemented by drivers holding a web session.
type stateSaver interface {
	SaveState(ctx context.Context, path string) error
}

func main() {
	out := flag.String("out", "hierarchy.xml", "Where to write the raw hierarchy dump")
	shot := flag.Bool("screenshot", false, "Also save a screenshot next to the dump")
	saveState := flag.String("save-state", "", "Browser driver: save the session storage state to this path")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, closer, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dev, err := cfg.Connect(ctx, log.With().Str("comp", "device").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("device connect")
	}
	defer dev.Close()

	data, err := dev.Hierarchy(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("read hierarchy")
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write dump")
	}
	logger.Info().Str("path", *out).Int("bytes", len(data)).Msg("hierarchy saved")

	if *shot {
		path := filepath.Join(filepath.Dir(*out), "screen.png")
		if err := dev.Screenshot(ctx, path); err != nil {
			logger.Error().Err(err).Msg("screenshot")
		} else {
			logger.Info().Str("path", path).Msg("screenshot saved")
		}
	}

	if *saveState != "" {
		if saver, ok := dev.(stateSaver); !ok {
			logger.Warn().Str("driver", cfg.Driver).Msg("driver has no session state to save")
		} else if err := saver.SaveState(ctx, *saveState); err != nil {
			logger.Error().Err(err).Str("path", *saveState).Msg("save storage state")
		} else {
			logger.Info().Str("path", *saveState).Msg("storage state saved")
		}
	}

	screen, err := snapshot.Parse(data)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse hierarchy")
	}
	state := recovery.New(dev, cfg.Recovery(), logger).Detect(screen)
	entries := navigator.New(dev, cfg.Navigator(), logger).EntriesIn(screen)

	fmt.Printf("screen: %s\n", state)
	fmt.Printf("nodes: %d\n", len(screen.Nodes()))
	fmt.Printf("attendee rows: %d\n", len(entries))
	for i, e := range entries {
		fmt.Printf("  %2d. %-30q %s\n", i+1, e.Name(), e.Node.Bounds)
	}
	for _, step := range cfg.Layout.Recovery {
		fmt.Printf("landmark %-16s %-5t %s\n", step.Name, screen.Exists(step.Landmark), step.Landmark)
	}
	if state == recovery.OnDetail {
		trace := snapshot.FromScreen(screen, cfg.Layout.Detail.Text)
		rec := cfg.Extractor().Extract(trace)
		fmt.Printf("detail texts: %q\n", []string(trace))
		fmt.Printf("extracted name: %q\n", rec.Name)
	}
}
