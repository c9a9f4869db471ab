package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/polzovatel/attendee-scraper/internal/config"
	"github.com/polzovatel/attendee-scraper/internal/logging"
	"github.com/polzovatel/attendee-scraper/internal/navigator"
	"github.com/polzovatel/attendee-scraper/internal/recovery"
	"github.com/polzovatel/attendee-scraper/internal/scraper"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
	"github.com/polzovatel/attendee-scraper/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With().Str("run", runID).Logger()
	log.Logger = logger

	st, err := store.Open(ctx, store.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN, RunID: runID},
		log.With().Str("comp", "store").Logger())
	if err != nil {
		logger.Error().Err(err).Msg("store init")
		return 1
	}
	defer st.Close()

	dev, err := cfg.Connect(ctx, log.With().Str("comp", "device").Logger())
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Driver).Msg("device connect")
		return 1
	}
	defer dev.Close()

	before, err := st.Count(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("count stored attendees")
		return 1
	}
	logger.Info().Str("driver", cfg.Driver).Int("stored", before).Msg("scraper starting")

	ctrl := scraper.New(
		scraper.Config{
			MaxAttendees:       cfg.MaxAttendees,
			PrecheckListNames:  cfg.PrecheckListNames,
			ScreenshotsOnError: cfg.ScreenshotsOnError,
			ScreenshotDir:      cfg.ScreenshotDir,
			PageLoadDelay:      cfg.PageLoadDelay,
			ScrollDelay:        cfg.ListScrollDelay,
			ListSwipe:          cfg.Layout.List.Swipe.Swipe(),
		},
		scraper.Deps{
			Device:    dev,
			Navigator: navigator.New(dev, cfg.Navigator(), log.With().Str("comp", "nav").Logger()),
			Detector:  recovery.New(dev, cfg.Recovery(), log.With().Str("comp", "recovery").Logger()),
			Reader:    snapshot.NewReader(dev, cfg.Reader(), log.With().Str("comp", "snapshot").Logger()),
			Strategy:  cfg.Extractor(),
			Store:     st,
		},
		log.With().Str("comp", "scraper").Logger(),
	)

	stats, err := ctrl.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Warn().Msg("interrupted, stored records are kept")
	case errors.Is(err, scraper.ErrStuck):
		logger.Error().Err(err).Msg("run ended off the attendee list")
	default:
		logger.Error().Err(err).Msg("run finished with error")
	}

	// The signal context may be cancelled; the final count still runs.
	after, err := st.Count(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn().Err(err).Msg("count stored attendees")
	}
	logger.Info().Object("stats", stats).Int("stored", after).Msg("scraper finished")
	return 0
}
