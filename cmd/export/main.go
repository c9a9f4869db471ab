// Command export writes the stored attendees as CSV or JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/polzovatel/attendee-scraper/internal/config"
	"github.com/polzovatel/attendee-scraper/internal/logging"
	"github.com/polzovatel/attendee-scraper/internal/store"
)

func main() {
	format := flag.String("format", "csv", "Output format: csv or json")
	out := flag.String("out", "", "Output file (default stdout)")
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

	write := store.WriteCSV
	switch strings.ToLower(strings.TrimSpace(*format)) {
	case "csv":
	case "json":
		write = store.WriteJSON
	default:
		logger.Fatal().Str("format", *format).Msg("unknown format")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN}, log.With().Str("comp", "store").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("store init")
	}
	defer st.Close()

	attendees, err := st.List(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list attendees")
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal().Err(err).Msg("create output")
		}
		defer f.Close()
		w = f
	}
	if err := write(w, attendees); err != nil {
		logger.Fatal().Err(err).Msg("write export")
	}
	logger.Info().Int("attendees", len(attendees)).Str("format", *format).Msg("export done")
}
