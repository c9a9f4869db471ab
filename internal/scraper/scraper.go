// Package scraper walks the attendee list: it opens every row, extracts the
// detail screen and stores attendees not seen before.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
	"github.com/polzovatel/attendee-scraper/internal/extract"
	"github.com/polzovatel/attendee-scraper/internal/navigator"
	"github.com/polzovatel/attendee-scraper/internal/recovery"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

// ErrStuck ends a run after consecutive failed attempts to get back to the
// attendee list.
var ErrStuck = errors.New("stuck off the attendee list")

var (
	// errNotOpened means a row tap left the list on screen.
	errNotOpened = errors.New("detail screen did not open")
	// errWrongScreen means a row tap led somewhere other than a detail
	// screen.
	errWrongScreen = errors.New("row tap left the attendee list for an unknown screen")
)

// Store is the persistence the controller needs.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	Save(ctx context.Context, rec extract.Record) (bool, error)
}

type Config struct {
	// MaxAttendees stops the run after this many saves; 0 is unlimited.
	MaxAttendees int
	// MaxRecoveryFailures consecutive failed recoveries end the run.
	MaxRecoveryFailures int
	// MaxReadFailures consecutive failed screen reads end the run.
	MaxReadFailures int
	// MaxStaleScrolls consecutive scrolls that leave the visible rows
	// unchanged mean the end of the list.
	MaxStaleScrolls int
	// PrecheckListNames skips rows whose description names a stored
	// attendee without opening them.
	PrecheckListNames  bool
	ScreenshotsOnError bool
	ScreenshotDir      string

	PageLoadDelay time.Duration
	ScrollDelay   time.Duration
	ListSwipe     device.Swipe
}

// Deps are the collaborators of a Controller. All are required.
type Deps struct {
	Device    device.Device
	Navigator *navigator.Navigator
	Detector  *recovery.Detector
	Reader    *snapshot.Reader
	Strategy  extract.Strategy
	Store     Store
}

// Stats counts what a run did.
type Stats struct {
	Saved      int
	Skipped    int
	Failed     int
	Visited    int
	Scrolls    int
	Recoveries int
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("saved", s.Saved).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("visited", s.Visited).
		Int("scrolls", s.Scrolls).
		Int("recoveries", s.Recoveries)
}

// Controller drives one traversal. It is not safe for concurrent use; only
// one session may drive a device.
type Controller struct {
	cfg    Config
	dev    device.Device
	nav    *navigator.Navigator
	det    *recovery.Detector
	reader *snapshot.Reader
	strat  extract.Strategy
	store  Store
	logger zerolog.Logger

	visited *navigator.Visited
	stats   Stats
	// Consecutive failures; all reset on progress.
	recoveryFailures int
	readFailures     int
	staleScrolls     int
}

func New(cfg Config, deps Deps, logger zerolog.Logger) *Controller {
	if cfg.MaxRecoveryFailures <= 0 {
		cfg.MaxRecoveryFailures = 2
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = 5
	}
	if cfg.MaxStaleScrolls <= 0 {
		cfg.MaxStaleScrolls = 3
	}
	if cfg.ListSwipe == (device.Swipe{}) {
		cfg.ListSwipe = device.Swipe{FromX: 500, FromY: 1500, ToX: 500, ToY: 700, Duration: 300 * time.Millisecond}
	}
	return &Controller{
		cfg:     cfg,
		dev:     deps.Device,
		nav:     deps.Navigator,
		det:     deps.Detector,
		reader:  deps.Reader,
		strat:   deps.Strategy,
		store:   deps.Store,
		logger:  logger,
		visited: navigator.NewVisited(),
	}
}

// Run traverses until the list is exhausted, MaxAttendees is reached, the
// context is cancelled or the device is stuck off the list. Saved records
// are committed as they go; the returned Stats are valid in every case.
func (c *Controller) Run(ctx context.Context) (Stats, error) {
	c.logger.Info().Int("max_attendees", c.cfg.MaxAttendees).Msg("starting traversal")
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Warn().Object("stats", c.stats).Msg("traversal interrupted")
			return c.stats, err
		}
		if c.cfg.MaxAttendees > 0 && c.stats.Saved >= c.cfg.MaxAttendees {
			c.logger.Info().Int("limit", c.cfg.MaxAttendees).Object("stats", c.stats).Msg("reached attendee limit")
			return c.stats, nil
		}

		state, screen, err := c.det.Current(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if fatal := c.readFailed(err); fatal != nil {
				return c.stats, fatal
			}
			continue
		}
		c.readFailures = 0

		if state != recovery.OnList {
			c.stats.Recoveries++
			c.logger.Warn().Stringer("state", state).Msg("not on attendee list, recovering")
			if err := c.det.ReturnToList(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				if stuck := c.recoveryFailed(ctx, err); stuck != nil {
					return c.stats, stuck
				}
			}
			continue
		}
		c.recoveryFailures = 0

		entries := c.nav.EntriesIn(screen)
		next, ok := c.visited.Next(entries)
		if !ok {
			end, err := c.scroll(ctx, entries)
			if err != nil {
				continue
			}
			if end {
				c.logger.Info().Object("stats", c.stats).Msg("reached end of attendee list")
				return c.stats, nil
			}
			continue
		}

		c.visited.Mark(next.ID)
		c.stats.Visited++
		c.process(ctx, next)
	}
}

// readFailed handles a screen read that failed before any recovery was
// attempted. Reads are retried after a settle delay.
func (c *Controller) readFailed(err error) error {
	c.readFailures++
	c.logger.Warn().Err(err).
		Bool("transient", device.IsTransient(err)).
		Int("consecutive", c.readFailures).
		Msg("read screen failed, retrying")
	if c.readFailures >= c.cfg.MaxReadFailures {
		return fmt.Errorf("read screen failed %d times: %w", c.readFailures, err)
	}
	device.Settle(c.cfg.PageLoadDelay)
	return nil
}

func (c *Controller) recoveryFailed(ctx context.Context, err error) error {
	c.recoveryFailures++
	c.logger.Error().Err(err).
		Int("consecutive", c.recoveryFailures).
		Int("max", c.cfg.MaxRecoveryFailures).
		Msg("recovery failed")
	c.screenshot(ctx, "recovery")
	if c.recoveryFailures >= c.cfg.MaxRecoveryFailures {
		c.logger.Error().Object("stats", c.stats).Msg("giving up: cannot return to attendee list")
		return fmt.Errorf("%w after %d attempts: %w", ErrStuck, c.recoveryFailures, err)
	}
	return nil
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSkipped
	outcomeNoName
)

func (c *Controller) process(ctx context.Context, entry navigator.Entry) {
	log := c.logger.With().Str("entry", shorten(entry.ID)).Logger()

	if c.cfg.PrecheckListNames {
		if name := entry.Name(); name != "" {
			exists, err := c.store.Exists(ctx, name)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("list name precheck failed, opening entry")
			case exists:
				c.stats.Skipped++
				log.Info().Str("name", name).Msg("skip: already stored")
				return
			}
		}
	}
	if ctx.Err() != nil {
		return
	}

	// Once the row is tapped the visit runs to completion so the device is
	// left on the list and the record is stored even if interrupted.
	work := context.WithoutCancel(ctx)
	out, rec, err := c.visit(work, entry)
	if err != nil {
		c.stats.Failed++
		log.Error().Err(err).Bool("transient", device.IsTransient(err)).Msg("entry failed")
		c.screenshot(work, "entry")
		if backErr := c.det.ReturnToList(work); backErr != nil {
			log.Warn().Err(backErr).Msg("local recovery failed")
		}
		return
	}

	switch out {
	case outcomeNoName:
		c.stats.Failed++
		log.Warn().Msg("no name extracted")
	case outcomeSkipped:
		c.stats.Skipped++
		log.Info().Str("name", rec.Name).Msg("skip: already stored")
	case outcomeSaved:
		c.stats.Saved++
		log.Info().Int("n", c.stats.Saved).EmbedObject(rec).Msg("saved attendee")
		if c.stats.Saved%10 == 0 {
			c.logger.Info().Object("stats", c.stats).Msg("progress")
		}
	}
}

// visit opens entry, reads its detail screen, goes back and stores the
// record when new.
func (c *Controller) visit(ctx context.Context, entry navigator.Entry) (outcome, extract.Record, error) {
	if err := entry.Activate(ctx); err != nil {
		return 0, extract.Record{}, err
	}
	device.Settle(c.cfg.PageLoadDelay)

	state, _, err := c.det.Current(ctx)
	if err != nil {
		return 0, extract.Record{}, err
	}
	switch state {
	case recovery.OnList:
		return 0, extract.Record{}, errNotOpened
	case recovery.Drifted:
		return 0, extract.Record{}, errWrongScreen
	}

	trace, err := c.reader.Accumulate(ctx)
	if err != nil {
		return 0, extract.Record{}, fmt.Errorf("read detail: %w", err)
	}
	rec := extract.Chain(c.strat, extract.FromDescription(entry.Desc)).Extract(trace)

	if err := c.det.ReturnToList(ctx); err != nil {
		// The record is good; the main loop recovers the screen.
		c.logger.Warn().Err(err).Msg("return to list failed")
	}

	if !rec.Valid() {
		return outcomeNoName, rec, nil
	}
	exists, err := c.store.Exists(ctx, rec.Name)
	if err != nil {
		return 0, rec, err
	}
	if exists {
		return outcomeSkipped, rec, nil
	}
	saved, err := c.store.Save(ctx, rec)
	if err != nil {
		return 0, rec, err
	}
	if !saved {
		return outcomeSkipped, rec, nil
	}
	return outcomeSaved, rec, nil
}

// scroll swipes the list and reports whether the end has been reached:
// no rows after the swipe, or the same rows MaxStaleScrolls times running.
func (c *Controller) scroll(ctx context.Context, before []navigator.Entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.logger.Info().Int("visited", c.visited.Len()).Msg("scrolling attendee list")
	if err := c.dev.Swipe(ctx, c.cfg.ListSwipe); err != nil {
		// A failed swipe reveals nothing new.
		c.staleScrolls++
		c.logger.Warn().Err(err).Int("stale", c.staleScrolls).Msg("list swipe failed")
		return c.staleScrolls >= c.cfg.MaxStaleScrolls, nil
	}
	c.stats.Scrolls++
	device.Settle(c.cfg.ScrollDelay)

	state, screen, err := c.det.Current(ctx)
	if err != nil {
		return false, err
	}
	if state != recovery.OnList {
		// Let the main loop recover before judging the list.
		return false, nil
	}
	after := c.nav.EntriesIn(screen)
	if len(after) == 0 {
		return true, nil
	}
	if navigator.SameIDs(before, after) {
		c.staleScrolls++
		c.logger.Debug().Int("stale", c.staleScrolls).Msg("scroll revealed no new rows")
		return c.staleScrolls >= c.cfg.MaxStaleScrolls, nil
	}
	c.staleScrolls = 0
	c.visited.Reset()
	return false, nil
}

func (c *Controller) screenshot(ctx context.Context, prefix string) {
	if !c.cfg.ScreenshotsOnError {
		return
	}
	dir := c.cfg.ScreenshotDir
	if dir == "" {
		dir = "screenshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logger.Warn().Err(err).Msg("screenshot dir")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, time.Now().Format("20060102_150405.000")))
	if err := c.dev.Screenshot(ctx, path); err != nil {
		c.logger.Warn().Err(err).Msg("screenshot failed")
		return
	}
	c.logger.Info().Str("path", path).Msg("saved error screenshot")
}

func shorten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 48 {
		return string(r[:48]) + "..."
	}
	return s
}
