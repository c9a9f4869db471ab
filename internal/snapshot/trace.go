package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
)

// Trace is the visible text of a screen in reading order.
type Trace []string

// FromScreen collects the trimmed, non-empty text of every element matching
// sel, in document order. Repeated strings are kept.
func FromScreen(s *Screen, sel Selector) Trace {
	var out Trace
	for _, n := range s.Find(sel) {
		if t := trimText(n.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Merge returns t extended with the entries of next that t does not already
// contain, in next's order. t is never modified or reordered.
func (t Trace) Merge(next Trace) Trace {
	out := make(Trace, len(t), len(t)+len(next))
	copy(out, t)
	seen := make(map[string]struct{}, len(t)+len(next))
	for _, s := range t {
		seen[s] = struct{}{}
	}
	for _, s := range next {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Index returns the position of the first element equal to s, or -1.
func (t Trace) Index(s string) int {
	for i, v := range t {
		if v == s {
			return i
		}
	}
	return -1
}

// At returns element i, or "" when i is out of range.
func (t Trace) At(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// ReaderConfig tunes below-the-fold accumulation on detail screens.
type ReaderConfig struct {
	// Text picks the text-bearing elements, android.widget.TextView by
	// default.
	Text Selector
	// Scrolls is how many small swipes follow the first capture.
	Scrolls int
	Swipe   device.Swipe
	Settle  time.Duration
}

// Reader captures text traces from the live device.
type Reader struct {
	dev    device.Device
	cfg    ReaderConfig
	logger zerolog.Logger
}

func NewReader(dev device.Device, cfg ReaderConfig, logger zerolog.Logger) *Reader {
	if cfg.Text.IsZero() {
		cfg.Text = Selector{Class: "android.widget.TextView"}
	}
	if cfg.Scrolls < 0 {
		cfg.Scrolls = 0
	}
	return &Reader{dev: dev, cfg: cfg, logger: logger}
}

// Capture reads the current screen once.
func (r *Reader) Capture(ctx context.Context) (Trace, error) {
	s, err := Read(ctx, r.dev)
	if err != nil {
		return nil, err
	}
	return FromScreen(s, r.cfg.Text), nil
}

// Accumulate captures the screen, then swipes a little and merges further
// captures to reveal fields below the fold. Only the first capture can
// fail the call; later failures keep what was gathered.
func (r *Reader) Accumulate(ctx context.Context) (Trace, error) {
	trace, err := r.Capture(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Strs("texts", head(trace, 15)).Msg("texts before scroll")
	for i := 0; i < r.cfg.Scrolls; i++ {
		if err := r.dev.Swipe(ctx, r.cfg.Swipe); err != nil {
			r.logger.Debug().Err(err).Int("scroll", i+1).Msg("detail swipe failed")
			break
		}
		device.Settle(r.cfg.Settle)
		next, err := r.Capture(ctx)
		if err != nil {
			r.logger.Debug().Err(err).Int("scroll", i+1).Msg("detail capture failed")
			break
		}
		trace = trace.Merge(next)
	}
	r.logger.Debug().Int("texts", len(trace)).Msg("total texts collected")
	return trace, nil
}

func head(t Trace, n int) []string {
	if len(t) < n {
		n = len(t)
	}
	return t[:n]
}

// trimText trims s and collapses inner runs of whitespace; uiautomator
// keeps hard line breaks inside a single TextView.
func trimText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
