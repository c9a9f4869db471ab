package navigator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
	"github.com/polzovatel/attendee-scraper/internal/extract"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

// Config locates attendee rows on the list screen.
type Config struct {
	// Container is the scrolling list holding the rows.
	Container snapshot.Selector
	// Item matches one actionable row inside Container.
	Item snapshot.Selector
	// Text picks the row's text children, used for identity when a row
	// carries no accessible description.
	Text snapshot.Selector
	// MinDescriptionParts is how many comma-separated segments a row's
	// description needs to count as an attendee.
	MinDescriptionParts int
}

// Entry is one attendee row on the current screen.
type Entry struct {
	// ID identifies the row while it stays on screen.
	ID   string
	Desc string
	Node *snapshot.Node
	dev  device.Device
}

// Activate taps the row, which opens the attendee's detail screen.
func (e Entry) Activate(ctx context.Context) error {
	if err := snapshot.Tap(ctx, e.dev, e.Node); err != nil {
		return fmt.Errorf("activate %q: %w", shorten(e.ID, 40), err)
	}
	return nil
}

// Name is the attendee name from the row description, or "".
func (e Entry) Name() string {
	return extract.ParseDescription(e.Desc).Name
}

// Navigator enumerates attendee rows.
type Navigator struct {
	dev    device.Device
	cfg    Config
	logger zerolog.Logger
}

func New(dev device.Device, cfg Config, logger zerolog.Logger) *Navigator {
	if cfg.MinDescriptionParts <= 0 {
		cfg.MinDescriptionParts = 2
	}
	if cfg.Text.IsZero() {
		cfg.Text = snapshot.Selector{Class: "android.widget.TextView"}
	}
	return &Navigator{dev: dev, cfg: cfg, logger: logger}
}

// Entries reads the screen and returns its attendee rows.
func (n *Navigator) Entries(ctx context.Context) ([]Entry, error) {
	screen, err := snapshot.Read(ctx, n.dev)
	if err != nil {
		return nil, err
	}
	return n.EntriesIn(screen), nil
}

// EntriesIn returns the attendee rows of screen in document order. Rows
// whose description does not look like an attendee are dropped, as are
// repeated IDs.
func (n *Navigator) EntriesIn(screen *snapshot.Screen) []Entry {
	container := screen.First(n.cfg.Container)
	if container == nil {
		return nil
	}
	var out []Entry
	seen := make(map[string]struct{})
	for _, node := range container.Find(n.cfg.Item) {
		desc := strings.TrimSpace(node.Desc)
		if desc != "" && !n.looksLikeAttendee(desc) {
			n.logger.Debug().Str("desc", shorten(desc, 60)).Msg("skip non-attendee control")
			continue
		}
		id := n.identity(node)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Entry{ID: id, Desc: desc, Node: node, dev: n.dev})
	}
	return out
}

func (n *Navigator) looksLikeAttendee(desc string) bool {
	if len(strings.Split(desc, ",")) < n.cfg.MinDescriptionParts {
		return false
	}
	return extract.ParseDescription(desc).Name != ""
}

// identity prefers the description, then the second text child (the name
// in the default row layout), then the first, then the bounds.
func (n *Navigator) identity(node *snapshot.Node) string {
	if desc := strings.TrimSpace(node.Desc); desc != "" {
		return desc
	}
	texts := node.Texts(n.cfg.Text)
	switch {
	case len(texts) > 1:
		return texts[1]
	case len(texts) == 1:
		return texts[0]
	case !node.Bounds.Empty():
		return node.Bounds.String()
	}
	return ""
}

// IDs returns the identifiers of entries, in order.
func IDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// SameIDs reports whether a and b list the same rows in the same order.
func SameIDs(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func shorten(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
