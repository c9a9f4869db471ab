package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polzovatel/attendee-scraper/internal/device"
	"github.com/polzovatel/attendee-scraper/internal/extract"
	"github.com/polzovatel/attendee-scraper/internal/navigator"
	"github.com/polzovatel/attendee-scraper/internal/recovery"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

//go:embed layout.yaml
var defaultLayout []byte

// Gesture is a swipe as written in the layout file.
type Gesture struct {
	FromX      int `yaml:"from_x"`
	FromY      int `yaml:"from_y"`
	ToX        int `yaml:"to_x"`
	ToY        int `yaml:"to_y"`
	DurationMS int `yaml:"duration_ms"`
}

func (g Gesture) Swipe() device.Swipe {
	return device.Swipe{
		FromX:    g.FromX,
		FromY:    g.FromY,
		ToX:      g.ToX,
		ToY:      g.ToY,
		Duration: time.Duration(g.DurationMS) * time.Millisecond,
	}
}

type ListLayout struct {
	Container           snapshot.Selector `yaml:"container"`
	Item                snapshot.Selector `yaml:"item"`
	Text                snapshot.Selector `yaml:"text"`
	MinDescriptionParts int               `yaml:"min_description_parts"`
	Swipe               Gesture           `yaml:"swipe"`
}

type DetailLayout struct {
	Landmark snapshot.Selector `yaml:"landmark"`
	Text     snapshot.Selector `yaml:"text"`
	Scrolls  int               `yaml:"scrolls"`
	Swipe    Gesture           `yaml:"swipe"`
}

// Layout is the app-specific screen description: everything that changes
// between app builds lives here, not in code.
type Layout struct {
	List     ListLayout      `yaml:"list"`
	Detail   DetailLayout    `yaml:"detail"`
	Labels   extract.Labels  `yaml:"labels"`
	Skip     []string        `yaml:"skip"`
	Recovery []recovery.Step `yaml:"recovery"`
}

// DefaultLayout returns the embedded layout.
func DefaultLayout() Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("embedded layout: %v", err))
	}
	return l
}

// LoadLayout reads a layout file. Sections missing from the file keep
// their embedded defaults.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	l := DefaultLayout()
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return l, l.validate()
}

func ParseLayout(data []byte) (Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	return l, l.validate()
}

func (l Layout) validate() error {
	switch {
	case l.List.Container.IsZero():
		return fmt.Errorf("layout: list.container: %w", ErrInvalid)
	case l.List.Item.IsZero():
		return fmt.Errorf("layout: list.item: %w", ErrInvalid)
	case l.Detail.Landmark.IsZero():
		return fmt.Errorf("layout: detail.landmark: %w", ErrInvalid)
	}
	for i, step := range l.Recovery {
		if step.Landmark.IsZero() {
			return fmt.Errorf("layout: recovery[%d] %q has no landmark: %w", i, step.Name, ErrInvalid)
		}
		switch step.Action {
		case recovery.ActionClick, recovery.ActionBack:
		default:
			return fmt.Errorf("layout: recovery[%d] action %q: %w", i, step.Action, ErrInvalid)
		}
	}
	return nil
}

func (c Config) Navigator() navigator.Config {
	return navigator.Config{
		Container:           c.Layout.List.Container,
		Item:                c.Layout.List.Item,
		Text:                c.Layout.List.Text,
		MinDescriptionParts: c.Layout.List.MinDescriptionParts,
	}
}

func (c Config) Recovery() recovery.Config {
	return recovery.Config{
		List:       c.Layout.List.Container,
		Detail:     c.Layout.Detail.Landmark,
		Chain:      c.Layout.Recovery,
		Settle:     c.RecoveryDelay,
		BackSettle: c.ClickDelay,
	}
}

func (c Config) Reader() snapshot.ReaderConfig {
	return snapshot.ReaderConfig{
		Text:    c.Layout.Detail.Text,
		Scrolls: c.Layout.Detail.Scrolls,
		Swipe:   c.Layout.Detail.Swipe.Swipe(),
		Settle:  c.DetailScrollDelay,
	}
}

// Extractor is the positional strategy configured with the layout's
// labels and skip list.
func (c Config) Extractor() *extract.Positional {
	return extract.NewPositional(c.Layout.Labels, c.Layout.Skip)
}
