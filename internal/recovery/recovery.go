package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

// ErrUnrecoverable means no known landmark led back to the list.
var ErrUnrecoverable = errors.New("no recovery landmark on screen")

// State is where the traversal currently is.
type State int

const (
	Drifted State = iota
	OnList
	OnDetail
)

func (s State) String() string {
	switch s {
	case OnList:
		return "list"
	case OnDetail:
		return "detail"
	default:
		return "drifted"
	}
}

// Action is what a recovery step does once its landmark is found.
type Action string

const (
	// ActionClick taps the landmark itself.
	ActionClick Action = "click"
	// ActionBack presses back. Only use it on screens where back is known
	// not to leave the app.
	ActionBack Action = "back"
)

// Step is one link of the navigation chain back to the attendee list.
type Step struct {
	Name     string            `yaml:"name"`
	Landmark snapshot.Selector `yaml:"landmark"`
	Action   Action            `yaml:"action"`
}

// Config describes the screens the detector tells apart.
type Config struct {
	// List is present only on the attendee list.
	List snapshot.Selector
	// Detail is present only on an attendee's detail screen.
	Detail snapshot.Selector
	// Chain is tried in order; each step runs at most once per recovery.
	Chain  []Step
	Settle time.Duration
	// BackSettle is the wait after a back press; Settle when zero.
	BackSettle time.Duration
	// BackAttempts bounds back presses when leaving a detail screen.
	BackAttempts int
}

// Detector infers the current screen from landmarks and walks the recovery
// chain back to the list.
type Detector struct {
	dev    device.Device
	cfg    Config
	logger zerolog.Logger
}

func New(dev device.Device, cfg Config, logger zerolog.Logger) *Detector {
	if cfg.BackAttempts <= 0 {
		cfg.BackAttempts = 2
	}
	if cfg.BackSettle <= 0 {
		cfg.BackSettle = cfg.Settle
	}
	return &Detector{dev: dev, cfg: cfg, logger: logger}
}

// Detect classifies screen. The list landmark wins over the detail one.
func (d *Detector) Detect(screen *snapshot.Screen) State {
	switch {
	case screen == nil:
		return Drifted
	case screen.Exists(d.cfg.List):
		return OnList
	case screen.Exists(d.cfg.Detail):
		return OnDetail
	default:
		return Drifted
	}
}

// Current reads the device and classifies the screen.
func (d *Detector) Current(ctx context.Context) (State, *snapshot.Screen, error) {
	screen, err := snapshot.Read(ctx, d.dev)
	if err != nil {
		return Drifted, nil, err
	}
	return d.Detect(screen), screen, nil
}

// Recover walks the chain until the list is visible. It returns the number
// of navigation actions performed. Each pass re-reads the screen and runs
// the first unused step whose landmark is present; when none is, it gives
// up with ErrUnrecoverable rather than guessing.
func (d *Detector) Recover(ctx context.Context) (int, error) {
	used := make([]bool, len(d.cfg.Chain))
	actions := 0
	for {
		state, screen, err := d.Current(ctx)
		if err != nil {
			return actions, fmt.Errorf("recover: %w", err)
		}
		if state == OnList {
			if actions > 0 {
				d.logger.Info().Int("actions", actions).Msg("navigated back to attendee list")
			}
			return actions, nil
		}

		idx, node := d.nextStep(screen, used)
		if idx < 0 {
			return actions, fmt.Errorf("recover from %s screen after %d actions: %w", state, actions, ErrUnrecoverable)
		}
		used[idx] = true
		step := d.cfg.Chain[idx]
		d.logger.Warn().Str("step", step.Name).Str("action", string(step.Action)).Str("landmark", step.Landmark.String()).Msg("recovery step")
		if err := d.perform(ctx, step, node); err != nil {
			return actions, fmt.Errorf("recover step %s: %w", step.Name, err)
		}
		actions++
		device.Settle(d.cfg.Settle)
	}
}

func (d *Detector) nextStep(screen *snapshot.Screen, used []bool) (int, *snapshot.Node) {
	for i, step := range d.cfg.Chain {
		if used[i] {
			continue
		}
		if node := screen.First(step.Landmark); node != nil {
			return i, node
		}
	}
	return -1, nil
}

func (d *Detector) perform(ctx context.Context, step Step, landmark *snapshot.Node) error {
	switch step.Action {
	case ActionClick, "":
		return snapshot.Tap(ctx, d.dev, landmark)
	case ActionBack:
		return d.dev.Press(ctx, device.KeyBack)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// ReturnToList leaves a detail screen. Back is pressed only while the
// detail landmark is visible; any other screen goes through Recover.
func (d *Detector) ReturnToList(ctx context.Context) error {
	for attempt := 0; attempt < d.cfg.BackAttempts; attempt++ {
		state, _, err := d.Current(ctx)
		if err != nil {
			return err
		}
		switch state {
		case OnList:
			return nil
		case OnDetail:
			if err := d.dev.Press(ctx, device.KeyBack); err != nil {
				return fmt.Errorf("back from detail: %w", err)
			}
			device.Settle(d.cfg.BackSettle)
			continue
		}
		break
	}
	_, err := d.Recover(ctx)
	return err
}
