package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Key is a hardware or software navigation key.
type Key string

const (
	KeyBack Key = "back"
	KeyHome Key = "home"
)

var (
	// ErrNotFound means the element was not on screen when the action ran.
	ErrNotFound = errors.New("element not found")
	// ErrStale means the screen changed between locating and acting.
	ErrStale = errors.New("stale element reference")
)

// Swipe is a straight finger drag in screen pixels.
type Swipe struct {
	FromX, FromY int
	ToX, ToY     int
	Duration     time.Duration
}

// Device exposes the minimal UI actions the scraper needs. All calls block
// until the device acknowledges the action.
type Device interface {
	// Hierarchy returns the current screen as uiautomator window-dump XML.
	Hierarchy(ctx context.Context) ([]byte, error)
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, s Swipe) error
	Press(ctx context.Context, key Key) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// IsTransient reports whether err is a local UI failure worth skipping over
// rather than aborting for.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale)
}

// Settle blocks for the UI settle interval. It deliberately ignores
// cancellation: an action in flight always gets its full delay.
func Settle(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func wrap(driver string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", driver, err)
}
