package config

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
)

// Connect opens the configured device driver.
func (c Config) Connect(ctx context.Context, logger zerolog.Logger) (device.Device, error) {
	if c.Driver == DriverBrowser {
		b, err := device.NewBrowser(ctx, device.BrowserOptions{
			URL:          c.AppURL,
			DeviceName:   c.BrowserDevice,
			Headless:     c.Headless,
			StorageState: c.StorageState,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	d, err := device.ConnectADB(ctx, device.NewShell(c.ADBPath, c.DeviceSerial), logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}
