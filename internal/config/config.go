// Package config loads run settings from the environment (optionally via a
// .env file) and the screen layout from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envDriver             = "SCRAPER_DRIVER"
	envADB                = "SCRAPER_ADB"
	envDeviceSerial       = "SCRAPER_DEVICE_SERIAL"
	envAppURL             = "SCRAPER_APP_URL"
	envBrowserDevice      = "SCRAPER_BROWSER_DEVICE"
	envHeadless           = "SCRAPER_HEADLESS"
	envStorageState       = "SCRAPER_STORAGE_STATE"
	envDBDriver           = "SCRAPER_DB_DRIVER"
	envDBDSN              = "SCRAPER_DB_DSN"
	envLogLevel           = "SCRAPER_LOG_LEVEL"
	envLogFile            = "SCRAPER_LOG_FILE"
	envMaxAttendees       = "SCRAPER_MAX_ATTENDEES"
	envPrecheck           = "SCRAPER_PRECHECK_LIST_NAMES"
	envScreenshotsOnError = "SCRAPER_SCREENSHOTS_ON_ERROR"
	envScreenshotDir      = "SCRAPER_SCREENSHOT_DIR"
	envClickDelay         = "SCRAPER_CLICK_DELAY_MS"
	envPageLoadDelay      = "SCRAPER_PAGE_LOAD_DELAY_MS"
	envDetailScrollDelay  = "SCRAPER_DETAIL_SCROLL_DELAY_MS"
	envListScrollDelay    = "SCRAPER_LIST_SCROLL_DELAY_MS"
	envRecoveryDelay      = "SCRAPER_RECOVERY_DELAY_MS"
	envLayout             = "SCRAPER_LAYOUT"
)

// Device drivers.
const (
	DriverADB     = "adb"
	DriverBrowser = "browser"
)

// ErrInvalid marks a setting that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Driver string
	// ADBPath is the adb binary; DeviceSerial picks a device when several
	// are attached.
	ADBPath      string
	DeviceSerial string

	AppURL        string
	BrowserDevice string
	Headless      bool
	StorageState  string

	DBDriver string
	DBDSN    string

	LogLevel string
	LogFile  string

	// MaxAttendees stops the run after this many saves; 0 is unlimited.
	MaxAttendees       int
	PrecheckListNames  bool
	ScreenshotsOnError bool
	ScreenshotDir      string

	ClickDelay        time.Duration
	PageLoadDelay     time.Duration
	DetailScrollDelay time.Duration
	ListScrollDelay   time.Duration
	RecoveryDelay     time.Duration

	LayoutFile string
	Layout     Layout
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv, applying defaults for
// unset variables.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env(getenv)
	cfg := Config{
		Driver:        strings.ToLower(e.str(envDriver, DriverADB)),
		ADBPath:       e.str(envADB, "adb"),
		DeviceSerial:  e.str(envDeviceSerial, ""),
		AppURL:        e.str(envAppURL, ""),
		BrowserDevice: e.str(envBrowserDevice, "Pixel 5"),
		Headless:      e.flag(envHeadless, false),
		StorageState:  e.str(envStorageState, ""),

		DBDriver: strings.ToLower(e.str(envDBDriver, "sqlite")),
		DBDSN:    e.str(envDBDSN, "attendees.db"),

		LogLevel: e.str(envLogLevel, "info"),
		LogFile:  e.str(envLogFile, "scraper.log"),

		PrecheckListNames:  e.flag(envPrecheck, true),
		ScreenshotsOnError: e.flag(envScreenshotsOnError, true),
		ScreenshotDir:      e.str(envScreenshotDir, "screenshots"),

		LayoutFile: e.str(envLayout, ""),
	}

	var err error
	if cfg.MaxAttendees, err = e.num(envMaxAttendees, 0); err != nil {
		return Config{}, err
	}
	delays := []struct {
		name string
		dst  *time.Duration
		def  int
	}{
		{envClickDelay, &cfg.ClickDelay, 300},
		{envPageLoadDelay, &cfg.PageLoadDelay, 1000},
		{envDetailScrollDelay, &cfg.DetailScrollDelay, 300},
		{envListScrollDelay, &cfg.ListScrollDelay, 1000},
		{envRecoveryDelay, &cfg.RecoveryDelay, 1000},
	}
	for _, d := range delays {
		ms, err := e.num(d.name, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = time.Duration(ms) * time.Millisecond
	}

	if cfg.LayoutFile != "" {
		if cfg.Layout, err = LoadLayout(cfg.LayoutFile); err != nil {
			return Config{}, err
		}
	} else {
		cfg.Layout = DefaultLayout()
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Driver {
	case DriverADB:
	case DriverBrowser:
		if c.AppURL == "" {
			return fmt.Errorf("%s is required for the browser driver: %w", envAppURL, ErrInvalid)
		}
	default:
		return fmt.Errorf("%s=%q: %w", envDriver, c.Driver, ErrInvalid)
	}
	if c.MaxAttendees < 0 {
		return fmt.Errorf("%s must not be negative: %w", envMaxAttendees, ErrInvalid)
	}
	return nil
}

type env func(string) string

func (e env) str(name, def string) string {
	if v := strings.TrimSpace(e(name)); v != "" {
		return v
	}
	return def
}

func (e env) flag(name string, def bool) bool {
	val := strings.TrimSpace(e(name))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func (e env) num(name string, def int) (int, error) {
	val := strings.TrimSpace(e(name))
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s=%q is not a non-negative integer: %w", name, val, ErrInvalid)
	}
	return n, nil
}
