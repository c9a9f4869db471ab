package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/polzovatel/attendee-scraper/internal/recovery"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != DriverADB || cfg.DBDriver != "sqlite" || cfg.DBDSN != "attendees.db" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if !cfg.ScreenshotsOnError || !cfg.PrecheckListNames || cfg.MaxAttendees != 0 {
		t.Fatalf("behaviour defaults: %+v", cfg)
	}
	if cfg.ClickDelay != 300*time.Millisecond || cfg.PageLoadDelay != time.Second {
		t.Fatalf("delays: click=%v page=%v", cfg.ClickDelay, cfg.PageLoadDelay)
	}
	if cfg.Layout.List.Container.Class != "androidx.recyclerview.widget.RecyclerView" {
		t.Fatalf("layout: %+v", cfg.Layout.List)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"SCRAPER_DRIVER":               "Browser",
		"SCRAPER_APP_URL":              "https://app.example.com/event/people",
		"SCRAPER_HEADLESS":             "yes",
		"SCRAPER_MAX_ATTENDEES":        "25",
		"SCRAPER_SCREENSHOTS_ON_ERROR": "off",
		"SCRAPER_CLICK_DELAY_MS":       "50",
		"SCRAPER_DB_DRIVER":            "MySQL",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Driver != DriverBrowser || !cfg.Headless || cfg.MaxAttendees != 25 {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.ScreenshotsOnError {
		t.Fatal("screenshots should be off")
	}
	if cfg.ClickDelay != 50*time.Millisecond {
		t.Fatalf("click delay: %v", cfg.ClickDelay)
	}
	if cfg.DBDriver != "mysql" {
		t.Fatalf("db driver: %q", cfg.DBDriver)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":      {"SCRAPER_DRIVER": "ios"},
		"browser without url": {"SCRAPER_DRIVER": "browser"},
		"bad number":          {"SCRAPER_MAX_ATTENDEES": "ten"},
		"negative delay":      {"SCRAPER_PAGE_LOAD_DELAY_MS": "-5"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromEnv(envMap(env)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err: got %v", err)
			}
		})
	}
}

func TestDefaultLayout(t *testing.T) {
	l := DefaultLayout()
	if len(l.Recovery) != 2 || l.Recovery[0].Action != recovery.ActionClick {
		t.Fatalf("recovery: %+v", l.Recovery)
	}
	if l.Detail.Scrolls != 2 || l.Detail.Swipe.Swipe().Duration != 300*time.Millisecond {
		t.Fatalf("detail: %+v", l.Detail)
	}
	if l.Labels.OperatesIn != "Operates in" || len(l.Skip) != 8 {
		t.Fatalf("labels/skip: %+v %v", l.Labels, l.Skip)
	}
}

func TestLoadLayout_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	data := []byte(`
recovery:
  - name: menu
    landmark: {text: Menu}
    action: click
  - name: attendees
    landmark: {text: attendees}
    action: click
labels:
  industry: Branche
  job_function: Funktion
  operates_in: Tätig in
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := LoadLayout(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Recovery[0].Landmark.Text != "Menu" || len(l.Recovery) != 2 {
		t.Fatalf("recovery: %+v", l.Recovery)
	}
	if l.Labels.Industry != "Branche" {
		t.Fatalf("labels: %+v", l.Labels)
	}
	if l.List.Item.Class != "android.widget.Button" {
		t.Fatalf("list item lost its default: %+v", l.List.Item)
	}
}

func TestLoadLayout_RejectsBadAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	data := []byte("recovery:\n  - name: x\n    landmark: {text: Home}\n    action: swipe\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLayout(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err: got %v", err)
	}
}

func TestConverters(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"SCRAPER_RECOVERY_DELAY_MS": "10"}))
	if err != nil {
		t.Fatal(err)
	}
	rc := cfg.Recovery()
	if rc.Settle != 10*time.Millisecond || rc.BackSettle != cfg.ClickDelay || len(rc.Chain) != 2 {
		t.Fatalf("recovery config: %+v", rc)
	}
	if nc := cfg.Navigator(); nc.MinDescriptionParts != 2 || !nc.Item.Clickable {
		t.Fatalf("navigator config: %+v", nc)
	}
	if r := cfg.Reader(); r.Scrolls != 2 || r.Swipe.FromY != 1400 {
		t.Fatalf("reader config: %+v", r)
	}
}
