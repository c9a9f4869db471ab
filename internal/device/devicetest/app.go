// Package devicetest provides an in-memory attendee app that implements
// device.Device for tests.
package devicetest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/polzovatel/attendee-scraper/internal/device"
)

// Screen names of the simulated app.
const (
	ScreenList   = "list"
	ScreenDetail = "detail"
	ScreenHome   = "home"
	ScreenPeople = "people"
	ScreenOther  = "other"
)

// Layout constants of the simulated list.
const (
	ListTop   = 200
	RowHeight = 200
	Width     = 1080
)

// Attendee is one person in the simulated app.
type Attendee struct {
	Name        string
	Title       string
	Company     string
	Industry    string
	JobFunction string
	Countries   []string
}

// Description renders the list row's accessible description.
func (a Attendee) Description() string {
	return fmt.Sprintf("Attendee, %s, %s\n%s", a.Name, a.Title, a.Company)
}

// App simulates the attendee list, detail, home and people screens.
// Pressing back on the list leaves the app, which is why callers must never
// press back blindly.
type App struct {
	mu sync.Mutex

	Attendees []Attendee
	// PageSize is how many rows the list shows at once.
	PageSize int
	// Step is how many rows one list swipe advances; defaults to
	// PageSize-1 so consecutive pages overlap by one row.
	Step int
	// DetailPage is how many detail texts fit on screen at once.
	DetailPage int
	// Header adds a non-attendee control to the list.
	Header bool
	// NoDescriptions renders rows without content-desc, as some app
	// builds do.
	NoDescriptions bool
	// DriftOnBack sends the app to the home screen instead of the list
	// when leaving the detail screen of these attendees.
	DriftOnBack map[int]bool
	// OpenElsewhere sends a tap on these attendees' rows to the home
	// screen instead of their detail screen.
	OpenElsewhere map[int]bool
	// TapErrors fails the n-th tap (1-based).
	TapErrors map[int]error
	// StuckOnOther leaves the app on an unknown screen with no way back.
	StuckOnOther bool

	screen    string
	offset    int
	current   int
	detailOff int

	Taps        int
	Backs       int
	Swipes      int
	Screenshots []string
	Opened      []string
}

// NewApp returns an app on the list screen.
func NewApp(attendees []Attendee, pageSize int) *App {
	return &App{Attendees: attendees, PageSize: pageSize, DetailPage: 100, screen: ScreenList}
}

// Screen returns the current screen name.
func (a *App) Screen() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.screen
}

// SetScreen moves the app to a screen.
func (a *App) SetScreen(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.screen = name
}

func (a *App) visibleRows() []int {
	end := a.offset + a.PageSize
	if end > len(a.Attendees) {
		end = len(a.Attendees)
	}
	var rows []int
	for i := a.offset; i < end; i++ {
		rows = append(rows, i)
	}
	return rows
}

func (a *App) Hierarchy(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><hierarchy rotation="0">`)
	b.WriteString(`<node class="android.widget.FrameLayout" bounds="[0,0][1080,2400]">`)
	switch a.screen {
	case ScreenList:
		a.writeList(&b)
	case ScreenDetail:
		a.writeDetail(&b)
	case ScreenHome:
		node(&b, "android.widget.TextView", "Welcome", "", false, 0, 200)
		node(&b, "android.widget.Button", "", "People", true, 2200, 2400)
	case ScreenPeople:
		node(&b, "android.widget.TextView", "Attendees", "", true, 200, 300)
		node(&b, "android.widget.TextView", "Speakers", "", true, 300, 400)
	default:
		node(&b, "android.widget.TextView", "Something went wrong", "", false, 0, 200)
	}
	b.WriteString(`</node></hierarchy>`)
	return []byte(b.String()), nil
}

func (a *App) writeList(b *strings.Builder) {
	b.WriteString(`<node class="androidx.recyclerview.widget.RecyclerView" scrollable="true" bounds="[0,200][1080,2200]">`)
	top := ListTop
	if a.Header {
		node(b, "android.widget.Button", "", "Filters", true, top, top+RowHeight)
		top += RowHeight
	}
	for _, i := range a.visibleRows() {
		at := a.Attendees[i]
		desc := at.Description()
		if a.NoDescriptions {
			desc = ""
		}
		fmt.Fprintf(b, `<node class="android.widget.Button" clickable="true" content-desc="%s" bounds="[0,%d][1080,%d]">`,
			attr(desc), top, top+RowHeight)
		node(b, "android.widget.TextView", "Attendee", "", false, top, top+50)
		node(b, "android.widget.TextView", at.Name, "", false, top+50, top+100)
		node(b, "android.widget.TextView", at.Title, "", false, top+100, top+150)
		b.WriteString(`</node>`)
		top += RowHeight
	}
	b.WriteString(`</node>`)
}

func (a *App) detailTexts() []string {
	at := a.Attendees[a.current]
	texts := []string{"Profile", at.Name, at.Title, at.Company, "Introduction", "Chat", "Suggest meeting"}
	if at.Industry != "" {
		texts = append(texts, "Industry", at.Industry)
	}
	if at.JobFunction != "" {
		texts = append(texts, "Job Function", at.JobFunction)
	}
	if len(at.Countries) > 0 {
		texts = append(texts, "Operates in")
		texts = append(texts, at.Countries...)
	}
	return append(texts, "Interests")
}

func (a *App) writeDetail(b *strings.Builder) {
	node(b, "android.widget.ImageButton", "", "Navigate up", true, 0, 100)
	texts := a.detailTexts()
	end := a.detailOff + a.DetailPage
	if end > len(texts) {
		end = len(texts)
	}
	y := 100
	for _, t := range texts[a.detailOff:end] {
		node(b, "android.widget.TextView", t, "", false, y, y+100)
		y += 100
	}
}

func node(b *strings.Builder, class, text, desc string, clickable bool, top, bottom int) {
	fmt.Fprintf(b, `<node class="%s" text="%s" content-desc="%s" clickable="%t" bounds="[0,%d][%d,%d]"/>`,
		class, attr(text), attr(desc), clickable, top, Width, bottom)
}

// attr escapes an attribute value the way uiautomator does, keeping line
// breaks as character references.
func attr(v string) string {
	return strings.ReplaceAll(html.EscapeString(v), "\n", "&#10;")
}

func (a *App) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Taps++
	if err, ok := a.TapErrors[a.Taps]; ok {
		return err
	}

	switch a.screen {
	case ScreenList:
		row := (y - ListTop) / RowHeight
		if a.Header {
			if row == 0 {
				return nil
			}
			row--
		}
		rows := a.visibleRows()
		if y < ListTop || row < 0 || row >= len(rows) {
			return fmt.Errorf("tap (%d,%d): %w", x, y, device.ErrNotFound)
		}
		if a.OpenElsewhere[rows[row]] {
			a.screen = ScreenHome
			return nil
		}
		a.current = rows[row]
		a.detailOff = 0
		a.screen = ScreenDetail
		a.Opened = append(a.Opened, a.Attendees[a.current].Name)
	case ScreenDetail:
		if y < 100 {
			a.leaveDetail()
		}
	case ScreenHome:
		if y >= 2200 {
			a.screen = ScreenPeople
		}
	case ScreenPeople:
		if y >= 200 && y < 300 {
			a.screen = ScreenList
		}
	}
	return nil
}

func (a *App) leaveDetail() {
	if a.DriftOnBack[a.current] {
		a.screen = ScreenHome
		return
	}
	a.screen = ScreenList
}

func (a *App) Swipe(ctx context.Context, s device.Swipe) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Swipes++
	if s.FromY <= s.ToY {
		return nil
	}
	switch a.screen {
	case ScreenList:
		step := a.Step
		if step <= 0 {
			step = a.PageSize - 1
		}
		if step <= 0 {
			step = 1
		}
		last := len(a.Attendees) - a.PageSize
		if last < 0 {
			last = 0
		}
		a.offset += step
		if a.offset > last {
			a.offset = last
		}
	case ScreenDetail:
		if a.detailOff+a.DetailPage < len(a.detailTexts()) {
			a.detailOff += a.DetailPage / 2
			if a.detailOff == 0 {
				a.detailOff = 1
			}
		}
	}
	return nil
}

func (a *App) Press(ctx context.Context, key device.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Backs++
	if key != device.KeyBack {
		a.screen = ScreenHome
		return nil
	}
	switch a.screen {
	case ScreenDetail:
		a.leaveDetail()
	case ScreenPeople:
		a.screen = ScreenHome
	case ScreenOther:
		if !a.StuckOnOther {
			a.screen = ScreenList
		}
	default:
		// Back on the list or home screen leaves the app.
		a.screen = ScreenOther
		a.StuckOnOther = true
	}
	return nil
}

func (a *App) Screenshot(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Screenshots = append(a.Screenshots, path)
	return nil
}

func (a *App) Close() error { return nil }

var _ device.Device = (*App)(nil)
