package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	defaultNavTimeout    = 30 * time.Second
	defaultBrowserDevice = "Pixel 5"
)

// BrowserOptions configures the Playwright driver.
type BrowserOptions struct {
	// URL is the attendee list of the event's web app.
	URL string
	// DeviceName is a Playwright device descriptor, e.g. "Pixel 5".
	DeviceName string
	Headless   bool
	// StorageState is an optional Playwright storage state file holding
	// a logged-in session.
	StorageState string
}

// Browser drives the event's web app in Chromium under mobile emulation and
// presents the page as a uiautomator-shaped hierarchy, so the scraper can
// run without a phone attached.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	url     string
	logger  zerolog.Logger
}

func NewBrowser(ctx context.Context, opts BrowserOptions, logger zerolog.Logger) (*Browser, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, wrap("playwright", fmt.Errorf("app url is required"))
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	name := strings.TrimSpace(opts.DeviceName)
	if name == "" {
		name = defaultBrowserDevice
	}
	ctxOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if desc, ok := pw.Devices[name]; ok && desc != nil {
		ctxOpts.Viewport = desc.Viewport
		ctxOpts.UserAgent = playwright.String(desc.UserAgent)
		ctxOpts.DeviceScaleFactor = playwright.Float(desc.DeviceScaleFactor)
		ctxOpts.IsMobile = playwright.Bool(desc.IsMobile)
		ctxOpts.HasTouch = playwright.Bool(desc.HasTouch)
	} else {
		logger.Warn().Str("device", name).Msg("unknown device descriptor, using desktop viewport")
	}
	if path := strings.TrimSpace(opts.StorageState); path != "" {
		if _, err := os.Stat(path); err == nil {
			ctxOpts.StorageStatePath = playwright.String(path)
		}
	}

	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))

	b := &Browser{pw: pw, browser: browser, context: bctx, page: page, url: opts.URL, logger: logger}
	if err := b.open(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	logger.Info().Str("device", name).Str("url", opts.URL).Msg("browser ready")
	return b, nil
}

func (b *Browser) open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.page.Goto(b.url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(defaultNavTimeout.Milliseconds())),
	})
	return wrap("playwright", err)
}

// hierarchyScript walks the visible DOM and serialises it in the
// uiautomator window-dump format. Buttons, links and role=button become
// android.widget.Button, nodes with own text become TextView, list-like
// scroll containers become RecyclerView, and aria-label is content-desc.
const hierarchyScript = `() => {
	const esc = (s) => String(s || "").replace(/&/g, "&amp;").replace(/"/g, "&quot;").replace(/</g, "&lt;").replace(/>/g, "&gt;").replace(/\n/g, "&#10;");
	const ownText = (el) => {
		let t = "";
		for (const c of el.childNodes) {
			if (c.nodeType === Node.TEXT_NODE) t += c.textContent;
		}
		return t.replace(/\s+/g, " ").trim();
	};
	const isList = (el) => {
		const s = window.getComputedStyle(el);
		const scrolls = (s.overflowY === "auto" || s.overflowY === "scroll") && el.scrollHeight > el.clientHeight;
		const role = el.getAttribute("role");
		return role === "list" || role === "feed" || el.tagName === "UL" || (scrolls && el.children.length > 2);
	};
	const isClickable = (el) => {
		const tag = el.tagName;
		const role = el.getAttribute("role");
		return tag === "BUTTON" || tag === "A" || role === "button" || role === "link" || el.hasAttribute("onclick") || window.getComputedStyle(el).cursor === "pointer";
	};
	const classOf = (el, text) => {
		if (isClickable(el)) return "android.widget.Button";
		if (isList(el)) return "androidx.recyclerview.widget.RecyclerView";
		if (text) return "android.widget.TextView";
		return "android.view.View";
	};
	const walk = (el) => {
		const r = el.getBoundingClientRect();
		const s = window.getComputedStyle(el);
		if (s.display === "none" || s.visibility === "hidden") return "";
		if (r.width === 0 && r.height === 0 && el.children.length === 0) return "";
		const text = ownText(el);
		const desc = el.getAttribute("aria-label") || "";
		const bounds = "[" + Math.round(r.left) + "," + Math.round(r.top) + "][" + Math.round(r.right) + "," + Math.round(r.bottom) + "]";
		let out = "<node class=\"" + classOf(el, text) + "\" text=\"" + esc(text) + "\" content-desc=\"" + esc(desc) + "\" resource-id=\"" + esc(el.id) + "\" clickable=\"" + isClickable(el) + "\" bounds=\"" + bounds + "\">";
		for (const c of el.children) out += walk(c);
		return out + "</node>";
	};
	return "<?xml version=\"1.0\" encoding=\"UTF-8\"?><hierarchy rotation=\"0\">" + walk(document.body) + "</hierarchy>";
}`

func (b *Browser) Hierarchy(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	val, err := b.page.Evaluate(hierarchyScript)
	if err != nil {
		return nil, wrap("playwright", fmt.Errorf("%w: %v", ErrStale, err))
	}
	xml, ok := val.(string)
	if !ok {
		return nil, wrap("playwright", fmt.Errorf("hierarchy script returned %T", val))
	}
	return []byte(xml), nil
}

func (b *Browser) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return wrap("playwright", b.page.Mouse().Click(float64(x), float64(y)))
}

// Swipe scrolls the innermost scroll container under the gesture start by
// the gesture's vertical distance. Dragging up scrolls content down, as on
// a phone.
func (b *Browser) Swipe(ctx context.Context, s Swipe) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	script := `([x, y, dy]) => {
		let el = document.elementFromPoint(x, y);
		while (el) {
			const st = window.getComputedStyle(el);
			if ((st.overflowY === "auto" || st.overflowY === "scroll") && el.scrollHeight > el.clientHeight) {
				el.scrollBy({top: dy, left: 0, behavior: "auto"});
				return true;
			}
			el = el.parentElement;
		}
		window.scrollBy(0, dy);
		return false;
	}`
	_, err := b.page.Evaluate(script, []int{s.FromX, s.FromY, s.FromY - s.ToY})
	return wrap("playwright", err)
}

func (b *Browser) Press(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch key {
	case KeyBack:
		_, err := b.page.GoBack()
		return wrap("playwright", err)
	case KeyHome:
		return b.open(ctx)
	default:
		return wrap("playwright", fmt.Errorf("unsupported key %q", key))
	}
}

func (b *Browser) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(false),
	})
	return wrap("playwright", err)
}

// SaveState writes the context's cookies and local storage to path, for
// reuse as BrowserOptions.StorageState.
func (b *Browser) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := b.context.StorageState()
	if err != nil {
		return wrap("playwright", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (b *Browser) Close() error {
	if b.page != nil {
		_ = b.page.Close()
	}
	if b.context != nil {
		_ = b.context.Close()
	}
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}
