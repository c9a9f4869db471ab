package snapshot

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/device"
	"github.com/polzovatel/attendee-scraper/internal/device/devicetest"
)

const dump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" package="com.example.event" bounds="[0,0][1080,2400]">
    <node class="android.widget.ImageButton" content-desc="Navigate up" clickable="true" bounds="[0,80][140,220]"/>
    <node class="androidx.recyclerview.widget.RecyclerView" scrollable="true" resource-id="com.example.event:id/list" bounds="[0,220][1080,2200]">
      <node class="android.widget.TextView" text="  Jane   Marie Doe " bounds="[40,240][1040,300]"/>
      <node class="android.widget.TextView" text="" bounds="[40,300][1040,360]"/>
      <node class="android.widget.TextView" text="VP&#10;Sales" bounds="[40,360][1040,420]"/>
    </node>
  </node>
</hierarchy>`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(dump))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Nodes()) != 6 {
		t.Fatalf("nodes: got %d", len(s.Nodes()))
	}
	list := s.First(Selector{ResourceID: "com.example.event:id/list"})
	if list == nil || !list.Scrollable || list.Bounds != (Rect{0, 220, 1080, 2200}) {
		t.Fatalf("list node: %+v", list)
	}
	up := s.First(Selector{Desc: "Navigate up", Clickable: true})
	if up == nil {
		t.Fatal("navigate up not found")
	}
	if x, y := up.Bounds.Center(); x != 70 || y != 150 {
		t.Fatalf("center: %d,%d", x, y)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte(`<hierarchy><node`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseBounds(t *testing.T) {
	cases := map[string]Rect{
		"[1,2][3,4]":   {1, 2, 3, 4},
		"[0,0][0,0]":   {},
		"garbage":      {},
		"":             {},
		"[10,20][5,6]": {10, 20, 5, 6},
	}
	for in, want := range cases {
		if got := parseBounds(in); got != want {
			t.Errorf("parseBounds(%q) = %v, want %v", in, got, want)
		}
	}
	if !(Rect{10, 20, 5, 6}).Empty() {
		t.Error("inverted rect must be empty")
	}
}

func TestSelector(t *testing.T) {
	n := &Node{Class: "android.widget.Button", Text: " Attendees ", Clickable: true}
	cases := []struct {
		sel  Selector
		want bool
	}{
		{Selector{}, false},
		{Selector{Class: "android.widget.Button"}, true},
		{Selector{Text: "Attendees"}, true},
		{Selector{Text: "attendees"}, false},
		{Selector{Class: "android.widget.Button", Clickable: true}, true},
		{Selector{Desc: "People"}, false},
	}
	for _, c := range cases {
		if got := c.sel.Match(n); got != c.want {
			t.Errorf("%s.Match = %v, want %v", c.sel, got, c.want)
		}
	}
	if (Selector{Text: "x"}).Match(nil) {
		t.Error("nil node matched")
	}
}

func TestFromScreen(t *testing.T) {
	s, _ := Parse([]byte(dump))
	got := FromScreen(s, Selector{Class: "android.widget.TextView"})
	want := Trace{"Jane Marie Doe", "VP Sales"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMerge_PreservesPrefix(t *testing.T) {
	base := Trace{"Profile", "Jane Marie Doe", "VP Sales"}
	next := Trace{"VP Sales", "Acme Corp", "Profile", "Industry", "Acme Corp"}

	got := base.Merge(next)
	want := Trace{"Profile", "Jane Marie Doe", "VP Sales", "Acme Corp", "Industry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !reflect.DeepEqual(got[:len(base)], base) {
		t.Fatal("prefix changed")
	}
	if len(base) != 3 {
		t.Fatal("receiver modified")
	}
	if got := Trace(nil).Merge(nil); len(got) != 0 {
		t.Fatalf("empty merge: %q", got)
	}
}

func TestTraceAt(t *testing.T) {
	tr := Trace{"a", "b"}
	if tr.At(1) != "b" || tr.At(2) != "" || tr.At(-1) != "" {
		t.Fatal("At out of range")
	}
	if tr.Index("b") != 1 || tr.Index("c") != -1 {
		t.Fatal("Index")
	}
}

func TestAccumulate_RevealsBelowFold(t *testing.T) {
	app := devicetest.NewApp([]devicetest.Attendee{{
		Name: "Ann Lee", Title: "Engineer", Company: "Acme", Industry: "Software",
	}}, 5)
	app.SetScreen(devicetest.ScreenDetail)
	app.DetailPage = 4
	r := NewReader(app, ReaderConfig{Scrolls: 2, Swipe: device.Swipe{FromX: 500, FromY: 1400, ToX: 500, ToY: 1000}}, zerolog.Nop())

	first, err := r.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Accumulate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Trace{"Profile", "Ann Lee", "Engineer", "Acme", "Introduction", "Chat", "Suggest meeting", "Industry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if !reflect.DeepEqual(got[:len(first)], first) {
		t.Fatalf("first capture %q is not a prefix of %q", first, got)
	}
}

// failing returns a hierarchy once and then fails every call.
type failing struct {
	*devicetest.App
	calls int
}

func (f *failing) Hierarchy(ctx context.Context) ([]byte, error) {
	f.calls++
	if f.calls > 1 {
		return nil, device.ErrStale
	}
	return f.App.Hierarchy(ctx)
}

func TestAccumulate_KeepsPartialTrace(t *testing.T) {
	dev := &failing{App: devicetest.NewApp([]devicetest.Attendee{{Name: "Ann Lee", Title: "Engineer", Company: "Acme"}}, 5)}
	dev.SetScreen(devicetest.ScreenDetail)
	r := NewReader(dev, ReaderConfig{Scrolls: 2}, zerolog.Nop())

	got, err := r.Accumulate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) < 2 || got[1] != "Ann Lee" {
		t.Fatalf("got %q", got)
	}
}

type truncated struct {
	*devicetest.App
}

func (truncated) Hierarchy(ctx context.Context) ([]byte, error) {
	return []byte(`<hierarchy><node class="android.widget.TextView"`), nil
}

func TestRead_ParseErrorIsStale(t *testing.T) {
	if _, err := Read(context.Background(), truncated{}); !errors.Is(err, device.ErrStale) {
		t.Fatalf("err: %v", err)
	}
}

func TestTap_EmptyBounds(t *testing.T) {
	app := devicetest.NewApp(nil, 5)
	if err := Tap(context.Background(), app, &Node{}); !errors.Is(err, device.ErrNotFound) {
		t.Fatalf("err: %v", err)
	}
	if err := Tap(context.Background(), app, nil); !errors.Is(err, device.ErrNotFound) {
		t.Fatalf("nil node err: %v", err)
	}
	if app.Taps != 0 {
		t.Fatal("tapped an element without bounds")
	}
}
