package snapshot

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/polzovatel/attendee-scraper/internal/device"
)

// Rect is an element's on-screen bounds in pixels.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Center returns the tap point of the rectangle.
func (r Rect) Center() (int, int) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Node describes one element of the screen's UI tree.
type Node struct {
	Class      string
	Text       string
	Desc       string
	ResourceID string
	Package    string
	Clickable  bool
	Scrollable bool
	Bounds     Rect
	Children   []*Node
}

// Find returns the descendants of n matching sel, in document order.
func (n *Node) Find(sel Selector) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if sel.Match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Texts returns the trimmed non-empty texts of n's descendants matching sel.
func (n *Node) Texts(sel Selector) []string {
	var out []string
	for _, c := range n.Find(sel) {
		if t := trimText(c.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Screen is one parsed capture of the device's UI tree.
type Screen struct {
	Root  *Node
	nodes []*Node
}

// Nodes returns every element in document order.
func (s *Screen) Nodes() []*Node {
	return s.nodes
}

// Find returns all elements matching sel in document order.
func (s *Screen) Find(sel Selector) []*Node {
	var out []*Node
	for _, n := range s.nodes {
		if sel.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// First returns the first element matching sel, or nil.
func (s *Screen) First(sel Selector) *Node {
	for _, n := range s.nodes {
		if sel.Match(n) {
			return n
		}
	}
	return nil
}

func (s *Screen) Exists(sel Selector) bool {
	return s.First(sel) != nil
}

type xmlNode struct {
	Class      string    `xml:"class,attr"`
	Text       string    `xml:"text,attr"`
	Desc       string    `xml:"content-desc,attr"`
	ResourceID string    `xml:"resource-id,attr"`
	Package    string    `xml:"package,attr"`
	Clickable  string    `xml:"clickable,attr"`
	Scrollable string    `xml:"scrollable,attr"`
	Bounds     string    `xml:"bounds,attr"`
	Nodes      []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// Parse decodes a uiautomator window dump.
func Parse(data []byte) (*Screen, error) {
	var h xmlHierarchy
	if err := xml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse hierarchy: %w", err)
	}
	s := &Screen{Root: &Node{Class: "hierarchy"}}
	for _, xn := range h.Nodes {
		s.Root.Children = append(s.Root.Children, s.convert(xn))
	}
	return s, nil
}

func (s *Screen) convert(xn xmlNode) *Node {
	n := &Node{
		Class:      xn.Class,
		Text:       xn.Text,
		Desc:       xn.Desc,
		ResourceID: xn.ResourceID,
		Package:    xn.Package,
		Clickable:  xn.Clickable == "true",
		Scrollable: xn.Scrollable == "true",
		Bounds:     parseBounds(xn.Bounds),
	}
	s.nodes = append(s.nodes, n)
	for _, c := range xn.Nodes {
		n.Children = append(n.Children, s.convert(c))
	}
	return n
}

// parseBounds reads the "[l,t][r,b]" form. Malformed input yields an
// empty Rect.
func parseBounds(v string) Rect {
	var r Rect
	if _, err := fmt.Sscanf(v, "[%d,%d][%d,%d]", &r.Left, &r.Top, &r.Right, &r.Bottom); err != nil {
		return Rect{}
	}
	return r
}

// Read captures and parses the device's current screen.
func Read(ctx context.Context, dev device.Device) (*Screen, error) {
	data, err := dev.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrStale, err)
	}
	return s, nil
}

// Tap taps the centre of n.
func Tap(ctx context.Context, dev device.Device, n *Node) error {
	if n == nil || n.Bounds.Empty() {
		return device.ErrNotFound
	}
	x, y := n.Bounds.Center()
	return dev.Tap(ctx, x, y)
}
