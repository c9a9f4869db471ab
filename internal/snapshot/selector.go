package snapshot

import "strings"

// Selector matches elements by attribute. Empty fields are wildcards, but a
// Selector with every field empty matches nothing.
type Selector struct {
	Class      string `yaml:"class,omitempty"`
	Text       string `yaml:"text,omitempty"`
	Desc       string `yaml:"desc,omitempty"`
	ResourceID string `yaml:"resource_id,omitempty"`
	Clickable  bool   `yaml:"clickable,omitempty"`
}

func (s Selector) IsZero() bool {
	return s == Selector{}
}

func (s Selector) Match(n *Node) bool {
	if n == nil || s.IsZero() {
		return false
	}
	if s.Class != "" && n.Class != s.Class {
		return false
	}
	if s.Text != "" && strings.TrimSpace(n.Text) != s.Text {
		return false
	}
	if s.Desc != "" && n.Desc != s.Desc {
		return false
	}
	if s.ResourceID != "" && n.ResourceID != s.ResourceID {
		return false
	}
	if s.Clickable && !n.Clickable {
		return false
	}
	return true
}

func (s Selector) String() string {
	var parts []string
	if s.Class != "" {
		parts = append(parts, "class="+s.Class)
	}
	if s.Text != "" {
		parts = append(parts, "text="+s.Text)
	}
	if s.Desc != "" {
		parts = append(parts, "desc="+s.Desc)
	}
	if s.ResourceID != "" {
		parts = append(parts, "id="+s.ResourceID)
	}
	if s.Clickable {
		parts = append(parts, "clickable")
	}
	return "{" + strings.Join(parts, " ") + "}"
}
