package navigator

// Visited tracks the rows already opened in the current view. Reset it
// whenever a scroll changes the visible rows.
type Visited struct {
	ids map[string]struct{}
}

func NewVisited() *Visited {
	return &Visited{ids: make(map[string]struct{})}
}

func (v *Visited) Seen(id string) bool {
	_, ok := v.ids[id]
	return ok
}

func (v *Visited) Mark(id string) {
	v.ids[id] = struct{}{}
}

func (v *Visited) Reset() {
	clear(v.ids)
}

func (v *Visited) Len() int {
	return len(v.ids)
}

// Next returns the first entry not yet visited.
func (v *Visited) Next(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if !v.Seen(e.ID) {
			return e, true
		}
	}
	return Entry{}, false
}
