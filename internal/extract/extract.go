package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

const maxOperatesIn = 5

// DefaultSkip lists UI chrome labels of the attendee detail screen that are
// never field values.
var DefaultSkip = []string{
	"Introduction",
	"Interests",
	"Chat",
	"Suggest meeting",
	"Navigate up",
	"Operates in",
	"Industry",
	"Job Function",
}

// Labels are the literal field labels shown on the detail screen.
type Labels struct {
	Industry    string `yaml:"industry"`
	JobFunction string `yaml:"job_function"`
	OperatesIn  string `yaml:"operates_in"`
}

// DefaultLabels returns the labels of the English app build.
func DefaultLabels() Labels {
	return Labels{
		Industry:    "Industry",
		JobFunction: "Job Function",
		OperatesIn:  "Operates in",
	}
}

// Record is one attendee as read off the screen. Optional fields are nil
// when absent and never point to an empty string.
type Record struct {
	Name        string
	JobTitle    *string
	Company     *string
	Industry    *string
	JobFunction *string
	OperatesIn  *string
}

// Valid reports whether the record can be persisted.
func (r Record) Valid() bool {
	return r.Name != ""
}

func (r Record) MarshalZerologObject(e *zerolog.Event) {
	e.Str("name", r.Name)
	optional(e, "title", r.JobTitle)
	optional(e, "company", r.Company)
	optional(e, "industry", r.Industry)
	optional(e, "job", r.JobFunction)
	optional(e, "location", r.OperatesIn)
}

func optional(e *zerolog.Event, key string, v *string) {
	if v != nil {
		e.Str(key, *v)
	}
}

// Strategy turns a detail screen's text trace into a record. It must not
// panic on any input.
type Strategy interface {
	Extract(trace snapshot.Trace) Record
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(trace snapshot.Trace) Record

func (f StrategyFunc) Extract(trace snapshot.Trace) Record {
	return f(trace)
}

// Positional reads name, title and company from their position in the
// trace and the labelled fields from the element after each label.
type Positional struct {
	labels Labels
	skip   map[string]struct{}
}

func NewPositional(labels Labels, skip []string) *Positional {
	if labels == (Labels{}) {
		labels = DefaultLabels()
	}
	if skip == nil {
		skip = DefaultSkip
	}
	set := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		set[s] = struct{}{}
	}
	return &Positional{labels: labels, skip: set}
}

func (p *Positional) Extract(trace snapshot.Trace) Record {
	var rec Record

	// Name, title and company render as three consecutive text views.
	if i := p.nameIndex(trace); i >= 0 {
		rec.Name = trace[i]
		rec.JobTitle = p.value(trace, i+1)
		rec.Company = p.value(trace, i+2)
	}

	// A later anchor with a value overrides an earlier one.
	for i, text := range trace {
		switch text {
		case p.labels.Industry:
			overwrite(&rec.Industry, p.value(trace, i+1))
		case p.labels.JobFunction:
			overwrite(&rec.JobFunction, p.value(trace, i+1))
		case p.labels.OperatesIn:
			overwrite(&rec.OperatesIn, p.operatesIn(trace, i+1))
		}
	}
	return rec
}

func (p *Positional) nameIndex(trace snapshot.Trace) int {
	for i, text := range trace {
		if p.skipped(text) || utf8.RuneCountInString(text) <= 5 {
			continue
		}
		if n := len(strings.Fields(text)); n < 2 || n > 4 {
			continue
		}
		if lettersAndSpaces(text) {
			return i
		}
	}
	return -1
}

// value returns element i unless it is missing, empty or a skip-listed
// label.
func (p *Positional) value(trace snapshot.Trace, i int) *string {
	v := strings.TrimSpace(trace.At(i))
	if v == "" || p.skipped(v) {
		return nil
	}
	return &v
}

// operatesIn collects locations after the label until the next field label,
// keeping at most maxOperatesIn.
func (p *Positional) operatesIn(trace snapshot.Trace, from int) *string {
	var places []string
	for j := from; j < len(trace) && len(places) < maxOperatesIn; j++ {
		text := trace[j]
		if text == p.labels.Industry || text == p.labels.JobFunction {
			break
		}
		if p.skipped(text) || utf8.RuneCountInString(text) <= 2 || !lettersAndSpaces(text) {
			continue
		}
		places = append(places, text)
	}
	if len(places) == 0 {
		return nil
	}
	joined := strings.Join(places, ", ")
	return &joined
}

func overwrite(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func (p *Positional) skipped(text string) bool {
	_, ok := p.skip[text]
	return ok
}

func lettersAndSpaces(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
