package extract

import (
	"strings"

	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

// ParseDescription reads a list row's accessible description, shaped
// "label, name, role\ncompany". Fields that are not present stay empty.
func ParseDescription(desc string) Record {
	parts := strings.Split(desc, ",")
	if len(parts) < 2 {
		return Record{}
	}
	rec := Record{Name: firstLine(parts[1])}
	if len(parts) < 3 {
		return rec
	}
	lines := strings.Split(strings.Join(parts[2:], ","), "\n")
	rec.JobTitle = nonEmpty(lines[0])
	if len(lines) > 1 {
		rec.Company = nonEmpty(strings.Join(lines[1:], " "))
	}
	return rec
}

// FromDescription returns a Strategy that ignores the trace and parses desc
// instead. Combined with Chain it fills fields the positional reading
// could not find.
func FromDescription(desc string) Strategy {
	rec := ParseDescription(desc)
	return StrategyFunc(func(snapshot.Trace) Record { return rec })
}

// Chain runs primary and fills each field it left empty from the
// fallbacks, in order. Non-empty fields are never overwritten.
func Chain(primary Strategy, fallbacks ...Strategy) Strategy {
	return StrategyFunc(func(trace snapshot.Trace) Record {
		rec := primary.Extract(trace)
		for _, fb := range fallbacks {
			if fb == nil {
				continue
			}
			other := fb.Extract(trace)
			if rec.Name == "" {
				rec.Name = other.Name
			}
			fill(&rec.JobTitle, other.JobTitle)
			fill(&rec.Company, other.Company)
			fill(&rec.Industry, other.Industry)
			fill(&rec.JobFunction, other.JobFunction)
			fill(&rec.OperatesIn, other.OperatesIn)
		}
		return rec
	})
}

func fill(dst **string, src *string) {
	if *dst == nil && src != nil && *src != "" {
		v := *src
		*dst = &v
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
