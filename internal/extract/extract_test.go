package extract

import (
	"strings"
	"testing"

	"github.com/polzovatel/attendee-scraper/internal/snapshot"
)

func str(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestPositional_FullProfile(t *testing.T) {
	trace := snapshot.Trace{"Header", "Jane Marie Doe", "Senior Engineer", "Acme Corp", "Industry", "Tech", "Job Function", "R&D"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if rec.Name != "Jane Marie Doe" {
		t.Errorf("name: got %q", rec.Name)
	}
	checks := []struct {
		field string
		got   *string
		want  string
	}{
		{"job_title", rec.JobTitle, "Senior Engineer"},
		{"company", rec.Company, "Acme Corp"},
		{"industry", rec.Industry, "Tech"},
		{"job_function", rec.JobFunction, "R&D"},
	}
	for _, c := range checks {
		if str(c.got) != c.want {
			t.Errorf("%s: got %s, want %q", c.field, str(c.got), c.want)
		}
	}
	if rec.OperatesIn != nil {
		t.Errorf("operates_in: got %q, want nil", *rec.OperatesIn)
	}
}

func TestPositional_OperatesInStopsAtLabel(t *testing.T) {
	trace := snapshot.Trace{"Operates in", "France", "Spain", "Industry", "Tech"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if got := str(rec.OperatesIn); got != "France, Spain" {
		t.Fatalf("operates_in: got %q", got)
	}
	if got := str(rec.Industry); got != "Tech" {
		t.Fatalf("industry: got %q", got)
	}
	if rec.Name != "" {
		t.Fatalf("name: got %q, want empty", rec.Name)
	}
}

func TestPositional_OperatesInCap(t *testing.T) {
	trace := snapshot.Trace{"Operates in", "France", "Spain", "Italy", "Germany", "Poland", "Norway", "Sweden"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	got := str(rec.OperatesIn)
	if n := len(strings.Split(got, ", ")); n != 5 {
		t.Fatalf("operates_in entries: got %d (%q), want 5", n, got)
	}
	if got != "France, Spain, Italy, Germany, Poland" {
		t.Fatalf("operates_in: got %q", got)
	}
}

func TestPositional_OperatesInFiltersNoise(t *testing.T) {
	trace := snapshot.Trace{"Operates in", "UK", "Chat", "+3 more", "United States", "Job Function", "Sales"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if got := str(rec.OperatesIn); got != "United States" {
		t.Fatalf("operates_in: got %q", got)
	}
	if got := str(rec.JobFunction); got != "Sales" {
		t.Fatalf("job_function: got %q", got)
	}
}

func TestPositional_LabelFollowedBySkipped(t *testing.T) {
	trace := snapshot.Trace{"John Smith", "CTO", "Globex", "Industry", "Job Function", "Engineering"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if rec.Industry != nil {
		t.Fatalf("industry: got %q, want nil", *rec.Industry)
	}
	if got := str(rec.JobFunction); got != "Engineering" {
		t.Fatalf("job_function: got %q", got)
	}
}

func TestPositional_LaterAnchorWins(t *testing.T) {
	trace := snapshot.Trace{
		"John Smith", "CTO", "Globex",
		"Industry", "Retail", "Operates in", "France",
		"Industry", "Software", "Operates in", "Spain", "Italy",
		"Industry", "Chat",
	}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if got := str(rec.Industry); got != "Software" {
		t.Fatalf("industry: got %q", got)
	}
	if got := str(rec.OperatesIn); got != "Spain, Italy" {
		t.Fatalf("operates_in: got %q", got)
	}
}

func TestPositional_TitleMissing(t *testing.T) {
	trace := snapshot.Trace{"John Smith", "Chat", "Suggest meeting"}
	rec := NewPositional(DefaultLabels(), DefaultSkip).Extract(trace)

	if rec.Name != "John Smith" {
		t.Fatalf("name: got %q", rec.Name)
	}
	if rec.JobTitle != nil || rec.Company != nil {
		t.Fatalf("title/company: got %s/%s, want nil", str(rec.JobTitle), str(rec.Company))
	}
}

func TestPositional_NameHeuristic(t *testing.T) {
	cases := []struct {
		name  string
		trace snapshot.Trace
		want  string
	}{
		{"single word", snapshot.Trace{"Madonna", "Singer"}, ""},
		{"too many words", snapshot.Trace{"A Very Long Name Here Indeed"}, ""},
		{"digits", snapshot.Trace{"Room 101 B"}, ""},
		{"too short", snapshot.Trace{"Al Bo"}, ""},
		{"skip listed", snapshot.Trace{"Suggest meeting", "Ann Lee Jones"}, "Ann Lee Jones"},
		{"accented", snapshot.Trace{"José Núñez"}, "José Núñez"},
		{"first wins", snapshot.Trace{"Ann Lee", "Bob Ray"}, "Ann Lee"},
	}
	p := NewPositional(DefaultLabels(), DefaultSkip)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := p.Extract(c.trace).Name; got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestPositional_NeverEmptyStrings(t *testing.T) {
	traces := []snapshot.Trace{
		nil,
		{},
		{""},
		{"Industry"},
		{"Operates in"},
		{"Job Function", " "},
		{"Ann Lee", "", ""},
		{"Industry", "Industry", "Industry"},
		{"Operates in", "Industry"},
	}
	p := NewPositional(DefaultLabels(), DefaultSkip)
	for i, tr := range traces {
		rec := p.Extract(tr)
		for _, f := range []*string{rec.JobTitle, rec.Company, rec.Industry, rec.JobFunction, rec.OperatesIn} {
			if f != nil && *f == "" {
				t.Fatalf("trace %d: empty string field in %+v", i, rec)
			}
		}
	}
}

func TestPositional_CustomLabels(t *testing.T) {
	labels := Labels{Industry: "Branche", JobFunction: "Funktion", OperatesIn: "Tätig in"}
	trace := snapshot.Trace{"Tätig in", "Deutschland", "Österreich", "Branche", "Energie"}
	rec := NewPositional(labels, []string{"Branche", "Funktion", "Tätig in"}).Extract(trace)

	if got := str(rec.OperatesIn); got != "Deutschland, Österreich" {
		t.Fatalf("operates_in: got %q", got)
	}
	if got := str(rec.Industry); got != "Energie" {
		t.Fatalf("industry: got %q", got)
	}
}

func TestParseDescription(t *testing.T) {
	rec := ParseDescription("Attendee, Jane Doe, Head of Growth\nAcme Corp")
	if rec.Name != "Jane Doe" {
		t.Fatalf("name: got %q", rec.Name)
	}
	if str(rec.JobTitle) != "Head of Growth" || str(rec.Company) != "Acme Corp" {
		t.Fatalf("title/company: got %s/%s", str(rec.JobTitle), str(rec.Company))
	}

	if rec := ParseDescription("Filters"); rec.Name != "" {
		t.Fatalf("single segment: got name %q", rec.Name)
	}
	if rec := ParseDescription("Speaker, Ann Lee"); rec.Name != "Ann Lee" || rec.JobTitle != nil {
		t.Fatalf("two segments: got %+v", rec)
	}
	if rec := ParseDescription("Attendee, Ann Lee, CEO, Founder\nInitech"); str(rec.JobTitle) != "CEO, Founder" {
		t.Fatalf("comma in role: got %s", str(rec.JobTitle))
	}
}

func TestChain_FillsOnlyMissing(t *testing.T) {
	p := NewPositional(DefaultLabels(), DefaultSkip)
	trace := snapshot.Trace{"Jane Doe", "Chat", "Industry", "Tech"}
	rec := Chain(p, FromDescription("Attendee, Someone Else, CEO\nAcme")).Extract(trace)

	if rec.Name != "Jane Doe" {
		t.Fatalf("name overwritten: got %q", rec.Name)
	}
	if str(rec.JobTitle) != "CEO" || str(rec.Company) != "Acme" {
		t.Fatalf("title/company not filled: %s/%s", str(rec.JobTitle), str(rec.Company))
	}
	if str(rec.Industry) != "Tech" {
		t.Fatalf("industry: got %s", str(rec.Industry))
	}
}

func TestChain_NameFromFallback(t *testing.T) {
	p := NewPositional(DefaultLabels(), DefaultSkip)
	rec := Chain(p, nil, FromDescription("Attendee, Ann Lee, CEO\nAcme")).Extract(snapshot.Trace{"Chat"})
	if rec.Name != "Ann Lee" {
		t.Fatalf("name: got %q", rec.Name)
	}
}
