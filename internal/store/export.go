package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

var csvHeader = []string{"id", "name", "job_title", "company", "industry", "job_function", "operates_in", "run_id", "scraped_at"}

// WriteCSV writes attendees with a header row. Absent fields are empty cells.
func WriteCSV(w io.Writer, attendees []Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, a := range attendees {
		scraped := ""
		if !a.ScrapedAt.IsZero() {
			scraped = a.ScrapedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			fmt.Sprint(a.ID),
			a.Name,
			deref(a.JobTitle),
			deref(a.Company),
			deref(a.Industry),
			deref(a.JobFunction),
			deref(a.OperatesIn),
			a.RunID,
			scraped,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes attendees as an indented JSON array.
func WriteJSON(w io.Writer, attendees []Attendee) error {
	if attendees == nil {
		attendees = []Attendee{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(attendees)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
