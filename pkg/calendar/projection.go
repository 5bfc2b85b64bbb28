package calendar

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DateRange selects events whose start lies within [From, To], both inclusive.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Filter is the view-side selection applied to the event list.
type Filter struct {
	TitleQuery string     `json:"titleQuery"`
	DateRange  *DateRange `json:"dateRange,omitempty"`
	Color      *Color     `json:"color,omitempty"`
}

// Project returns the events passing every criterion of f, in input order. It neither
// modifies events nor keeps a reference to them.
func Project(events []Event, f Filter) []Event {
	fold := cases.Fold()
	query := fold.String(f.TitleQuery)

	projected := make([]Event, 0, len(events))
	for _, e := range events {
		if query != "" && !strings.Contains(fold.String(e.Title), query) {
			continue
		}
		if f.DateRange != nil && (e.Start.Before(f.DateRange.From) || e.Start.After(f.DateRange.To)) {
			continue
		}
		if f.Color != nil && e.Color != *f.Color {
			continue
		}
		projected = append(projected, e.Clone())
	}
	return projected
}
