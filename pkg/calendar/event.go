package calendar

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Color string

const (
	ColorPrimary   Color = "primary"
	ColorSecondary Color = "secondary"
	ColorSuccess   Color = "success"
	ColorWarning   Color = "warning"
	ColorError     Color = "error"
	ColorInfo      Color = "info"
)

// Palette lists every color an event may be tagged with.
var Palette = []Color{ColorPrimary, ColorSecondary, ColorSuccess, ColorWarning, ColorError, ColorInfo}

func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Palette, c) {
		return "", fmt.Errorf("%w: unknown color %q", ErrInvalidEvent, s)
	}
	return c, nil
}

type MemberStatus string

const (
	MemberAccepted   MemberStatus = "accepted"
	MemberDeclined   MemberStatus = "declined"
	MemberNoResponse MemberStatus = "no-response"
)

type Member struct {
	Id     string       `json:"id"`
	Name   string       `json:"name"`
	Image  string       `json:"image,omitempty"`
	Status MemberStatus `json:"status"`
}

type Event struct {
	UID         uuid.UUID `json:"uid"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Color       Color     `json:"color"`
	Description string    `json:"description,omitempty"`
	MeetingLink string    `json:"meetingLink,omitempty"`
	Members     []Member  `json:"members,omitempty"`
	Recurring   bool      `json:"recurring"`
	// SeriesId links every occurrence generated from the same recurrence rule.
	SeriesId uuid.NullUUID `json:"seriesId"`
	// SeriesInstances is only set on a template coming back from the recurrence editor.
	SeriesInstances []Event `json:"seriesInstances,omitempty"`
}

// Validate checks the invariants every stored event must hold.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidEvent)
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if e.End.Before(e.Start) {
		return ErrInvalidTimeRange
	}
	if _, err := ParseColor(string(e.Color)); err != nil {
		return err
	}
	for _, m := range e.Members {
		switch m.Status {
		case MemberAccepted, MemberDeclined, MemberNoResponse:
		default:
			return fmt.Errorf("%w: member %q has unknown status %q", ErrInvalidEvent, m.Id, m.Status)
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with e.
func (e Event) Clone() Event {
	c := e
	if e.Members != nil {
		c.Members = slices.Clone(e.Members)
	}
	if e.SeriesInstances != nil {
		c.SeriesInstances = make([]Event, len(e.SeriesInstances))
		for i, instance := range e.SeriesInstances {
			c.SeriesInstances[i] = instance.Clone()
		}
	}
	return c
}

// prepare applies defaults and normalization before validation.
func (e Event) prepare() Event {
	e = e.Clone()
	e.Title = strings.TrimSpace(e.Title)
	if e.Color == "" {
		e.Color = ColorPrimary
	}
	if e.Members == nil {
		e.Members = []Member{}
	}
	for i, m := range e.Members {
		if m.Status == "" {
			e.Members[i].Status = MemberNoResponse
		}
	}
	if e.AllDay {
		e.Start, e.End = dayBounds(e.Start, e.End)
	}
	return e
}

// dayBounds widens [start, end] to whole days: start moves back to its midnight and end
// forward to the next midnight, keeping at least one day.
func dayBounds(start, end time.Time) (time.Time, time.Time) {
	dayStart := midnight(start)
	dayEnd := midnight(end)
	if dayEnd.Before(end) {
		dayEnd = dayEnd.AddDate(0, 0, 1)
	}
	if !dayEnd.After(dayStart) {
		dayEnd = dayStart.AddDate(0, 0, 1)
	}
	return dayStart, dayEnd
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}
