// Package session keeps the page-level state of each open console: the modal dialog, the
// selected slot and the filter applied to the calendar.
package session

import (
	"errors"
	"time"

	"github.com/klokku/consolecal/pkg/calendar"
)

var ErrSessionNotFound = errors.New("session not found")
var ErrInvalidTransition = errors.New("invalid modal transition")
var ErrEventNotFound = errors.New("event not found")

type Session struct {
	Id     string          `json:"id"`
	Modal  Modal           `json:"modal"`
	Filter calendar.Filter `json:"filter"`
	// FocusDate is the day expanded through "show more".
	FocusDate *time.Time `json:"focusDate,omitempty"`
	LastSeen  time.Time  `json:"lastSeen"`
}

func (s Session) clone() Session {
	c := s
	c.Modal = s.Modal.clone()
	if s.Filter.DateRange != nil {
		dateRange := *s.Filter.DateRange
		c.Filter.DateRange = &dateRange
	}
	if s.Filter.Color != nil {
		color := *s.Filter.Color
		c.Filter.Color = &color
	}
	if s.FocusDate != nil {
		focus := *s.FocusDate
		c.FocusDate = &focus
	}
	return c
}

// Close closes the modal and drops the slot selection and the filter.
func (s *Session) Close() {
	s.Modal.Close()
	s.Filter = calendar.Filter{}
}
