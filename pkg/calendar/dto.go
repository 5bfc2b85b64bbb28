package calendar

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Timestamp is a point in time on the wire. It decodes RFC 3339 strings, plain dates and
// epoch milliseconds, and always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	var millis int64
	if err := json.Unmarshal(data, &millis); err != nil {
		return fmt.Errorf("timestamp must be an RFC 3339 string or epoch milliseconds: %w", err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseTimestamp accepts the same formats as Timestamp. An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if millis, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC 3339, YYYY-MM-DD or epoch milliseconds", s)
}

type EventDTO struct {
	UID         string    `json:"uid,omitempty"`
	Title       string    `json:"title"`
	Start       Timestamp `json:"start"`
	End         Timestamp `json:"end"`
	AllDay      bool      `json:"allDay"`
	Color       string    `json:"color,omitempty"`
	Description string    `json:"description,omitempty"`
	MeetingLink string    `json:"meetingLink,omitempty"`
	Members     []Member  `json:"members,omitempty"`
	Recurring   bool      `json:"recurring"`
	SeriesId    string    `json:"seriesId,omitempty"`
	// Events carries series occurrences: the instances of a new series on create, or the
	// regenerated series when the recurrence pattern of an edited event changed.
	Events []EventDTO `json:"events,omitempty"`
}

type RecurrenceEndDTO struct {
	Kind  string    `json:"kind"`
	Until Timestamp `json:"until"`
	Count int       `json:"count,omitempty"`
}

type RuleDTO struct {
	Frequency string           `json:"frequency"`
	Interval  int              `json:"interval"`
	End       RecurrenceEndDTO `json:"end"`
}

type RecurringEventRequest struct {
	Event EventDTO `json:"event"`
	Rule  RuleDTO  `json:"rule"`
}

type ScheduleDTO struct {
	Start  Timestamp `json:"start"`
	End    Timestamp `json:"end"`
	AllDay bool      `json:"allDay"`
}

type MutationResultDTO struct {
	Found  bool       `json:"found"`
	Events []EventDTO `json:"events"`
}

type DeleteResultDTO struct {
	Removed int `json:"removed"`
}

type DateRangeDTO struct {
	From Timestamp `json:"from"`
	To   Timestamp `json:"to"`
}

type FilterDTO struct {
	TitleQuery string        `json:"titleQuery"`
	DateRange  *DateRangeDTO `json:"dateRange,omitempty"`
	Color      *string       `json:"color,omitempty"`
}

func EventToDTO(e Event) EventDTO {
	dto := EventDTO{
		UID:         e.UID.String(),
		Title:       e.Title,
		Start:       Timestamp{e.Start},
		End:         Timestamp{e.End},
		AllDay:      e.AllDay,
		Color:       string(e.Color),
		Description: e.Description,
		MeetingLink: e.MeetingLink,
		Members:     e.Members,
		Recurring:   e.Recurring,
	}
	if e.SeriesId.Valid {
		dto.SeriesId = e.SeriesId.UUID.String()
	}
	if len(e.SeriesInstances) > 0 {
		dto.Events = EventsToDTO(e.SeriesInstances)
	}
	return dto
}

func EventsToDTO(events []Event) []EventDTO {
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, EventToDTO(e))
	}
	return dtos
}

func DTOToEvent(dto EventDTO) (Event, error) {
	e := Event{
		Title:       dto.Title,
		Start:       dto.Start.Time,
		End:         dto.End.Time,
		AllDay:      dto.AllDay,
		Description: dto.Description,
		MeetingLink: dto.MeetingLink,
		Members:     dto.Members,
		Recurring:   dto.Recurring,
	}
	if dto.UID != "" {
		uid, err := uuid.Parse(dto.UID)
		if err != nil {
			return Event{}, fmt.Errorf("%w: invalid uid %q", ErrInvalidEvent, dto.UID)
		}
		e.UID = uid
	}
	if dto.SeriesId != "" {
		seriesId, err := uuid.Parse(dto.SeriesId)
		if err != nil {
			return Event{}, fmt.Errorf("%w: invalid series id %q", ErrInvalidEvent, dto.SeriesId)
		}
		e.SeriesId = uuid.NullUUID{UUID: seriesId, Valid: true}
	}
	if dto.Color != "" {
		color, err := ParseColor(dto.Color)
		if err != nil {
			return Event{}, err
		}
		e.Color = color
	}
	for _, instanceDTO := range dto.Events {
		instance, err := DTOToEvent(instanceDTO)
		if err != nil {
			return Event{}, err
		}
		e.SeriesInstances = append(e.SeriesInstances, instance)
	}
	return e, nil
}

func DTOToRule(dto RuleDTO) RecurrenceRule {
	return RecurrenceRule{
		Frequency: Frequency(dto.Frequency),
		Interval:  dto.Interval,
		End: RecurrenceEnd{
			Kind:  EndKind(dto.End.Kind),
			Until: dto.End.Until.Time,
			Count: dto.End.Count,
		},
	}
}

func FilterToDTO(f Filter) FilterDTO {
	dto := FilterDTO{TitleQuery: f.TitleQuery}
	if f.DateRange != nil {
		dto.DateRange = &DateRangeDTO{From: Timestamp{f.DateRange.From}, To: Timestamp{f.DateRange.To}}
	}
	if f.Color != nil {
		color := string(*f.Color)
		dto.Color = &color
	}
	return dto
}

func DTOToFilter(dto FilterDTO) (Filter, error) {
	f := Filter{TitleQuery: dto.TitleQuery}
	if dto.DateRange != nil {
		f.DateRange = &DateRange{From: dto.DateRange.From.Time, To: dto.DateRange.To.Time}
	}
	if dto.Color != nil {
		color, err := ParseColor(*dto.Color)
		if err != nil {
			return Filter{}, err
		}
		f.Color = &color
	}
	return f, nil
}

// FilterFromQuery reads a filter from the title, from, to and color query parameters.
// A date range needs both bounds; giving only one of them is an error.
func FilterFromQuery(query url.Values) (Filter, error) {
	f := Filter{TitleQuery: query.Get("title")}

	from, err := ParseTimestamp(query.Get("from"))
	if err != nil {
		return Filter{}, fmt.Errorf("from: %w", err)
	}
	to, err := ParseTimestamp(query.Get("to"))
	if err != nil {
		return Filter{}, fmt.Errorf("to: %w", err)
	}
	switch {
	case !from.IsZero() && !to.IsZero():
		f.DateRange = &DateRange{From: from, To: to}
	case !from.IsZero():
		return Filter{}, fmt.Errorf("to: required together with from")
	case !to.IsZero():
		return Filter{}, fmt.Errorf("from: required together with to")
	}

	if c := query.Get("color"); c != "" {
		color, err := ParseColor(c)
		if err != nil {
			return Filter{}, err
		}
		f.Color = &color
	}
	return f, nil
}
