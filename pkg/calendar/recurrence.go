package calendar

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

type Frequency string

const (
	Daily   Frequency = "day"
	Weekly  Frequency = "week"
	Monthly Frequency = "month"
	Yearly  Frequency = "year"
)

type EndKind string

const (
	EndNever EndKind = "never"
	EndOn    EndKind = "on"
	EndAfter EndKind = "after"
)

type RecurrenceEnd struct {
	Kind EndKind `json:"kind"`
	// Until is the last calendar day that may hold an occurrence (EndOn).
	Until time.Time `json:"until,omitempty"`
	// Count is the exact number of occurrences (EndAfter).
	Count int `json:"count,omitempty"`
}

type RecurrenceRule struct {
	Frequency Frequency     `json:"frequency"`
	Interval  int           `json:"interval"`
	End       RecurrenceEnd `json:"end"`
}

// Horizon bounds the expansion of rules that never end.
type Horizon struct {
	MaxOccurrences int
	// Days is the lookahead window counted from the series start.
	Days int
}

// MaxSeriesLength caps every expansion, including horizons without MaxOccurrences.
const MaxSeriesLength = 5000

func (h Horizon) bounded() bool {
	return h.MaxOccurrences > 0 || h.Days > 0
}

func (h Horizon) limit() int {
	if h.MaxOccurrences > 0 && h.MaxOccurrences < MaxSeriesLength {
		return h.MaxOccurrences
	}
	return MaxSeriesLength
}

func (f Frequency) rrule() (rrule.Frequency, bool) {
	switch f {
	case Daily:
		return rrule.DAILY, true
	case Weekly:
		return rrule.WEEKLY, true
	case Monthly:
		return rrule.MONTHLY, true
	case Yearly:
		return rrule.YEARLY, true
	}
	return 0, false
}

// Validate reports ErrInvalidRecurrenceRule when the rule cannot produce a series starting at start.
func (r RecurrenceRule) Validate(start time.Time) error {
	if _, ok := r.Frequency.rrule(); !ok {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrenceRule, r.Frequency)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidRecurrenceRule, r.Interval)
	}
	switch r.End.Kind {
	case EndNever:
	case EndAfter:
		if r.End.Count <= 0 {
			return fmt.Errorf("%w: occurrence count must be positive, got %d", ErrInvalidRecurrenceRule, r.End.Count)
		}
		if r.End.Count > MaxSeriesLength {
			return fmt.Errorf("%w: occurrence count %d exceeds %d", ErrInvalidRecurrenceRule, r.End.Count, MaxSeriesLength)
		}
	case EndOn:
		if r.End.Until.IsZero() {
			return fmt.Errorf("%w: end date is required", ErrInvalidRecurrenceRule)
		}
		if endOfDay(r.End.Until.In(start.Location())).Before(start) {
			return fmt.Errorf("%w: end date %s precedes the series start", ErrInvalidRecurrenceRule, r.End.Until.Format(time.DateOnly))
		}
	default:
		return fmt.Errorf("%w: unknown end condition %q", ErrInvalidRecurrenceRule, r.End.Kind)
	}
	return nil
}

// Expand produces the concrete occurrences of template under rule. Every occurrence is a copy
// of the template shifted to its slot, with a fresh UID, Recurring set and a shared SeriesId.
// The horizon is mandatory for rules that never end and also caps "on date" rules; an "after N"
// rule asking for more than the horizon allows is rejected rather than truncated.
func Expand(template Event, rule RecurrenceRule, horizon Horizon) ([]Event, error) {
	if template.Start.IsZero() {
		return nil, fmt.Errorf("%w: template start is required", ErrInvalidEvent)
	}
	if template.End.Before(template.Start) {
		return nil, ErrInvalidTimeRange
	}
	if err := rule.Validate(template.Start); err != nil {
		return nil, err
	}
	// rrule works in whole seconds; the fraction is added back to every slot.
	dtstart := template.Start.Truncate(time.Second)
	fraction := template.Start.Sub(dtstart)
	freq, _ := rule.Frequency.rrule()
	opt := rrule.ROption{
		Freq:     freq,
		Interval: rule.Interval,
		Dtstart:  dtstart,
	}

	switch rule.End.Kind {
	case EndAfter:
		if rule.End.Count > horizon.limit() {
			return nil, fmt.Errorf("%w: occurrence count %d exceeds the limit of %d", ErrInvalidRecurrenceRule, rule.End.Count, horizon.limit())
		}
		opt.Count = rule.End.Count
	case EndOn:
		opt.Until = endOfDay(rule.End.Until.In(template.Start.Location()))
		opt.Count = horizon.limit()
	case EndNever:
		if !horizon.bounded() {
			return nil, ErrHorizonRequired
		}
		opt.Count = horizon.limit()
		if horizon.Days > 0 {
			opt.Until = template.Start.AddDate(0, 0, horizon.Days)
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrenceRule, err)
	}
	starts := r.All()
	if len(starts) == 0 {
		return nil, fmt.Errorf("%w: rule produces no occurrences", ErrInvalidRecurrenceRule)
	}
	if rule.End.Kind == EndAfter && len(starts) != rule.End.Count {
		return nil, fmt.Errorf("%w: rule produces %d of %d occurrences", ErrInvalidRecurrenceRule, len(starts), rule.End.Count)
	}

	duration := template.End.Sub(template.Start)
	seriesId := template.SeriesId
	if !seriesId.Valid {
		seriesId = uuid.NullUUID{UUID: uuid.New(), Valid: true}
	}

	instances := make([]Event, 0, len(starts))
	for _, start := range starts {
		instance := template.Clone()
		instance.SeriesInstances = nil
		instance.UID = uuid.New()
		instance.Recurring = true
		instance.SeriesId = seriesId
		instance.Start = start.Add(fraction)
		instance.End = instance.Start.Add(duration)
		instances = append(instances, instance)
	}
	return instances, nil
}

func endOfDay(t time.Time) time.Time {
	return midnight(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
