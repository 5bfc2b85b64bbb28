package calendar

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/consolecal/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

type DeleteScope string

const (
	ScopeThis             DeleteScope = "this"
	ScopeThisAndFollowing DeleteScope = "thisAndFollowing"
	ScopeAll              DeleteScope = "all"
)

// ParseDeleteScope maps the wire value to a scope; an empty value means ScopeThis.
func ParseDeleteScope(s string) (DeleteScope, error) {
	switch DeleteScope(s) {
	case "", ScopeThis:
		return ScopeThis, nil
	case ScopeThisAndFollowing:
		return ScopeThisAndFollowing, nil
	case ScopeAll:
		return ScopeAll, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeleteScope, s)
}

// Service applies create, update, reschedule and delete operations to the store. Each
// operation runs in one store transaction and unknown event UIDs are ignored.
type Service struct {
	store   Store
	bus     *event_bus.EventBus
	horizon Horizon
}

func NewService(store Store, bus *event_bus.EventBus, horizon Horizon) *Service {
	return &Service{
		store:   store,
		bus:     bus,
		horizon: horizon,
	}
}

// Horizon returns the bound applied to recurrence rules that never end.
func (s *Service) Horizon() Horizon {
	return s.horizon
}

func (s *Service) GetEvents(ctx context.Context) ([]Event, error) {
	return s.store.List(ctx)
}

func (s *Service) GetEvent(ctx context.Context, uid uuid.UUID) (Event, bool, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return Event{}, false, fmt.Errorf("failed to list events: %w", err)
	}
	e, ok := findEvent(events, uid)
	return e, ok, nil
}

// AddEvent stores a new standalone event under a fresh UID.
func (s *Service) AddEvent(ctx context.Context, event Event) (Event, error) {
	event = event.prepare()
	event.UID = uuid.New()
	event.Recurring = false
	event.SeriesId = uuid.NullUUID{}
	event.SeriesInstances = nil
	if err := event.Validate(); err != nil {
		return Event{}, err
	}

	err := s.commit(ctx, "create", "", func(store Store, c *change) error {
		if err := store.Upsert(ctx, event); err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
		c.upserted(event)
		return nil
	})
	if err != nil {
		return Event{}, err
	}
	log.Debugf("created event %s", event.UID)
	return event, nil
}

// AddSeries stores every instance of an expanded series.
func (s *Service) AddSeries(ctx context.Context, instances []Event) ([]Event, error) {
	prepared, err := prepareSeries(instances)
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, "create_series", "", func(store Store, c *change) error {
		events, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if err := appendInstances(ctx, store, events, prepared, c); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("created series %s with %d occurrences", prepared[0].SeriesId.UUID, len(prepared))
	return prepared, nil
}

// Preview expands template under rule without storing anything.
func (s *Service) Preview(template Event, rule RecurrenceRule) ([]Event, error) {
	return Expand(template.prepare(), rule, s.horizon)
}

// CreateRecurringEvent expands template under rule and stores the series.
func (s *Service) CreateRecurringEvent(ctx context.Context, template Event, rule RecurrenceRule) ([]Event, error) {
	instances, err := s.Preview(template, rule)
	if err != nil {
		return nil, err
	}
	return s.AddSeries(ctx, instances)
}

// UpdateEvent applies an edit made in the event dialog and returns the events it changed.
//
//   - A standalone target is replaced.
//   - An event carrying SeriesInstances (recurrence pattern changed) replaces the target's
//     whole series, individually edited occurrences included.
//   - Any other edit of a recurring target copies title, all-day flag, meeting link,
//     description, color and members to every occurrence of its series. Each occurrence
//     keeps its own start and end, the target included.
//
// found is false when no event has the given UID.
func (s *Service) UpdateEvent(ctx context.Context, event Event) (updated []Event, found bool, err error) {
	if event.UID == uuid.Nil {
		return nil, false, ErrMissingEventUID
	}

	var instances []Event
	if len(event.SeriesInstances) > 0 {
		if instances, err = prepareSeries(event.SeriesInstances); err != nil {
			return nil, false, err
		}
	}
	fields := event.prepare()

	var target Event
	op := "update"
	err = s.commit(ctx, op, "", func(store Store, c *change) error {
		events, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		target, found = findEvent(events, event.UID)
		if !found {
			return nil
		}

		switch {
		case instances != nil:
			c.operation = "replace_series"
			inSeries := func(e Event) bool { return e.UID == target.UID || SameSeries(e, target) }
			remaining := make([]Event, 0, len(events))
			for _, e := range events {
				if inSeries(e) {
					c.removed(e)
				} else {
					remaining = append(remaining, e)
				}
			}
			if _, err := store.RemoveWhere(ctx, inSeries); err != nil {
				return fmt.Errorf("failed to remove previous series: %w", err)
			}
			if err := appendInstances(ctx, store, remaining, instances, c); err != nil {
				return err
			}
			updated = instances
		case target.Recurring:
			c.operation = "update_series"
			if err := applySeriesFields(target, fields).Validate(); err != nil {
				return err
			}
			for _, e := range events {
				if e.UID != target.UID && !SameSeries(e, target) {
					continue
				}
				e = applySeriesFields(e, fields)
				if err := store.Upsert(ctx, e); err != nil {
					return fmt.Errorf("failed to update series occurrence: %w", err)
				}
				c.upserted(e)
				updated = append(updated, e)
			}
		default:
			e, err := replaceOne(ctx, store, target, fields)
			if err != nil {
				return err
			}
			c.upserted(e)
			updated = []Event{e}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		log.Debugf("update of unknown event %s ignored", event.UID)
	}
	return updated, found, nil
}

// RescheduleEvent moves the single event with uid to [start, end], even when it belongs to a
// series. Every other field is kept as stored when the transaction reads it. Drag and resize
// gestures go through here so a moved occurrence never drags its series along.
func (s *Service) RescheduleEvent(ctx context.Context, uid uuid.UUID, start, end time.Time, allDay bool) (Event, bool, error) {
	if uid == uuid.Nil {
		return Event{}, false, ErrMissingEventUID
	}
	if start.IsZero() || end.IsZero() {
		return Event{}, false, fmt.Errorf("%w: start and end are required", ErrInvalidEvent)
	}
	if end.Before(start) {
		return Event{}, false, ErrInvalidTimeRange
	}

	var updated Event
	found := false
	err := s.commit(ctx, "reschedule", "", func(store Store, c *change) error {
		events, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		var target Event
		if target, found = findEvent(events, uid); !found {
			return nil
		}
		moved := target.Clone()
		moved.Start = start
		moved.End = end
		moved.AllDay = allDay
		if updated, err = replaceOne(ctx, store, target, moved.prepare()); err != nil {
			return err
		}
		c.upserted(updated)
		return nil
	})
	if err != nil {
		return Event{}, false, err
	}
	return updated, found, nil
}

// DeleteEvent removes the event with uid and, depending on scope, the rest of its series.
// It returns the number of removed events; an unknown uid removes nothing.
func (s *Service) DeleteEvent(ctx context.Context, uid uuid.UUID, scope DeleteScope) (int, error) {
	if _, err := ParseDeleteScope(string(scope)); err != nil {
		return 0, err
	}

	removed := 0
	err := s.commit(ctx, "delete", string(scope), func(store Store, c *change) error {
		events, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		target, ok := findEvent(events, uid)
		if !ok {
			return nil
		}

		pred := deletePredicate(target, scope)
		if removed, err = store.RemoveWhere(ctx, func(e Event) bool {
			if pred(e) {
				c.removed(e)
				return true
			}
			return false
		}); err != nil {
			return fmt.Errorf("failed to delete events: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Debugf("deleted %d event(s) for %s (scope %s)", removed, uid, scope)
	return removed, nil
}

func deletePredicate(target Event, scope DeleteScope) func(Event) bool {
	switch scope {
	case ScopeThisAndFollowing:
		return func(e Event) bool {
			return e.UID == target.UID || (SameSeries(e, target) && !e.Start.Before(target.Start))
		}
	case ScopeAll:
		return func(e Event) bool {
			return e.UID == target.UID || SameSeries(e, target)
		}
	default:
		return func(e Event) bool {
			return e.UID == target.UID
		}
	}
}

// replaceOne overwrites target with fields, keeping target's identity and series membership.
func replaceOne(ctx context.Context, store Store, target Event, fields Event) (Event, error) {
	e := fields.Clone()
	e.UID = target.UID
	e.Recurring = target.Recurring
	e.SeriesId = target.SeriesId
	e.SeriesInstances = nil
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	if err := store.Upsert(ctx, e); err != nil {
		return Event{}, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

// applySeriesFields copies the shared fields of src onto one occurrence. The occurrence keeps its
// own times unless the edit turns all-day on, which widens it to the day(s) it already spans.
func applySeriesFields(dst Event, src Event) Event {
	dst.Title = src.Title
	dst.AllDay = src.AllDay
	dst.MeetingLink = src.MeetingLink
	dst.Description = src.Description
	dst.Color = src.Color
	dst.Members = slices.Clone(src.Members)
	if dst.AllDay {
		dst.Start, dst.End = dayBounds(dst.Start, dst.End)
	}
	return dst
}

// prepareSeries normalizes the instances of one series: every instance is recurring, has a
// UID and shares one SeriesId.
func prepareSeries(instances []Event) ([]Event, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: series has no occurrences", ErrInvalidEvent)
	}
	seriesId := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	for _, instance := range instances {
		if instance.SeriesId.Valid {
			seriesId = instance.SeriesId
			break
		}
	}

	prepared := make([]Event, 0, len(instances))
	for _, instance := range instances {
		e := instance.prepare()
		if e.UID == uuid.Nil {
			e.UID = uuid.New()
		}
		e.Recurring = true
		e.SeriesId = seriesId
		e.SeriesInstances = nil
		if err := e.Validate(); err != nil {
			return nil, err
		}
		prepared = append(prepared, e)
	}
	if err := checkUniqueUIDs(prepared); err != nil {
		return nil, err
	}
	return prepared, nil
}

func appendInstances(ctx context.Context, store Store, existing []Event, instances []Event, c *change) error {
	for _, instance := range instances {
		if _, taken := findEvent(existing, instance.UID); taken {
			return fmt.Errorf("%w: %s", ErrDuplicateEventUID, instance.UID)
		}
	}
	for _, instance := range instances {
		if err := store.Upsert(ctx, instance); err != nil {
			return fmt.Errorf("failed to store series occurrence: %w", err)
		}
		c.upserted(instance)
	}
	return nil
}

func findEvent(events []Event, uid uuid.UUID) (Event, bool) {
	for _, e := range events {
		if e.UID == uid {
			return e, true
		}
	}
	return Event{}, false
}

type change struct {
	operation string
	scope     string
	upsert    []string
	remove    []string
}

func (c *change) upserted(e Event) { c.upsert = append(c.upsert, e.UID.String()) }
func (c *change) removed(e Event)  { c.remove = append(c.remove, e.UID.String()) }

// commit runs fn in a store transaction and announces the committed change on the bus.
func (s *Service) commit(ctx context.Context, operation, scope string, fn func(store Store, c *change) error) error {
	c := &change{operation: operation, scope: scope}
	size := 0
	err := s.store.WithTransaction(ctx, func(store Store) error {
		if err := fn(store, c); err != nil {
			return err
		}
		events, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		size = len(events)
		return nil
	})
	if err != nil {
		return err
	}
	if s.bus == nil || (len(c.upsert) == 0 && len(c.remove) == 0) {
		return nil
	}

	err = s.bus.Publish(event_bus.NewEvent(ctx, event_bus.CalendarEventsChangedType, event_bus.CalendarEventsChanged{
		Operation: c.operation,
		Scope:     c.scope,
		Upserted:  c.upsert,
		Removed:   c.remove,
		StoreSize: size,
	}))
	if err != nil {
		// the mutation is already committed, subscribers only observe it
		log.Errorf("failed to publish %s change: %v", c.operation, err)
	}
	return nil
}
