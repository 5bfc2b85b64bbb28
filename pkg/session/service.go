package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/consolecal/internal/event_bus"
	"github.com/klokku/consolecal/internal/utils"
	"github.com/klokku/consolecal/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// Service coordinates the calendar page of every open console: it owns the modal, the slot
// selection and the filter, and projects the calendar through that filter.
type Service struct {
	// mu serializes read-modify-write cycles on the repository
	mu       sync.Mutex
	repo     Repository
	calendar *calendar.Service
	clock    utils.Clock
	ttl      time.Duration
}

func NewService(repo Repository, calendar *calendar.Service, clock utils.Clock, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		calendar: calendar,
		clock:    clock,
		ttl:      ttl,
	}
}

func (s *Service) Create(ctx context.Context) (Session, error) {
	session := Session{
		Id:       uuid.NewString(),
		Modal:    Modal{State: ModalNone},
		LastSeen: s.clock.Now(),
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return Session{}, err
	}
	log.Debugf("session %s created", session.Id)
	return session, nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// update loads the session, applies fn and stores the result unless fn fails.
func (s *Service) update(ctx context.Context, id string, fn func(session *Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := fn(&session); err != nil {
		return Session{}, err
	}
	session.LastSeen = s.clock.Now()
	if err := s.repo.Save(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// SelectEvent opens the detail view of the stored event with eventUid.
func (s *Service) SelectEvent(ctx context.Context, id string, eventUid uuid.UUID) (Session, error) {
	event, found, err := s.calendar.GetEvent(ctx, eventUid)
	if err != nil {
		return Session{}, err
	}
	if !found {
		return Session{}, fmt.Errorf("%w: %s", ErrEventNotFound, eventUid)
	}
	return s.update(ctx, id, func(session *Session) error {
		return session.Modal.SelectEvent(event)
	})
}

// SelectDate focuses the day expanded through "show more". The modal is left as it is.
func (s *Service) SelectDate(ctx context.Context, id string, date time.Time) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.FocusDate = &date
		return nil
	})
}

func (s *Service) SelectSlot(ctx context.Context, id string, slot SlotSelection) (Session, error) {
	if slot.Start.IsZero() || slot.End.IsZero() {
		return Session{}, fmt.Errorf("%w: slot start and end are required", calendar.ErrInvalidEvent)
	}
	if slot.End.Before(slot.Start) {
		return Session{}, calendar.ErrInvalidTimeRange
	}
	return s.update(ctx, id, func(session *Session) error {
		return session.Modal.SelectSlot(slot)
	})
}

func (s *Service) Edit(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		return session.Modal.Edit()
	})
}

func (s *Service) ConfigureRecurrence(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		return session.Modal.ConfigureRecurrence()
	})
}

// SaveRecurrence expands rule for template and hands the instances back to the edit dialog.
// Nothing is stored until the edit dialog is submitted.
func (s *Service) SaveRecurrence(ctx context.Context, id string, template calendar.Event, rule calendar.RecurrenceRule) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		if err := session.Modal.transition("save recurrence", ModalEventRecurrence); err != nil {
			return err
		}
		instances, err := s.calendar.Preview(template, rule)
		if err != nil {
			return err
		}
		return session.Modal.SaveRecurrence(template, instances)
	})
}

func (s *Service) CancelRecurrence(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		return session.Modal.CancelRecurrence()
	})
}

// Close closes the modal and resets the slot selection and the filter.
func (s *Service) Close(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.Close()
		return nil
	})
}

func (s *Service) SetFilter(ctx context.Context, id string, filter calendar.Filter) (Session, error) {
	return s.update(ctx, id, func(session *Session) error {
		session.Filter = filter
		return nil
	})
}

// Events returns the calendar as the session sees it, through its filter.
func (s *Service) Events(ctx context.Context, id string) ([]calendar.Event, error) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.calendar.GetEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return calendar.Project(events, session.Filter), nil
}

// Sweep deletes the sessions idle for longer than the configured ttl.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.clock.Now().Add(-s.ttl)
	swept := 0
	for _, session := range sessions {
		if !session.LastSeen.Before(cutoff) {
			continue
		}
		if err := s.repo.Delete(ctx, session.Id); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		log.Infof("swept %d idle session(s)", swept)
	}
	return swept, nil
}

// Subscribe keeps modal targets in line with calendar changes: a target that was deleted
// closes its modal, an updated one is reloaded.
func (s *Service) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.CalendarEventsChangedType, s.onCalendarChanged)
}

func (s *Service) onCalendarChanged(e event_bus.EventT[event_bus.CalendarEventsChanged]) error {
	ctx := e.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	var errs []error
	for _, session := range sessions {
		target := session.Modal.Target
		if target == nil || target.UID == uuid.Nil {
			continue
		}
		uid := target.UID.String()
		switch {
		case slices.Contains(e.Data.Removed, uid) && !slices.Contains(e.Data.Upserted, uid):
			log.Debugf("closing modal of session %s, its event %s was deleted", session.Id, uid)
			session.Modal.Close()
		case slices.Contains(e.Data.Upserted, uid):
			current, found, err := s.calendar.GetEvent(ctx, target.UID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !found {
				continue
			}
			current.SeriesInstances = target.SeriesInstances
			session.Modal.Target = &current
		default:
			continue
		}
		if err := s.repo.Save(ctx, session); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
