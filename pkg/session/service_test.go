package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/consolecal/internal/event_bus"
	"github.com/klokku/consolecal/internal/utils"
	"github.com/klokku/consolecal/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type serviceFixture struct {
	sessions *Service
	calendar *calendar.Service
	repo     *MemoryRepository
	clock    *utils.MockClock
}

func setupService(t *testing.T) *serviceFixture {
	bus := event_bus.NewEventBus()
	f := &serviceFixture{
		calendar: calendar.NewService(calendar.NewMemoryStore(), bus, calendar.Horizon{MaxOccurrences: 50}),
		repo:     NewMemoryRepository(),
		clock:    &utils.MockClock{FixedNow: day},
	}
	f.sessions = NewService(f.repo, f.calendar, f.clock, time.Hour)
	t.Cleanup(f.sessions.Subscribe(bus))
	return f
}

func (f *serviceFixture) newSession(t *testing.T) Session {
	t.Helper()
	s, err := f.sessions.Create(ctx)
	require.NoError(t, err)
	return s
}

func (f *serviceFixture) addEvent(t *testing.T, title string) calendar.Event {
	t.Helper()
	e, err := f.calendar.AddEvent(ctx, calendar.Event{Title: title, Start: day, End: day.Add(time.Hour), Color: calendar.ColorWarning})
	require.NoError(t, err)
	return e
}

func TestService_Create(t *testing.T) {
	// given
	f := setupService(t)

	// when
	s, err := f.sessions.Create(ctx)

	// then
	require.NoError(t, err)
	assert.NotEmpty(t, s.Id)
	assert.Equal(t, ModalNone, s.Modal.State)
	stored, err := f.sessions.Get(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestService_Get(t *testing.T) {
	// given
	f := setupService(t)

	// when
	_, err := f.sessions.Get(ctx, "unknown")

	// then
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_SelectEvent(t *testing.T) {
	t.Run("should open the detail view of a stored event", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		event := f.addEvent(t, "Review")

		// when
		updated, err := f.sessions.SelectEvent(ctx, s.Id, event.UID)

		// then
		require.NoError(t, err)
		assert.Equal(t, ModalEventDetail, updated.Modal.State)
		assert.Equal(t, event, *updated.Modal.Target)
	})

	t.Run("should fail for an unknown event", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)

		// when
		_, err := f.sessions.SelectEvent(ctx, s.Id, uuid.New())

		// then
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("should fail for an unknown session", func(t *testing.T) {
		// given
		f := setupService(t)
		event := f.addEvent(t, "Review")

		// when
		_, err := f.sessions.SelectEvent(ctx, "unknown", event.UID)

		// then
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestService_SelectDate(t *testing.T) {
	// given
	f := setupService(t)
	s := f.newSession(t)
	date := time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)

	// when
	updated, err := f.sessions.SelectDate(ctx, s.Id, date)

	// then
	require.NoError(t, err)
	require.NotNil(t, updated.FocusDate)
	assert.Equal(t, date, *updated.FocusDate)
	assert.Equal(t, ModalNone, updated.Modal.State)
}

func TestService_SelectSlot(t *testing.T) {
	t.Run("should open the add-event dialog", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		slot := SlotSelection{Start: day, End: day.Add(time.Hour)}

		// when
		updated, err := f.sessions.SelectSlot(ctx, s.Id, slot)

		// then
		require.NoError(t, err)
		assert.Equal(t, ModalEditEvent, updated.Modal.State)
		assert.Nil(t, updated.Modal.Target)
		assert.Equal(t, &slot, updated.Modal.Slot)
	})

	t.Run("should reject a slot ending before it starts", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)

		// when
		_, err := f.sessions.SelectSlot(ctx, s.Id, SlotSelection{Start: day, End: day.Add(-time.Hour)})

		// then
		assert.ErrorIs(t, err, calendar.ErrInvalidTimeRange)
		stored, _ := f.sessions.Get(ctx, s.Id)
		assert.Equal(t, ModalNone, stored.Modal.State)
	})
}

func TestService_RecurrenceFlow(t *testing.T) {
	t.Run("should hand generated instances back to the edit dialog", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		event := f.addEvent(t, "Review")
		_, err := f.sessions.SelectEvent(ctx, s.Id, event.UID)
		require.NoError(t, err)
		_, err = f.sessions.Edit(ctx, s.Id)
		require.NoError(t, err)
		_, err = f.sessions.ConfigureRecurrence(ctx, s.Id)
		require.NoError(t, err)
		rule := calendar.RecurrenceRule{Frequency: calendar.Weekly, Interval: 1, End: calendar.RecurrenceEnd{Kind: calendar.EndAfter, Count: 3}}

		// when
		updated, err := f.sessions.SaveRecurrence(ctx, s.Id, event, rule)

		// then
		require.NoError(t, err)
		assert.Equal(t, ModalEditEvent, updated.Modal.State)
		require.Len(t, updated.Modal.Target.SeriesInstances, 3)
		assert.Equal(t, day.AddDate(0, 0, 14), updated.Modal.Target.SeriesInstances[2].Start)
		events, err := f.calendar.GetEvents(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("should keep the recurrence dialog open on an invalid rule", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		_, err := f.sessions.SelectSlot(ctx, s.Id, SlotSelection{Start: day, End: day.Add(time.Hour)})
		require.NoError(t, err)
		_, err = f.sessions.ConfigureRecurrence(ctx, s.Id)
		require.NoError(t, err)
		template := calendar.Event{Title: "Review", Start: day, End: day.Add(time.Hour)}

		// when
		_, err = f.sessions.SaveRecurrence(ctx, s.Id, template, calendar.RecurrenceRule{Frequency: "fortnight", Interval: 1})

		// then
		assert.ErrorIs(t, err, calendar.ErrInvalidRecurrenceRule)
		stored, _ := f.sessions.Get(ctx, s.Id)
		assert.Equal(t, ModalEventRecurrence, stored.Modal.State)
	})

	t.Run("should refuse to save without an open recurrence dialog", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)

		// when
		_, err := f.sessions.SaveRecurrence(ctx, s.Id, calendar.Event{}, calendar.RecurrenceRule{})

		// then
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("should drop instances on cancel", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		_, err := f.sessions.SelectSlot(ctx, s.Id, SlotSelection{Start: day, End: day.Add(time.Hour)})
		require.NoError(t, err)
		_, err = f.sessions.ConfigureRecurrence(ctx, s.Id)
		require.NoError(t, err)

		// when
		updated, err := f.sessions.CancelRecurrence(ctx, s.Id)

		// then
		require.NoError(t, err)
		assert.Equal(t, ModalEditEvent, updated.Modal.State)
		assert.Nil(t, updated.Modal.Target)
	})
}

func TestService_Close(t *testing.T) {
	// given
	f := setupService(t)
	s := f.newSession(t)
	event := f.addEvent(t, "Review")
	color := calendar.ColorWarning
	_, err := f.sessions.SetFilter(ctx, s.Id, calendar.Filter{TitleQuery: "rev", Color: &color})
	require.NoError(t, err)
	_, err = f.sessions.SelectEvent(ctx, s.Id, event.UID)
	require.NoError(t, err)

	// when
	closed, err := f.sessions.Close(ctx, s.Id)

	// then
	require.NoError(t, err)
	assert.Equal(t, Modal{State: ModalNone}, closed.Modal)
	assert.Equal(t, calendar.Filter{}, closed.Filter)
}

func TestService_Events(t *testing.T) {
	// given
	f := setupService(t)
	s := f.newSession(t)
	review := f.addEvent(t, "Review")
	f.addEvent(t, "Standup")
	_, err := f.sessions.SetFilter(ctx, s.Id, calendar.Filter{TitleQuery: "REV"})
	require.NoError(t, err)

	// when
	events, err := f.sessions.Events(ctx, s.Id)

	// then
	require.NoError(t, err)
	assert.Equal(t, []calendar.Event{review}, events)
}

func TestService_CalendarChanges(t *testing.T) {
	t.Run("should close the modal when its event is deleted", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		other := f.newSession(t)
		event := f.addEvent(t, "Review")
		_, err := f.sessions.SelectEvent(ctx, s.Id, event.UID)
		require.NoError(t, err)
		_, err = f.sessions.SelectSlot(ctx, other.Id, SlotSelection{Start: day, End: day.Add(time.Hour)})
		require.NoError(t, err)

		// when
		_, err = f.calendar.DeleteEvent(ctx, event.UID, calendar.ScopeThis)

		// then
		require.NoError(t, err)
		stored, _ := f.sessions.Get(ctx, s.Id)
		assert.Equal(t, Modal{State: ModalNone}, stored.Modal)
		untouched, _ := f.sessions.Get(ctx, other.Id)
		assert.Equal(t, ModalEditEvent, untouched.Modal.State)
	})

	t.Run("should reload the modal target when its event changes", func(t *testing.T) {
		// given
		f := setupService(t)
		s := f.newSession(t)
		event := f.addEvent(t, "Review")
		_, err := f.sessions.SelectEvent(ctx, s.Id, event.UID)
		require.NoError(t, err)
		newStart := day.Add(2 * time.Hour)

		// when
		_, _, err = f.calendar.RescheduleEvent(ctx, event.UID, newStart, newStart.Add(time.Hour), false)

		// then
		require.NoError(t, err)
		stored, _ := f.sessions.Get(ctx, s.Id)
		assert.Equal(t, ModalEventDetail, stored.Modal.State)
		assert.Equal(t, newStart, stored.Modal.Target.Start)
	})
}

func TestService_Sweep(t *testing.T) {
	// given
	f := setupService(t)
	idle := f.newSession(t)
	f.clock.Advance(45 * time.Minute)
	active := f.newSession(t)
	f.clock.Advance(30 * time.Minute)

	// when
	swept, err := f.sessions.Sweep(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	_, err = f.sessions.Get(ctx, idle.Id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.sessions.Get(ctx, active.Id)
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	// given
	f := setupService(t)
	s := f.newSession(t)

	// when
	err := f.sessions.Delete(ctx, s.Id)

	// then
	require.NoError(t, err)
	assert.ErrorIs(t, f.sessions.Delete(ctx, s.Id), ErrSessionNotFound)
}
