package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/consolecal/internal/event_bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var day = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service *Service
	store   *MemoryStore
	changes []event_bus.CalendarEventsChanged
}

func setupService(t *testing.T) *serviceFixture {
	f := &serviceFixture{store: NewMemoryStore()}
	bus := event_bus.NewEventBus()
	unsubscribe := event_bus.SubscribeTyped(bus, event_bus.CalendarEventsChangedType,
		func(e event_bus.EventT[event_bus.CalendarEventsChanged]) error {
			f.changes = append(f.changes, e.Data)
			return nil
		})
	t.Cleanup(unsubscribe)
	f.service = NewService(f.store, bus, Horizon{MaxOccurrences: 50, Days: 365})
	return f
}

func meeting(title string, start time.Time) Event {
	return Event{Title: title, Start: start, End: start.Add(time.Hour), Color: ColorSuccess}
}

func (f *serviceFixture) createSeries(t *testing.T, title string, count int) []Event {
	t.Helper()
	rule := RecurrenceRule{Frequency: Daily, Interval: 1, End: RecurrenceEnd{Kind: EndAfter, Count: count}}
	instances, err := f.service.CreateRecurringEvent(ctx, meeting(title, day), rule)
	require.NoError(t, err)
	require.Len(t, instances, count)
	return instances
}

func (f *serviceFixture) list(t *testing.T) []Event {
	t.Helper()
	events, err := f.store.List(ctx)
	require.NoError(t, err)
	return events
}

func TestService_AddEvent(t *testing.T) {
	t.Run("should store a new event under a fresh uid", func(t *testing.T) {
		// given
		f := setupService(t)
		e := meeting("Review", day)
		e.Color = ""

		// when
		created, err := f.service.AddEvent(ctx, e)

		// then
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.UID)
		assert.Equal(t, ColorPrimary, created.Color)
		assert.False(t, created.Recurring)
		assert.Equal(t, []Event{created}, f.list(t))
		require.Len(t, f.changes, 1)
		assert.Equal(t, "create", f.changes[0].Operation)
		assert.Equal(t, 1, f.changes[0].StoreSize)
	})

	t.Run("should normalize all-day bounds", func(t *testing.T) {
		// given
		f := setupService(t)
		e := Event{Title: "Offsite", Start: day, End: day.Add(2 * time.Hour), AllDay: true}

		// when
		created, err := f.service.AddEvent(ctx, e)

		// then
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), created.Start)
		assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), created.End)
	})

	t.Run("should reject invalid events without touching the store", func(t *testing.T) {
		tests := []struct {
			name     string
			event    Event
			expected error
		}{
			{"empty title", Event{Title: "  ", Start: day, End: day}, ErrInvalidEvent},
			{"end before start", Event{Title: "Broken", Start: day, End: day.Add(-time.Minute)}, ErrInvalidTimeRange},
			{"unknown color", Event{Title: "Broken", Start: day, End: day, Color: "purple"}, ErrInvalidEvent},
			{"unknown member status", Event{Title: "Broken", Start: day, End: day, Members: []Member{{Id: "1", Status: "maybe"}}}, ErrInvalidEvent},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := setupService(t)

				_, err := f.service.AddEvent(ctx, tt.event)

				assert.ErrorIs(t, err, tt.expected)
				assert.Empty(t, f.list(t))
				assert.Empty(t, f.changes)
			})
		}
	})
}

func TestService_AddSeries(t *testing.T) {
	t.Run("should store supplied instances under one series", func(t *testing.T) {
		// given
		f := setupService(t)
		instances := []Event{meeting("Sync", day), meeting("Sync", day.AddDate(0, 0, 7))}

		// when
		created, err := f.service.AddSeries(ctx, instances)

		// then
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.True(t, created[0].Recurring)
		assert.True(t, created[0].SeriesId.Valid)
		assert.Equal(t, created[0].SeriesId, created[1].SeriesId)
		assert.NotEqual(t, created[0].UID, created[1].UID)
		assert.Equal(t, created, f.list(t))
	})

	t.Run("should reject an instance uid already in the store", func(t *testing.T) {
		// given
		f := setupService(t)
		existing, err := f.service.AddEvent(ctx, meeting("Existing", day))
		require.NoError(t, err)
		instance := meeting("Sync", day)
		instance.UID = existing.UID

		// when
		_, err = f.service.AddSeries(ctx, []Event{instance})

		// then
		assert.ErrorIs(t, err, ErrDuplicateEventUID)
		assert.Len(t, f.list(t), 1)
	})

	t.Run("should reject an empty series", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.AddSeries(ctx, nil)

		assert.ErrorIs(t, err, ErrInvalidEvent)
	})
}

func TestService_Preview(t *testing.T) {
	f := setupService(t)
	rule := RecurrenceRule{Frequency: Weekly, Interval: 2, End: RecurrenceEnd{Kind: EndAfter, Count: 3}}

	instances, err := f.service.Preview(meeting("Planning", day), rule)

	require.NoError(t, err)
	assert.Len(t, instances, 3)
	assert.Empty(t, f.list(t))
}

func TestService_UpdateEvent(t *testing.T) {
	t.Run("should replace a standalone event", func(t *testing.T) {
		// given
		f := setupService(t)
		created, err := f.service.AddEvent(ctx, meeting("Review", day))
		require.NoError(t, err)
		edit := created
		edit.Title = "Design review"
		edit.Start = day.Add(time.Hour)
		edit.End = day.Add(2 * time.Hour)

		// when
		updated, found, err := f.service.UpdateEvent(ctx, edit)

		// then
		require.NoError(t, err)
		assert.True(t, found)
		require.Len(t, updated, 1)
		stored := f.list(t)
		require.Len(t, stored, 1)
		assert.Equal(t, created.UID, stored[0].UID)
		assert.Equal(t, "Design review", stored[0].Title)
		assert.Equal(t, day.Add(time.Hour), stored[0].Start)
	})

	t.Run("should ignore an unknown event", func(t *testing.T) {
		// given
		f := setupService(t)
		created, err := f.service.AddEvent(ctx, meeting("Review", day))
		require.NoError(t, err)
		unknown := meeting("Ghost", day)
		unknown.UID = uuid.New()

		// when
		updated, found, err := f.service.UpdateEvent(ctx, unknown)

		// then
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, updated)
		assert.Equal(t, []Event{created}, f.list(t))
		assert.Len(t, f.changes, 1)
	})

	t.Run("should require a uid", func(t *testing.T) {
		f := setupService(t)

		_, _, err := f.service.UpdateEvent(ctx, meeting("Review", day))

		assert.ErrorIs(t, err, ErrMissingEventUID)
	})

	t.Run("should propagate field edits to the series keeping every occurrence timing", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 3)
		other, err := f.service.AddEvent(ctx, meeting("Lunch", day))
		require.NoError(t, err)

		edit := series[1]
		edit.Title = "Daily standup"
		edit.Color = ColorWarning
		edit.Description = "Use the big room"
		edit.MeetingLink = "https://meet.example/standup"
		edit.Members = []Member{{Id: "m2", Name: "Grace", Status: MemberDeclined}}
		edit.Start = edit.Start.Add(3 * time.Hour)
		edit.End = edit.End.Add(3 * time.Hour)

		// when
		updated, found, err := f.service.UpdateEvent(ctx, edit)

		// then
		require.NoError(t, err)
		assert.True(t, found)
		assert.Len(t, updated, 3)

		stored := f.list(t)
		require.Len(t, stored, 4)
		for i, e := range stored[:3] {
			assert.Equal(t, series[i].UID, e.UID)
			assert.Equal(t, series[i].Start, e.Start)
			assert.Equal(t, series[i].End, e.End)
			assert.Equal(t, "Daily standup", e.Title)
			assert.Equal(t, ColorWarning, e.Color)
			assert.Equal(t, "Use the big room", e.Description)
			assert.Equal(t, "https://meet.example/standup", e.MeetingLink)
			assert.Equal(t, []Member{{Id: "m2", Name: "Grace", Status: MemberDeclined}}, e.Members)
		}
		assert.Equal(t, other, stored[3])
		assert.Equal(t, "update_series", f.changes[len(f.changes)-1].Operation)
	})

	t.Run("should widen every occurrence to its own day when the series turns all-day", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Offsite", 3)
		edit := series[1]
		edit.AllDay = true

		// when
		updated, found, err := f.service.UpdateEvent(ctx, edit)

		// then
		require.NoError(t, err)
		assert.True(t, found)
		assert.Len(t, updated, 3)
		stored := f.list(t)
		require.Len(t, stored, 3)
		for i, e := range stored {
			date := time.Date(2025, 4, 1+i, 0, 0, 0, 0, time.UTC)
			assert.Equal(t, series[i].UID, e.UID)
			assert.True(t, e.AllDay)
			assert.Equal(t, date, e.Start)
			assert.Equal(t, date.AddDate(0, 0, 1), e.End)
		}
	})

	t.Run("should keep a renamed series together", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 3)
		edit := series[0]
		edit.Title = "Renamed"
		_, _, err := f.service.UpdateEvent(ctx, edit)
		require.NoError(t, err)

		// when
		removed, err := f.service.DeleteEvent(ctx, series[2].UID, ScopeAll)

		// then
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		assert.Empty(t, f.list(t))
	})

	t.Run("should replace the whole series when the pattern changed", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 4)
		other, err := f.service.AddEvent(ctx, meeting("Lunch", day))
		require.NoError(t, err)

		rule := RecurrenceRule{Frequency: Weekly, Interval: 1, End: RecurrenceEnd{Kind: EndAfter, Count: 2}}
		edit := series[2]
		edit.Title = "Weekly standup"
		edit.SeriesInstances, err = f.service.Preview(edit, rule)
		require.NoError(t, err)

		// when
		updated, found, err := f.service.UpdateEvent(ctx, edit)

		// then
		require.NoError(t, err)
		assert.True(t, found)
		require.Len(t, updated, 2)

		stored := f.list(t)
		require.Len(t, stored, 3)
		assert.Equal(t, other, stored[0])
		assert.Equal(t, updated, stored[1:])
		for _, e := range stored[1:] {
			assert.Equal(t, "Weekly standup", e.Title)
			for _, old := range series {
				assert.NotEqual(t, old.UID, e.UID)
			}
		}
		last := f.changes[len(f.changes)-1]
		assert.Equal(t, "replace_series", last.Operation)
		assert.Len(t, last.Removed, 4)
		assert.Len(t, last.Upserted, 2)
	})

	t.Run("should turn a standalone event into a series", func(t *testing.T) {
		// given
		f := setupService(t)
		created, err := f.service.AddEvent(ctx, meeting("Gym", day))
		require.NoError(t, err)
		rule := RecurrenceRule{Frequency: Daily, Interval: 2, End: RecurrenceEnd{Kind: EndAfter, Count: 3}}
		edit := created
		edit.SeriesInstances, err = f.service.Preview(edit, rule)
		require.NoError(t, err)

		// when
		_, found, err := f.service.UpdateEvent(ctx, edit)

		// then
		require.NoError(t, err)
		assert.True(t, found)
		stored := f.list(t)
		require.Len(t, stored, 3)
		for _, e := range stored {
			assert.True(t, e.Recurring)
			assert.NotEqual(t, created.UID, e.UID)
		}
	})

	t.Run("should leave the store untouched when an edit is invalid", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 3)
		edit := series[0]
		edit.Title = ""

		// when
		_, _, err := f.service.UpdateEvent(ctx, edit)

		// then
		assert.ErrorIs(t, err, ErrInvalidEvent)
		assert.Equal(t, series, f.list(t))
	})
}

func TestService_RescheduleEvent(t *testing.T) {
	// given
	f := setupService(t)
	series := f.createSeries(t, "Standup", 3)
	moved := series[1]
	moved.Start = moved.Start.Add(30 * time.Minute)
	moved.End = moved.End.Add(45 * time.Minute)

	// when
	updated, found, err := f.service.RescheduleEvent(ctx, moved.UID, moved.Start, moved.End, false)

	// then
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, moved, updated)
	stored := f.list(t)
	assert.Equal(t, series[0], stored[0])
	assert.Equal(t, moved, stored[1])
	assert.Equal(t, series[2], stored[2])
}

func TestService_DeleteEvent(t *testing.T) {
	t.Run("should delete only the target with scope this", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 3)

		// when
		removed, err := f.service.DeleteEvent(ctx, series[1].UID, ScopeThis)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, []Event{series[0], series[2]}, f.list(t))
	})

	t.Run("should keep the occurrences before the target with scope thisAndFollowing", func(t *testing.T) {
		for k := 1; k <= 5; k++ {
			f := setupService(t)
			series := f.createSeries(t, "Standup", 5)

			removed, err := f.service.DeleteEvent(ctx, series[k-1].UID, ScopeThisAndFollowing)

			require.NoError(t, err)
			assert.Equal(t, 5-(k-1), removed)
			assert.Equal(t, series[:k-1], f.list(t)[:k-1])
			assert.Len(t, f.list(t), k-1)
		}
	})

	t.Run("should delete the whole series with scope all", func(t *testing.T) {
		// given
		f := setupService(t)
		other, err := f.service.AddEvent(ctx, meeting("Lunch", day))
		require.NoError(t, err)
		series := f.createSeries(t, "Standup", 4)

		// when
		removed, err := f.service.DeleteEvent(ctx, series[2].UID, ScopeAll)

		// then
		require.NoError(t, err)
		assert.Equal(t, 4, removed)
		assert.Equal(t, []Event{other}, f.list(t))
		last := f.changes[len(f.changes)-1]
		assert.Equal(t, "delete", last.Operation)
		assert.Equal(t, "all", last.Scope)
		assert.Len(t, last.Removed, 4)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		// given
		f := setupService(t)
		series := f.createSeries(t, "Standup", 3)
		_, err := f.service.DeleteEvent(ctx, series[0].UID, ScopeThis)
		require.NoError(t, err)
		before := f.list(t)
		changes := len(f.changes)

		// when
		removed, err := f.service.DeleteEvent(ctx, series[0].UID, ScopeThis)

		// then
		require.NoError(t, err)
		assert.Zero(t, removed)
		assert.Equal(t, before, f.list(t))
		assert.Len(t, f.changes, changes)
	})

	t.Run("should match series without ids by title and color", func(t *testing.T) {
		// given
		f := setupService(t)
		a := Event{UID: uuid.New(), Title: "Standup", Start: day, End: day, Color: ColorPrimary, Recurring: true}
		b := Event{UID: uuid.New(), Title: "Standup", Start: day.AddDate(0, 0, 7), End: day.AddDate(0, 0, 7), Color: ColorPrimary, Recurring: true}
		require.NoError(t, f.store.ReplaceAll(ctx, []Event{a, b}))

		// when
		removed, err := f.service.DeleteEvent(ctx, b.UID, ScopeAll)

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		assert.Empty(t, f.list(t))
	})

	t.Run("should reject an unknown scope", func(t *testing.T) {
		f := setupService(t)

		_, err := f.service.DeleteEvent(ctx, uuid.New(), "everything")

		assert.ErrorIs(t, err, ErrInvalidDeleteScope)
	})
}

func TestService_Seed(t *testing.T) {
	t.Run("should fill an empty store", func(t *testing.T) {
		f := setupService(t)
		events := []Event{{UID: uuid.New(), Title: "Seeded", Start: day, End: day, Color: ColorPrimary}}

		stored, err := f.service.Seed(ctx, events)

		require.NoError(t, err)
		assert.Equal(t, 1, stored)
		assert.Equal(t, events, f.list(t))
	})

	t.Run("should leave a populated store untouched", func(t *testing.T) {
		f := setupService(t)
		existing, err := f.service.AddEvent(ctx, meeting("Existing", day))
		require.NoError(t, err)

		stored, err := f.service.Seed(ctx, []Event{{UID: uuid.New(), Title: "Seeded", Start: day, End: day, Color: ColorPrimary}})

		require.NoError(t, err)
		assert.Zero(t, stored)
		assert.Equal(t, []Event{existing}, f.list(t))
	})
}
