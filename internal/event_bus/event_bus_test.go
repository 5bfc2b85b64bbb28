package event_bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	t.Run("should run handlers in subscription order", func(t *testing.T) {
		// given
		bus := NewEventBus()
		var calls []int
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { calls = append(calls, 1); return nil })
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { calls = append(calls, 2); return nil })

		// when
		err := bus.Publish(NewEvent(context.Background(), CalendarEventsChangedType, CalendarEventsChanged{}))

		// then
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, calls)
	})

	t.Run("should keep running handlers after a failure or panic", func(t *testing.T) {
		// given
		bus := NewEventBus()
		reached := false
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { return errors.New("boom") })
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { panic("handler panic") })
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { reached = true; return nil })

		// when
		err := bus.Publish(NewEvent(context.Background(), CalendarEventsChangedType, nil))

		// then
		assert.Error(t, err)
		assert.True(t, reached)
	})

	t.Run("should not publish on a cancelled context", func(t *testing.T) {
		// given
		bus := NewEventBus()
		called := false
		bus.Subscribe(CalendarEventsChangedType, func(e Event) error { called = true; return nil })
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// when
		err := bus.Publish(NewEvent(ctx, CalendarEventsChangedType, nil))

		// then
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestSubscribeTyped(t *testing.T) {
	// given
	bus := NewEventBus()
	var received []CalendarEventsChanged
	unsubscribe := SubscribeTyped(bus, CalendarEventsChangedType, func(e EventT[CalendarEventsChanged]) error {
		received = append(received, e.Data)
		return nil
	})

	// when
	require.NoError(t, bus.Publish(NewEvent(context.Background(), CalendarEventsChangedType, "not a change")))
	require.NoError(t, bus.Publish(NewEvent(context.Background(), CalendarEventsChangedType, CalendarEventsChanged{Operation: "delete", Scope: "all"})))
	unsubscribe()
	require.NoError(t, bus.Publish(NewEvent(context.Background(), CalendarEventsChangedType, CalendarEventsChanged{Operation: "create"})))

	// then
	assert.Equal(t, []CalendarEventsChanged{{Operation: "delete", Scope: "all"}}, received)
}
