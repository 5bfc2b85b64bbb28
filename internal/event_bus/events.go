package event_bus

const CalendarEventsChangedType EventType = "calendar.events.changed"

// CalendarEventsChanged is published after every committed calendar mutation.
type CalendarEventsChanged struct {
	// Operation is one of create, create_series, update, update_series, replace_series,
	// reschedule, delete.
	Operation string
	// Scope is the deletion scope, empty for other operations.
	Scope string
	// Upserted and Removed hold event UIDs.
	Upserted  []string
	Removed   []string
	StoreSize int
}
