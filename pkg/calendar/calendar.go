// Package calendar owns the console's calendar events: the event store, recurring series
// expansion, scoped mutations, drag/resize rescheduling and the filtered projection the UI
// renders.
package calendar

import "errors"

var ErrInvalidEvent = errors.New("invalid event")
var ErrInvalidTimeRange = errors.New("event end is before its start")
var ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
var ErrHorizonRequired = errors.New("recurrence without end requires a generation horizon")
var ErrDuplicateEventUID = errors.New("duplicate event uid")
var ErrMissingEventUID = errors.New("event uid is required")
var ErrInvalidDeleteScope = errors.New("invalid delete scope")
