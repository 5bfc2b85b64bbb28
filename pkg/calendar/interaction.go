package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Gesture is the outcome of a drag-move or resize on the calendar grid.
type Gesture struct {
	EventUID uuid.UUID
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// Interaction turns drag and resize gestures into single-occurrence reschedules.
// Overlapping events are allowed.
type Interaction struct {
	service *Service
}

func NewInteraction(service *Service) *Interaction {
	return &Interaction{service: service}
}

// Apply moves the gesture's event to its new bounds, keeping every other field. found is false
// when the event no longer exists.
func (i *Interaction) Apply(ctx context.Context, g Gesture) (Event, bool, error) {
	moved, found, err := i.service.RescheduleEvent(ctx, g.EventUID, g.Start, g.End, g.AllDay)
	if err != nil {
		return Event{}, false, err
	}
	if !found {
		log.Debugf("gesture on unknown event %s ignored", g.EventUID)
	}
	return moved, found, nil
}
