package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klokku/consolecal/pkg/calendar"
)

type ModalState string

const (
	ModalNone            ModalState = "NONE"
	ModalEventDetail     ModalState = "EVENT_DETAIL"
	ModalEditEvent       ModalState = "EDIT_EVENT"
	ModalEventRecurrence ModalState = "EVENT_RECURRENCE"
)

// SlotSelection is an empty calendar region picked to seed the add-event dialog.
type SlotSelection struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Modal tracks the one dialog a page may have open. The zero value is a closed modal.
//
//	NONE ──select event──▶ EVENT_DETAIL ──edit──▶ EDIT_EVENT ◀──save/cancel── EVENT_RECURRENCE
//	NONE ──select slot───────────────────────────▶ EDIT_EVENT ──configure recurrence──▶
//
// Close returns to NONE from any state.
type Modal struct {
	State ModalState `json:"state"`
	// Target is the event shown or edited; nil in the add-event dialog.
	Target *calendar.Event `json:"target,omitempty"`
	Slot   *SlotSelection  `json:"slot,omitempty"`
}

func (m Modal) state() ModalState {
	if m.State == "" {
		return ModalNone
	}
	return m.State
}

func (m Modal) transition(action string, allowed ...ModalState) error {
	current := m.state()
	for _, s := range allowed {
		if s == current {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, current)
}

// SelectEvent opens the detail view of e. Selecting another event while a detail view is open
// replaces it.
func (m *Modal) SelectEvent(e calendar.Event) error {
	if err := m.transition("select an event", ModalNone, ModalEventDetail); err != nil {
		return err
	}
	target := e.Clone()
	m.State = ModalEventDetail
	m.Target = &target
	m.Slot = nil
	return nil
}

// SelectSlot opens the add-event dialog seeded with slot.
func (m *Modal) SelectSlot(slot SlotSelection) error {
	if err := m.transition("select a slot", ModalNone); err != nil {
		return err
	}
	m.State = ModalEditEvent
	m.Target = nil
	m.Slot = &slot
	return nil
}

func (m *Modal) Edit() error {
	if err := m.transition("edit", ModalEventDetail); err != nil {
		return err
	}
	m.State = ModalEditEvent
	return nil
}

func (m *Modal) ConfigureRecurrence() error {
	if err := m.transition("configure recurrence", ModalEditEvent); err != nil {
		return err
	}
	m.State = ModalEventRecurrence
	return nil
}

// SaveRecurrence returns to the edit dialog with template as the edited event, carrying the
// generated instances for submission. A template without UID edits the current target.
func (m *Modal) SaveRecurrence(template calendar.Event, instances []calendar.Event) error {
	if err := m.transition("save recurrence", ModalEventRecurrence); err != nil {
		return err
	}
	target := template.Clone()
	if target.UID == uuid.Nil && m.Target != nil {
		target.UID = m.Target.UID
	}
	target.SeriesInstances = make([]calendar.Event, 0, len(instances))
	for _, instance := range instances {
		target.SeriesInstances = append(target.SeriesInstances, instance.Clone())
	}
	m.State = ModalEditEvent
	m.Target = &target
	return nil
}

// CancelRecurrence returns to the edit dialog, dropping any generated instances.
func (m *Modal) CancelRecurrence() error {
	if err := m.transition("cancel recurrence", ModalEventRecurrence); err != nil {
		return err
	}
	m.State = ModalEditEvent
	if m.Target != nil {
		m.Target.SeriesInstances = nil
	}
	return nil
}

func (m *Modal) Close() {
	*m = Modal{State: ModalNone}
}

func (m Modal) clone() Modal {
	c := m
	if m.Target != nil {
		target := m.Target.Clone()
		c.Target = &target
	}
	if m.Slot != nil {
		slot := *m.Slot
		c.Slot = &slot
	}
	return c
}
