package calendar

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klokku/consolecal/internal/rest"
	"github.com/klokku/consolecal/internal/utils"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	calendar    *Service
	interaction *Interaction
	clock       utils.Clock
}

func NewHandler(s *Service, interaction *Interaction, clock utils.Clock) *Handler {
	return &Handler{
		calendar:    s,
		interaction: interaction,
		clock:       clock,
	}
}

// IsClientError reports whether err was caused by the request rather than by storage.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrInvalidRecurrenceRule) ||
		errors.Is(err, ErrHorizonRequired) ||
		errors.Is(err, ErrDuplicateEventUID) ||
		errors.Is(err, ErrMissingEventUID) ||
		errors.Is(err, ErrInvalidDeleteScope)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if IsClientError(err) {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	log.Errorf("calendar request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func parseEventUid(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	eventUidString := mux.Vars(r)["eventUid"]
	uid, err := uuid.Parse(eventUidString)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid event uid", "'eventUid' must be a UUID")
		return uuid.Nil, false
	}
	return uid, true
}

// GetEvents returns the stored events matching the title, from, to and color query parameters.
// An event matches the from/to range when it starts within it; a single bound is rejected.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := FilterFromQuery(r.URL.Query())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}

	events, err := h.calendar.GetEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, EventsToDTO(Project(events, filter)))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseEventUid(w, r)
	if !ok {
		return
	}
	event, found, err := h.calendar.GetEvent(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !found {
		rest.WriteError(w, http.StatusNotFound, "Event not found", uid.String())
		return
	}
	rest.WriteJSON(w, http.StatusOK, EventToDTO(event))
}

// CreateEvent stores a single event, or a whole series when the body carries events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	event, err := DTOToEvent(eventDTO)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var created []Event
	if len(event.SeriesInstances) > 0 {
		created, err = h.calendar.AddSeries(r.Context(), event.SeriesInstances)
	} else {
		var e Event
		e, err = h.calendar.AddEvent(r.Context(), event)
		created = []Event{e}
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, EventsToDTO(created))
}

func (h *Handler) CreateRecurringEvent(w http.ResponseWriter, r *http.Request) {
	template, rule, ok := decodeRecurringRequest(w, r)
	if !ok {
		return
	}
	created, err := h.calendar.CreateRecurringEvent(r.Context(), template, rule)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, EventsToDTO(created))
}

// PreviewRecurrence expands a rule for the recurrence editor without storing the result.
func (h *Handler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	template, rule, ok := decodeRecurringRequest(w, r)
	if !ok {
		return
	}
	instances, err := h.calendar.Preview(template, rule)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, EventsToDTO(instances))
}

func decodeRecurringRequest(w http.ResponseWriter, r *http.Request) (Event, RecurrenceRule, bool) {
	var request RecurringEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Event{}, RecurrenceRule{}, false
	}
	template, err := DTOToEvent(request.Event)
	if err != nil {
		writeServiceError(w, err)
		return Event{}, RecurrenceRule{}, false
	}
	return template, DTOToRule(request.Rule), true
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseEventUid(w, r)
	if !ok {
		return
	}
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	eventDTO.UID = ""
	event, err := DTOToEvent(eventDTO)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	event.UID = uid

	updated, found, err := h.calendar.UpdateEvent(r.Context(), event)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, MutationResultDTO{Found: found, Events: EventsToDTO(updated)})
}

// RescheduleEvent applies a drag or resize to a single event.
func (h *Handler) RescheduleEvent(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseEventUid(w, r)
	if !ok {
		return
	}
	var schedule ScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	moved, found, err := h.interaction.Apply(r.Context(), Gesture{
		EventUID: uid,
		Start:    schedule.Start.Time,
		End:      schedule.End.Time,
		AllDay:   schedule.AllDay,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result := MutationResultDTO{Found: found, Events: []EventDTO{}}
	if found {
		result.Events = append(result.Events, EventToDTO(moved))
	}
	rest.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	uid, ok := parseEventUid(w, r)
	if !ok {
		return
	}
	scope, err := ParseDeleteScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	removed, err := h.calendar.DeleteEvent(r.Context(), uid, scope)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, DeleteResultDTO{Removed: removed})
}

// ExportICS renders the event list, filtered as in GetEvents, as an iCalendar file.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	filter, err := FilterFromQuery(r.URL.Query())
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}
	events, err := h.calendar.GetEvents(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(ExportICS(Project(events, filter), h.clock.Now()))); err != nil {
		log.Errorf("failed to write calendar export: %v", err)
	}
}
