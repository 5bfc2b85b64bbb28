package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klokku/consolecal/internal/rest"
	"github.com/klokku/consolecal/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

type SlotDTO struct {
	Start calendar.Timestamp `json:"start"`
	End   calendar.Timestamp `json:"end"`
}

type ModalDTO struct {
	State  ModalState         `json:"state"`
	Target *calendar.EventDTO `json:"target,omitempty"`
	Slot   *SlotDTO           `json:"slot,omitempty"`
}

type SessionDTO struct {
	Id        string              `json:"id"`
	Modal     ModalDTO            `json:"modal"`
	Filter    calendar.FilterDTO  `json:"filter"`
	FocusDate *calendar.Timestamp `json:"focusDate,omitempty"`
}

// SelectEventRequest selects either a stored event or, through "show more", a whole day.
type SelectEventRequest struct {
	EventUid string             `json:"eventUid,omitempty"`
	Date     calendar.Timestamp `json:"date"`
}

func sessionToDTO(s Session) SessionDTO {
	dto := SessionDTO{
		Id:     s.Id,
		Modal:  ModalDTO{State: s.Modal.state()},
		Filter: calendar.FilterToDTO(s.Filter),
	}
	if s.Modal.Target != nil {
		target := calendar.EventToDTO(*s.Modal.Target)
		dto.Modal.Target = &target
	}
	if s.Modal.Slot != nil {
		dto.Modal.Slot = &SlotDTO{
			Start: calendar.Timestamp{Time: s.Modal.Slot.Start},
			End:   calendar.Timestamp{Time: s.Modal.Slot.End},
		}
	}
	if s.FocusDate != nil {
		dto.FocusDate = &calendar.Timestamp{Time: *s.FocusDate}
	}
	return dto
}

type Handler struct {
	sessions *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{sessions: s}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		rest.WriteError(w, http.StatusNotFound, "Session not found", err.Error())
	case errors.Is(err, ErrEventNotFound):
		rest.WriteError(w, http.StatusNotFound, "Event not found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		rest.WriteError(w, http.StatusConflict, "Invalid modal transition", err.Error())
	case calendar.IsClientError(err):
		rest.WriteError(w, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		log.Errorf("session request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func sessionId(r *http.Request) string {
	return mux.Vars(r)["sessionId"]
}

func (h *Handler) respond(w http.ResponseWriter, session Session, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, sessionToDTO(session))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, sessionToDTO(session))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), sessionId(r))
	h.respond(w, session, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), sessionId(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SelectEvent(w http.ResponseWriter, r *http.Request) {
	var request SelectEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if request.EventUid == "" {
		if request.Date.IsZero() {
			rest.WriteError(w, http.StatusBadRequest, "Invalid request", "either 'eventUid' or 'date' is required")
			return
		}
		session, err := h.sessions.SelectDate(r.Context(), sessionId(r), request.Date.Time)
		h.respond(w, session, err)
		return
	}

	eventUid, err := uuid.Parse(request.EventUid)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid event uid", "'eventUid' must be a UUID")
		return
	}
	session, err := h.sessions.SelectEvent(r.Context(), sessionId(r), eventUid)
	h.respond(w, session, err)
}

func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var slot SlotDTO
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session, err := h.sessions.SelectSlot(r.Context(), sessionId(r), SlotSelection{Start: slot.Start.Time, End: slot.End.Time})
	h.respond(w, session, err)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Edit(r.Context(), sessionId(r))
	h.respond(w, session, err)
}

func (h *Handler) ConfigureRecurrence(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.ConfigureRecurrence(r.Context(), sessionId(r))
	h.respond(w, session, err)
}

func (h *Handler) SaveRecurrence(w http.ResponseWriter, r *http.Request) {
	var request calendar.RecurringEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	template, err := calendar.DTOToEvent(request.Event)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	session, err := h.sessions.SaveRecurrence(r.Context(), sessionId(r), template, calendar.DTOToRule(request.Rule))
	h.respond(w, session, err)
}

func (h *Handler) CancelRecurrence(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.CancelRecurrence(r.Context(), sessionId(r))
	h.respond(w, session, err)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Close(r.Context(), sessionId(r))
	h.respond(w, session, err)
}

func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var filterDTO calendar.FilterDTO
	if err := json.NewDecoder(r.Body).Decode(&filterDTO); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter, err := calendar.DTOToFilter(filterDTO)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid filter", err.Error())
		return
	}
	session, err := h.sessions.SetFilter(r.Context(), sessionId(r), filter)
	h.respond(w, session, err)
}

// Events returns the calendar projected through the session filter.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.sessions.Events(r.Context(), sessionId(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, calendar.EventsToDTO(events))
}
