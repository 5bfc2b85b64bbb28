package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/consolecal/internal/rest"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Calendar
	r.HandleFunc("/api/calendar/event", deps.CalendarHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event", deps.CalendarHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/recurring", deps.CalendarHandler.CreateRecurringEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/calendar/event/{eventUid}/schedule", deps.CalendarHandler.RescheduleEvent).Methods("PATCH")
	r.HandleFunc("/api/calendar/recurrence/preview", deps.CalendarHandler.PreviewRecurrence).Methods("POST")
	r.HandleFunc("/api/calendar/export.ics", deps.CalendarHandler.ExportICS).Methods("GET")

	// Page session
	r.HandleFunc("/api/session", deps.SessionHandler.Create).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}", deps.SessionHandler.Get).Methods("GET")
	r.HandleFunc("/api/session/{sessionId}", deps.SessionHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/session/{sessionId}/select-event", deps.SessionHandler.SelectEvent).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/select-slot", deps.SessionHandler.SelectSlot).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/edit", deps.SessionHandler.Edit).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/recurrence", deps.SessionHandler.ConfigureRecurrence).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/recurrence/save", deps.SessionHandler.SaveRecurrence).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/recurrence/cancel", deps.SessionHandler.CancelRecurrence).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/close", deps.SessionHandler.Close).Methods("POST")
	r.HandleFunc("/api/session/{sessionId}/filter", deps.SessionHandler.SetFilter).Methods("PUT")
	r.HandleFunc("/api/session/{sessionId}/events", deps.SessionHandler.Events).Methods("GET")

	// Ops
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
}
