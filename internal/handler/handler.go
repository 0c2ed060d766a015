// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the lifecycle and matching services.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/tutormatch/internal/matching"
	"github.com/Shivanand-hulikatti/tutormatch/internal/model"
	"github.com/Shivanand-hulikatti/tutormatch/internal/service"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

// SessionHandler holds all HTTP handlers for the session API.
type SessionHandler struct {
	sessions *service.SessionService
	matcher  *matching.Engine
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *service.SessionService, matcher *matching.Engine) *SessionHandler {
	return &SessionHandler{sessions: sessions, matcher: matcher}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors to status codes. Anything outside the
// domain taxonomy is an infrastructure failure and is not echoed back.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var already *model.AlreadyBookedError
	switch {
	case errors.As(err, &already):
		writeError(w, http.StatusConflict, already.Error())
	case errors.Is(err, model.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrSchedulingConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotBooked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateSession handles POST /sessions
// Publishes a new unbooked session for a tutor.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// DeleteSession handles DELETE /tutors/{email}/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	id := chi.URLParam(r, "id")

	if err := h.sessions.DeleteSession(r.Context(), email, id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BookSession handles POST /sessions/{id}/book
func (h *SessionHandler) BookSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.sessions.BookSession(r.Context(), req.StudentEmail, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// UnbookSession handles POST /sessions/{id}/unbook
func (h *SessionHandler) UnbookSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	session, err := h.sessions.UnbookSession(r.Context(), req.StudentEmail, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// SearchSessions handles GET /sessions/search?course=&student=&from=&to=&filter=
// from and to are RFC 3339 timestamps.
func (h *SessionHandler) SearchSessions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := model.SearchQuery{
		Course:       params.Get("course"),
		StudentEmail: params.Get("student"),
		Filter:       model.FilterKind(params.Get("filter")),
	}

	var err error
	if q.WindowStart, err = parseTimeParam(params.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	if q.WindowEnd, err = parseTimeParam(params.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
		return
	}

	sessions, err := h.matcher.Search(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if sessions == nil {
		sessions = []model.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// TutorSchedule handles GET /tutors/{email}/schedule
func (h *SessionHandler) TutorSchedule(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, model.RoleTutor)
}

// StudentSchedule handles GET /students/{email}/schedule
func (h *SessionHandler) StudentSchedule(w http.ResponseWriter, r *http.Request) {
	h.schedule(w, r, model.RoleStudent)
}

func (h *SessionHandler) schedule(w http.ResponseWriter, r *http.Request, role model.Role) {
	lists, err := h.sessions.RefreshSessionLists(r.Context(), role, chi.URLParam(r, "email"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, lists)
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
