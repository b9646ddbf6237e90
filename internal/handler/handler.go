// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
	"github.com/Shivanand-hulikatti/mergington-activities/internal/service"
)

// ActivityHandler holds all HTTP handlers for the activities API.
type ActivityHandler struct {
	svc    *service.RegistrationService
	logger zerolog.Logger
}

// NewActivityHandler constructs an ActivityHandler.
func NewActivityHandler(svc *service.RegistrationService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger.With().Str("component", "http").Logger()}
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

// writeServiceError maps a service error to its HTTP status by kind.
func (h *ActivityHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch model.KindOf(err) {
	case model.KindNotFound:
		writeError(w, http.StatusNotFound, capitalize(err.Error()))
	case model.KindConflict, model.KindInvalid:
		writeError(w, http.StatusBadRequest, capitalize(err.Error()))
	default:
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// pathParam returns the unescaped route parameter.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// ListActivities handles GET /activities
// Returns a JSON object keyed by activity name.
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.svc.ListActivities(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make(map[string]model.Activity, len(activities))
	for _, a := range activities {
		out[a.Name] = a
	}
	writeJSON(w, http.StatusOK, out)
}

// GetActivity handles GET /activities/{name}
// The name may also be the activity slug.
func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetActivity(r.Context(), pathParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Detail())
}

// SignUp handles POST /activities/{name}/signup?email=E
func (h *ActivityHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.SignUp)
}

// Unregister handles DELETE /activities/{name}/unregister?email=E
func (h *ActivityHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Unregister)
}

func (h *ActivityHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, activity, email string) (string, error)) {
	msg, err := op(r.Context(), pathParam(r, "name"), r.URL.Query().Get("email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: msg})
}

// GetParticipant handles GET /participants/{email}
// Returns the participant with the names of the activities they joined.
func (h *ActivityHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetParticipant(r.Context(), pathParam(r, "email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RegisterParticipant handles PUT /participants/{email}
// Creates the participant on first use and returns it either way.
func (h *ActivityHandler) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.FindOrCreateParticipant(r.Context(), pathParam(r, "email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func (h *ActivityHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
