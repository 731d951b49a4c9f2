package handler

import (
	"errors"
	"net/http"

	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/application/session"
	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/transport/http/middleware"
)

// SessionHandler exposes the redirect decision to clients.
type SessionHandler struct {
	svc      session.Service
	profiles profile.Service
}

func NewSessionHandler(svc session.Service, profiles profile.Service) *SessionHandler {
	return &SessionHandler{svc: svc, profiles: profiles}
}

// Route answers whether the caller may view ?path= or where to go instead.
// Must be mounted behind middleware.OptionalAuth.
func (h *SessionHandler) Route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	st := session.RouteState{Path: path}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		st.HasSession = true
		p, err := h.profiles.Get(r.Context(), claims.AuthID)
		switch {
		case err == nil:
			st.ProfileCompleted = p.ProfileCompleted
		case errors.Is(err, domain.ErrNotFound):
		default:
			writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.svc.Decide(st))
}
