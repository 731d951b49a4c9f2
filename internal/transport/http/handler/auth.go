package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alumni-api/internal/application/signin"
	"github.com/alumni-api/internal/domain"
)

// AuthHandler handles the sign-in flows that end in a session.
type AuthHandler struct {
	svc signin.Service
}

func NewAuthHandler(svc signin.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVerify(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, OTPVerifyEnvelope{Error: "Email and OTP are required"})
		return
	}
	out, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if out.Result != nil && !out.Result.Valid {
		writeJSON(w, http.StatusBadRequest, verifyFailure(out.Result))
		return
	}
	writeJSON(w, http.StatusOK, authEnvelope(out))
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req domain.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.svc.SignUp(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authEnvelope(out))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	out, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authEnvelope(out))
}

func authEnvelope(out *signin.Outcome) AuthEnvelope {
	return AuthEnvelope{
		Bearer:   out.Session.Token,
		Session:  out.Session,
		Profile:  out.Profile,
		Created:  out.Created,
		Redirect: out.Redirect,
	}
}
