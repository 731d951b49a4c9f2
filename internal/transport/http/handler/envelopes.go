package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alumni-api/internal/domain"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// OTPSendEnvelope answers an issuance request. DevOTP is only set outside production.
type OTPSendEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DevOTP  string `json:"devOtp,omitempty"`
}

// OTPVerifyEnvelope answers a verification request.
type OTPVerifyEnvelope struct {
	Valid             bool                   `json:"valid"`
	Message           string                 `json:"message,omitempty"`
	Error             string                 `json:"error,omitempty"`
	AttemptsRemaining *int                   `json:"attempts_remaining,omitempty"`
	UserData          map[string]interface{} `json:"userData,omitempty"`
}

// ProfileEnvelope wraps profile responses.
type ProfileEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    *domain.Profile `json:"data,omitempty"`
}

// AuthEnvelope wraps sign-in responses.
type AuthEnvelope struct {
	Bearer   string          `json:"Bearer,omitempty"`
	Session  *domain.Session `json:"session,omitempty"`
	Profile  *domain.Profile `json:"profile,omitempty"`
	Created  bool            `json:"created"`
	Redirect string          `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func verifyFailure(res *domain.VerifyResult) OTPVerifyEnvelope {
	remaining := res.AttemptsRemaining
	return OTPVerifyEnvelope{Error: string(res.Reason), AttemptsRemaining: &remaining}
}

// writeServiceError maps domain sentinels to status codes. Anything else is a
// system error: logged with the request id and answered generically.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrInvalidIdentityFormat),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrInvalidCode),
		errors.Is(err, domain.ErrExhausted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		reqID := chimiddleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", reqID, "err", err)
		writeJSON(w, http.StatusInternalServerError, MessageEnvelope{
			Error:     "internal server error",
			RequestID: reqID,
		})
	}
}
