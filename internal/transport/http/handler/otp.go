package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alumni-api/internal/application/otp"
	"github.com/alumni-api/internal/domain"
)

// OTPHandler handles OTP issuance and verification.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	res, err := h.svc.Issue(r.Context(), req.Email, req.UserData)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPSendEnvelope{
		Success: true,
		Message: "OTP sent successfully",
		DevOTP:  res.DevCode,
	})
}

// Verify accepts email and otp from the query string or a JSON body.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVerify(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, OTPVerifyEnvelope{Error: "Email and OTP are required"})
		return
	}
	res, err := h.svc.Verify(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusBadRequest, verifyFailure(res))
		return
	}
	writeJSON(w, http.StatusOK, OTPVerifyEnvelope{
		Valid:    true,
		Message:  "OTP verified successfully",
		UserData: res.UserData,
	})
}

func decodeVerify(r *http.Request) (domain.VerifyOTPRequest, bool) {
	req := domain.VerifyOTPRequest{
		Email: r.URL.Query().Get("email"),
		OTP:   r.URL.Query().Get("otp"),
	}
	if r.Method != http.MethodGet && (req.Email == "" || req.OTP == "") {
		var body domain.VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if req.Email == "" {
				req.Email = body.Email
			}
			if req.OTP == "" {
				req.OTP = body.OTP
			}
		}
	}
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	return req, req.Email != "" && req.OTP != ""
}
