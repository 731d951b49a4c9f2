package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/domain"
	"github.com/alumni-api/internal/transport/http/middleware"
)

const multipartMemory = 1 << 20

// ProfileHandler handles profile provisioning and self-service endpoints.
type ProfileHandler struct {
	svc profile.Service
}

func NewProfileHandler(svc profile.Service) *ProfileHandler { return &ProfileHandler{svc: svc} }

// Provision creates the profile for an auth id or returns the existing one.
// A bearer token, when present, must belong to the same auth id.
func (h *ProfileHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.AuthID != req.AuthID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	p, created, err := h.svc.Provision(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, ProfileEnvelope{Success: true, Message: "Profile created", Data: p})
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Success: true, Message: "Profile already exists", Data: p})
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	p, err := h.svc.Get(r.Context(), claims.AuthID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Success: true, Data: p})
}

func (h *ProfileHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req domain.CompleteProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Complete(r.Context(), claims.AuthID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Success: true, Message: "Profile completed", Data: p})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Update(r.Context(), claims.AuthID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Success: true, Message: "Profile updated", Data: p})
}

// UploadAvatar accepts a multipart "avatar" part. The content type is sniffed
// from the bytes, not taken from the part header.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, profile.MaxAvatarBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "avatar too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "avatar is required")
		return
	}
	defer file.Close()
	if header.Size > profile.MaxAvatarBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "avatar too large")
		return
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeError(w, http.StatusBadRequest, "unreadable avatar")
		return
	}
	contentType := http.DetectContentType(head[:n])
	body := io.MultiReader(bytes.NewReader(head[:n]), file)

	p, err := h.svc.UploadAvatar(r.Context(), claims.AuthID, body, contentType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{Success: true, Message: "Avatar updated", Data: p})
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), claims.AuthID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
