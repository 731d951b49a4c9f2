package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alumni-api/internal/application/profile"
	"github.com/alumni-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProvision_CreatedThenExisting(t *testing.T) {
	p := &domain.Profile{AuthID: "a1", Email: "1ab21cs001@x.edu"}
	req := domain.ProvisionProfileRequest{AuthID: "a1", Email: "1ab21cs001@x.edu"}
	body := []byte(`{"auth_id":"a1","email":"1ab21cs001@x.edu"}`)

	svc := &mockProfileSvc{}
	svc.On("Provision", mock.Anything, req).Return(p, true, nil).Once()
	svc.On("Provision", mock.Anything, req).Return(p, false, nil).Once()
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	h.Provision(rr, httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.Provision(rr, httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewReader(body)))
	assert.Equal(t, http.StatusOK, rr.Code)
	var env ProfileEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, "a1", env.Data.AuthID)
}

func TestProvision_TokenForOtherIdentity(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	h := NewProfileHandler(&mockProfileSvc{})

	r := bearerReq(t, jwtP, http.MethodPost, "/v1/profiles", "someone-else", []byte(`{"auth_id":"a1","email":"1ab21cs001@x.edu"}`))
	rr := httptest.NewRecorder()
	serveOptional(jwtP, http.HandlerFunc(h.Provision), rr, r)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProvision_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing fields", domain.ErrBadRequest, http.StatusBadRequest},
		{"bad identity", domain.ErrInvalidIdentityFormat, http.StatusBadRequest},
		{"email owned elsewhere", domain.ErrConflict, http.StatusConflict},
		{"store down", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockProfileSvc{}
			svc.On("Provision", mock.Anything, mock.Anything).Return(nil, false, tc.err)
			h := NewProfileHandler(svc)

			rr := httptest.NewRecorder()
			h.Provision(rr, httptest.NewRequest(http.MethodPost, "/v1/profiles", bytes.NewBufferString(`{"auth_id":"a1"}`)))
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestMe_RequiresAuth(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	h := NewProfileHandler(&mockProfileSvc{})

	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Me), rr, httptest.NewRequest(http.MethodGet, "/v1/profiles/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_ReturnsCallerProfile(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	svc := &mockProfileSvc{}
	svc.On("Get", mock.Anything, "a1").Return(&domain.Profile{AuthID: "a1"}, nil)
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Me), rr, bearerReq(t, jwtP, http.MethodGet, "/v1/profiles/me", "a1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestMe_NotFound(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	svc := &mockProfileSvc{}
	svc.On("Get", mock.Anything, "a1").Return(nil, domain.ErrNotFound)
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Me), rr, bearerReq(t, jwtP, http.MethodGet, "/v1/profiles/me", "a1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestComplete_PassesRequest(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	want := domain.CompleteProfileRequest{FirstName: "Ana", LastName: "Rao", Branch: "CS", PassingYear: 2025}
	svc := &mockProfileSvc{}
	svc.On("Complete", mock.Anything, "a1", want).Return(&domain.Profile{AuthID: "a1", ProfileCompleted: true}, nil)
	h := NewProfileHandler(svc)

	body := []byte(`{"first_name":"Ana","last_name":"Rao","branch":"CS","passing_year":2025}`)
	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Complete), rr, bearerReq(t, jwtP, http.MethodPut, "/v1/profiles/me/complete", "a1", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUpdate_InvalidBody(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	h := NewProfileHandler(&mockProfileSvc{})

	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Update), rr, bearerReq(t, jwtP, http.MethodPut, "/v1/profiles/me", "a1", []byte("nope")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDelete_NoContent(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	svc := &mockProfileSvc{}
	svc.On("Delete", mock.Anything, "a1").Return(nil)
	h := NewProfileHandler(svc)

	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.Delete), rr, bearerReq(t, jwtP, http.MethodDelete, "/v1/profiles/me", "a1", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func multipartAvatar(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "avatar.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAvatar_SniffsContentType(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	svc := &mockProfileSvc{}
	svc.On("UploadAvatar", mock.Anything, "a1", mock.Anything, "image/png").
		Return(&domain.Profile{AuthID: "a1"}, nil)
	h := NewProfileHandler(svc)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	body, ct := multipartAvatar(t, "avatar", png)
	r := bearerReq(t, jwtP, http.MethodPut, "/v1/profiles/me/avatar", "a1", body.Bytes())
	r.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.UploadAvatar), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUploadAvatar_MissingPart(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	h := NewProfileHandler(&mockProfileSvc{})

	body, ct := multipartAvatar(t, "photo", []byte("x"))
	r := bearerReq(t, jwtP, http.MethodPut, "/v1/profiles/me/avatar", "a1", body.Bytes())
	r.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.UploadAvatar), rr, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUploadAvatar_TooLarge(t *testing.T) {
	jwtP := newTestJWTProvider(t)
	h := NewProfileHandler(&mockProfileSvc{})

	body, ct := multipartAvatar(t, "avatar", make([]byte, profile.MaxAvatarBytes+1))
	r := bearerReq(t, jwtP, http.MethodPut, "/v1/profiles/me/avatar", "a1", body.Bytes())
	r.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	serveAuthed(jwtP, http.HandlerFunc(h.UploadAvatar), rr, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
