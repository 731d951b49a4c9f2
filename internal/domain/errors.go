package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
// Anything that does not wrap one of these is a system error.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")

	ErrExpired               = errors.New("otp expired")
	ErrInvalidCode           = errors.New("invalid otp")
	ErrExhausted             = errors.New("otp attempts exhausted")
	ErrInvalidIdentityFormat = errors.New("invalid identity format")
)
