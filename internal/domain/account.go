package domain

import "time"

// Account is the auth-capability record behind a profile. AuthID is the
// identity id every profile is keyed by. PasswordHash is empty for
// accounts that only ever signed in with an OTP.
type Account struct {
	Email        string    `json:"email" dynamodbav:"email"`
	AuthID       string    `json:"auth_id" dynamodbav:"auth_id"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// Session is an issued bearer credential.
type Session struct {
	AuthID    string    `json:"auth_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
