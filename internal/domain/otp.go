package domain

import "time"

// OTPRecord is the single live code for an identity.
// PK: email. ExpiresAtUnix doubles as the DynamoDB TTL attribute.
type OTPRecord struct {
	Email         string                 `json:"email" dynamodbav:"email"`
	Code          string                 `json:"code" dynamodbav:"code"`
	IssuedAt      time.Time              `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt     time.Time              `json:"expires_at" dynamodbav:"expires_at"`
	ExpiresAtUnix int64                  `json:"-" dynamodbav:"expires_at_unix"`
	Attempts      int                    `json:"attempts" dynamodbav:"attempts"`
	UserData      map[string]interface{} `json:"user_data,omitempty" dynamodbav:"user_data,omitempty"`
	Version       int64                  `json:"version" dynamodbav:"version"`
}

// Expired reports whether the record can no longer be verified at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// OTPOp tells an OTP store what to persist after an OTPMutator ran.
type OTPOp int

const (
	OTPKeep OTPOp = iota
	OTPSave
	OTPDelete
)

// OTPMutator inspects the live record for an identity (nil when there is none)
// and may modify it in place. Stores may call it more than once when they
// retry after a concurrent write, so it must not have side effects.
type OTPMutator func(rec *OTPRecord) OTPOp

// VerifyReason classifies a failed verification.
type VerifyReason string

const (
	ReasonNone      VerifyReason = ""
	ReasonNoCode    VerifyReason = "No OTP found"
	ReasonExpired   VerifyReason = "OTP has expired"
	ReasonInvalid   VerifyReason = "Invalid OTP"
	ReasonExhausted VerifyReason = "Too many failed attempts, request a new OTP"
)

// Err returns the sentinel error matching the reason, or nil for success.
func (r VerifyReason) Err() error {
	switch r {
	case ReasonNoCode:
		return ErrNotFound
	case ReasonExpired:
		return ErrExpired
	case ReasonInvalid:
		return ErrInvalidCode
	case ReasonExhausted:
		return ErrExhausted
	default:
		return nil
	}
}

// VerifyResult is the structured outcome of an OTP check. Expected failures
// are reported here rather than as errors.
type VerifyResult struct {
	Valid             bool
	Reason            VerifyReason
	AttemptsRemaining int
	UserData          map[string]interface{}
}

// IssueResult is returned to the caller after a code was stored and delivered.
// DevCode is only populated outside production.
type IssueResult struct {
	Email     string
	ExpiresAt time.Time
	DevCode   string
}

type SendOTPRequest struct {
	Email    string                 `json:"email" validate:"required,email"`
	UserData map[string]interface{} `json:"userData,omitempty"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}
