package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Specialty string `json:"specialty,omitempty"`
	Role      string `json:"role,omitempty"`
}

type PasswordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StartRequest struct {
	Email string `json:"email"`
	Force bool   `json:"force,omitempty"`
}

type CodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// StartResponse is either code mode (prompt for a 6-digit code) or enroll
// mode carrying the provisioning secret.
type StartResponse struct {
	Mode       string `json:"mode"`
	OtpauthURL string `json:"otpauthUrl,omitempty"`
	Secret     string `json:"secret,omitempty"`
}

type OkResponse struct {
	OK   bool   `json:"ok"`
	Role string `json:"role,omitempty"`
}

type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Specialty string     `json:"specialty"`
	Role      string     `json:"role"`
	ClinicID  *uuid.UUID `json:"clinicId"`
}

type MeResponse struct {
	User *UserResponse `json:"user"`
}

type CreateInviteRequest struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	ExpiresDays int    `json:"expiresDays,omitempty"`
}

type InviteResponse struct {
	ID        uuid.UUID `json:"id"`
	ClinicID  uuid.UUID `json:"clinic_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrorResponse carries a stable machine-readable code; Message is advisory
// and never shown raw to end users.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stable error codes of the wire contract.
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidEmail       = "invalid_email"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidCode        = "invalid_code"
	CodeEnrollRequired     = "enroll_required"
	CodeAccountExists      = "account_exists"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeInternal           = "internal_error"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
