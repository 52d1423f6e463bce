package services

import "errors"

// Sentinel errors shared across the auth services. Handlers map these to the
// stable machine-readable codes on the wire.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrAccountExists      = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrEnrollRequired     = errors.New("authenticator enrollment required")
	ErrUnauthorized       = errors.New("missing or expired session")
	ErrUserNotFound       = errors.New("user not found")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrInviteNotPending   = errors.New("invite is not pending")
)
