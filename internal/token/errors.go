package token

import "errors"

var (
	// ErrExpired is returned when a token's embedded expiry has elapsed
	ErrExpired = errors.New("token expired")

	// ErrInvalidSignature is returned when a token is malformed or its
	// signature does not verify against the configured secret
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrPurposeMismatch is returned when a token issued for one purpose
	// (access vs refresh) is presented for the other
	ErrPurposeMismatch = errors.New("token purpose mismatch")
)
