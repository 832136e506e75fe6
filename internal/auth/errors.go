package auth

import "errors"

var (
	// ErrInvalidRefreshToken is returned when a presented refresh token fails
	// signature or structural verification
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrRefreshTokenExpired is returned when a presented refresh token's
	// embedded expiry has elapsed
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrRefreshTokenRevoked is returned when a refresh token verifies
	// cryptographically but its ledger record is gone: already rotated,
	// logged out, or expired out of storage. This is the replay defense.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)
