package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quizroom/quizroom-api/internal/token"
	"go.uber.org/zap"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// AccessTokenCookie is the cookie the auth gate reads before falling back to
// the Authorization header
const AccessTokenCookie = "accessToken"

// Machine-readable error codes returned by the auth gate
const (
	CodeNoToken      = "NO_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeInvalidToken = "INVALID_TOKEN"
)

// ClaimsFromContext extracts the verified identity claims from the request
// context. Returns nil when the request did not pass the auth gate.
func ClaimsFromContext(r *http.Request) *token.Claims {
	claims, ok := r.Context().Value(claimsContextKey).(*token.Claims)
	if !ok {
		return nil
	}
	return claims
}

// SetClaimsInContext attaches verified claims to a context. Exposed for
// handler tests that bypass the gate.
func SetClaimsInContext(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// Auth creates the authentication gate. It extracts a bearer credential
// (httpOnly cookie first, Authorization header second), verifies it as an
// access token, and attaches the claims to the request context. No identity
// is ever attached without a successful signature-and-expiry verification.
func Auth(codec *token.Codec, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				respondAuthError(w, http.StatusUnauthorized, CodeNoToken, "No token provided")
				return
			}

			claims, err := codec.Verify(tokenString, token.PurposeAccess)
			if err != nil {
				// Peek is diagnostics only; the rejection below is decided
				// solely by Verify
				if logger.Core().Enabled(zap.DebugLevel) {
					if peeked, peekErr := codec.Peek(tokenString); peekErr == nil {
						logger.Debug("access_token_rejected",
							zap.String("jti", peeked.TokenID),
							zap.Error(err),
						)
					}
				}

				if errors.Is(err, token.ErrExpired) {
					respondAuthError(w, http.StatusUnauthorized, CodeTokenExpired, "Token expired, refresh required")
					return
				}
				respondAuthError(w, http.StatusForbidden, CodeInvalidToken, "Invalid token")
				return
			}

			ctx := SetClaimsInContext(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken returns the bearer credential: the same-site httpOnly cookie
// takes precedence, then an Authorization: Bearer header.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	_ = json.NewEncoder(w).Encode(response)
}
