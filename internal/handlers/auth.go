package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/auth"
	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/ledger"
	"github.com/quizroom/quizroom-api/internal/middleware"
	"github.com/quizroom/quizroom-api/internal/models"
	"github.com/quizroom/quizroom-api/internal/queue"
	"github.com/quizroom/quizroom-api/internal/request"
	"github.com/quizroom/quizroom-api/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RefreshTokenCookie is the httpOnly cookie carrying the refresh token
const RefreshTokenCookie = "refreshToken"

// AuthHandler handles registration, login, token refresh, logout, and the
// self-profile endpoint
type AuthHandler struct {
	users  database.UserStore
	tokens *auth.Service
	events queue.EventQueue
	logger *zap.Logger
}

// NewAuthHandler creates an auth handler. events may be nil, which disables
// audit publishing.
func NewAuthHandler(users database.UserStore, tokens *auth.Service, events queue.EventQueue, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		events: events,
		logger: logger,
	}
}

type createUserRequest struct {
	FirstName string `json:"FirstName" validate:"required"`
	LastName  string `json:"LastName" validate:"required"`
	Username  string `json:"Username" validate:"required"`
	Email     string `json:"Email" validate:"required,email"`
	Password  string `json:"Password" validate:"required,min=8"`
}

type loginUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// CreateUser handles POST /auth/createUser
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "All registration fields are required")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid registration payload")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed_to_hash_password", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create user")
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		FirstName:    validation.SanitizeText(req.FirstName),
		LastName:     validation.SanitizeText(req.LastName),
		Username:     validation.SanitizeText(req.Username),
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	ctx := r.Context()
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			respondJSONError(w, http.StatusConflict, "USER_EXISTS", "User already exists")
			return
		}
		h.logger.Error("failed_to_create_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create user")
		return
	}

	pair, err := h.issueSession(w, r, user)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to issue session")
		return
	}

	h.publishEvent(ctx, queue.EventUserRegistered, user, r)

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Registration successful",
		"user":    user,
		"tokens":  pair,
	})
}

// LoginUser handles POST /auth/loginUser
func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req loginUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "Email and password are required")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed_to_look_up_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to log in")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	// The optional username check fails closed: a mismatch is
	// indistinguishable from a bad password to avoid a probing oracle
	if req.Username != "" && req.Username != user.Username {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	pair, err := h.issueSession(w, r, user)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to issue session")
		return
	}

	h.publishEvent(ctx, queue.EventSessionLogin, user, r)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"tokens":  pair,
	})
}

// Refresh handles POST /auth/refresh. The presented refresh token is
// consumed: a second redemption of the same token fails.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := h.extractRefreshToken(r)
	if presented == "" {
		respondJSONError(w, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "Refresh token missing")
		return
	}

	ctx := r.Context()
	meta := clientMeta(r)

	pair, err := h.tokens.Refresh(ctx, presented, meta)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRefreshTokenRevoked):
			h.publishAnonEvent(ctx, queue.EventRefreshDenied, r)
			respondJSONError(w, http.StatusForbidden, "REFRESH_TOKEN_REVOKED", "Refresh token already used or revoked")
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			respondJSONError(w, http.StatusForbidden, "REFRESH_TOKEN_EXPIRED", "Refresh token expired, log in again")
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			respondJSONError(w, http.StatusForbidden, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
		default:
			h.logger.Error("failed_to_rotate_refresh_token", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to refresh tokens, retry")
		}
		return
	}

	h.setTokenCookies(w, pair)

	h.publishAnonEvent(ctx, queue.EventSessionRefresh, r)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Tokens refreshed successfully",
		"tokens":  pair,
	})
}

// Logout handles POST /auth/logout: consumes the refresh record and clears
// the session cookies. Already-issued access tokens age out naturally.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	presented := h.extractRefreshToken(r)

	// Cookies are cleared regardless of token state
	h.clearTokenCookies(w)

	if presented != "" {
		if err := h.tokens.Logout(r.Context(), presented); err != nil &&
			!errors.Is(err, auth.ErrInvalidRefreshToken) && !errors.Is(err, auth.ErrRefreshTokenExpired) {
			h.logger.Error("failed_to_log_out", zap.Error(err))
			respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to log out")
			return
		}
		h.publishAnonEvent(r.Context(), queue.EventSessionLogout, r)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

// SelfData handles GET /auth/selfData. The auth gate has already verified
// the access token and attached the claims.
func (h *AuthHandler) SelfData(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "NO_TOKEN", "No verified identity on request")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid subject in token")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "USER_NOT_FOUND", "User no longer exists")
			return
		}
		h.logger.Error("failed_to_load_self_profile", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to load profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// issueSession mints a token pair for the user and sets the session cookies
func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user *models.User) (*auth.TokenPair, error) {
	identity := ledger.Identity{UserID: user.ID.String(), Email: user.Email}

	pair, err := h.tokens.IssuePair(r.Context(), identity, clientMeta(r))
	if err != nil {
		h.logger.Error("failed_to_issue_token_pair", zap.Error(err))
		return nil, err
	}

	h.setTokenCookies(w, pair)
	return pair, nil
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(h.tokens.AccessTTL() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.tokens.RefreshTTL() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// extractRefreshToken reads the refresh token from the request body, falling
// back to the session cookie
func (h *AuthHandler) extractRefreshToken(r *http.Request) string {
	var req refreshRequest
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *AuthHandler) publishEvent(ctx context.Context, eventType queue.EventType, user *models.User, r *http.Request) {
	if h.events == nil {
		return
	}
	event := queue.NewEvent(eventType, user.ID.String(), user.Email)
	meta := clientMeta(r)
	event.UserAgent = meta.UserAgent
	event.IPAddress = meta.IPAddress
	h.publish(ctx, event)
}

// publishAnonEvent records events where the acting user is not known from
// a verified claim, such as refresh denials and logouts.
func (h *AuthHandler) publishAnonEvent(ctx context.Context, eventType queue.EventType, r *http.Request) {
	if h.events == nil {
		return
	}
	event := queue.NewEvent(eventType, "", "")
	meta := clientMeta(r)
	event.UserAgent = meta.UserAgent
	event.IPAddress = meta.IPAddress
	h.publish(ctx, event)
}

// publish is best-effort: audit events never fail the request
func (h *AuthHandler) publish(ctx context.Context, event *queue.Event) {
	if err := h.events.Publish(ctx, event); err != nil {
		h.logger.Warn("failed_to_publish_auth_event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func clientMeta(r *http.Request) ledger.ClientMeta {
	return ledger.ClientMeta{
		UserAgent: r.UserAgent(),
		IPAddress: request.ClientIP(r),
	}
}
