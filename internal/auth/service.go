// Package auth implements the token service: issuance of access/refresh token
// pairs, single-use refresh rotation, and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/ledger"
	"github.com/quizroom/quizroom-api/internal/token"
)

// RecordLedger is the refresh-token record store the service rotates against
type RecordLedger interface {
	Persist(ctx context.Context, identity ledger.Identity, meta ledger.ClientMeta) (string, error)
	Find(ctx context.Context, id string) (*ledger.Record, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// TokenPair is a freshly issued access + refresh token pair
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Service composes the token codec and the refresh ledger
type Service struct {
	codec      *token.Codec
	ledger     RecordLedger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService creates a token service
func NewService(codec *token.Codec, recordLedger RecordLedger, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		codec:      codec,
		ledger:     recordLedger,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL reports the configured access-token lifetime (cookie max-age)
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh-token lifetime (cookie max-age)
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair mints a token pair for an authenticated identity. The ledger
// record is created first and its id becomes the refresh token's jti.
func (s *Service) IssuePair(ctx context.Context, identity ledger.Identity, meta ledger.ClientMeta) (*TokenPair, error) {
	pair, _, err := s.issuePair(ctx, identity, meta)
	return pair, err
}

// Refresh exchanges a refresh token for a new pair, consuming its record.
// A token may be redeemed at most once: of two concurrent calls presenting
// the same token, exactly one succeeds and the other fails with
// ErrRefreshTokenRevoked.
func (s *Service) Refresh(ctx context.Context, presented string, meta ledger.ClientMeta) (*TokenPair, error) {
	claims, err := s.codec.Verify(presented, token.PurposeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrInvalidRefreshToken
	}

	oldID := claims.TokenID
	if oldID == "" {
		return nil, ErrInvalidRefreshToken
	}

	if _, err := s.ledger.Find(ctx, oldID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrRefreshTokenRevoked
		}
		return nil, fmt.Errorf("failed to look up refresh token record: %w", err)
	}

	identity := ledger.Identity{UserID: claims.UserID, Email: claims.Email}
	pair, newID, err := s.issuePair(ctx, identity, meta)
	if err != nil {
		return nil, err
	}

	// Atomic consume: the delete's removal flag is the proof the old token
	// had not already been redeemed. A no-op delete means a concurrent
	// rotation won, so the pair minted above must not survive.
	removed, err := s.ledger.Delete(ctx, oldID)
	if err != nil {
		s.discard(ctx, newID)
		return nil, fmt.Errorf("failed to consume old refresh token record: %w", err)
	}
	if !removed {
		s.discard(ctx, newID)
		return nil, ErrRefreshTokenRevoked
	}

	return pair, nil
}

// Logout consumes a refresh token's record. Access tokens already issued
// remain valid until their natural expiry. Logging out an already-consumed
// token is not an error.
func (s *Service) Logout(ctx context.Context, presented string) error {
	claims, err := s.codec.Verify(presented, token.PurposeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ErrRefreshTokenExpired
		}
		return ErrInvalidRefreshToken
	}

	if _, err := s.ledger.Delete(ctx, claims.TokenID); err != nil {
		return fmt.Errorf("failed to delete refresh token record: %w", err)
	}
	return nil
}

func (s *Service) issuePair(ctx context.Context, identity ledger.Identity, meta ledger.ClientMeta) (*TokenPair, string, error) {
	recordID, err := s.ledger.Persist(ctx, identity, meta)
	if err != nil {
		return nil, "", fmt.Errorf("failed to persist refresh token record: %w", err)
	}

	accessToken, err := s.codec.Issue(token.Claims{
		UserID:  identity.UserID,
		Email:   identity.Email,
		TokenID: uuid.NewString(),
	}, s.accessTTL, token.PurposeAccess)
	if err != nil {
		s.discard(ctx, recordID)
		return nil, "", fmt.Errorf("failed to issue access token: %w", err)
	}

	refreshToken, err := s.codec.Issue(token.Claims{
		UserID:  identity.UserID,
		Email:   identity.Email,
		TokenID: recordID,
	}, s.refreshTTL, token.PurposeRefresh)
	if err != nil {
		s.discard(ctx, recordID)
		return nil, "", fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, recordID, nil
}

// discard best-effort deletes a record minted by a rotation that failed
func (s *Service) discard(ctx context.Context, id string) {
	_, _ = s.ledger.Delete(ctx, id)
}
