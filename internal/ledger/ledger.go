// Package ledger tracks live refresh-token records in Redis. Every record is
// stored with a server-side TTL so stale entries are purged by the store
// itself, independent of rotation and logout.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "refresh:"

// ErrNotFound is returned when no live record exists for an id. A missing
// record means the token was rotated, logged out, or aged out of storage.
var ErrNotFound = errors.New("refresh token record not found")

// Identity is the subject a refresh-token record is issued to
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// ClientMeta is optional client metadata captured at issuance
type ClientMeta struct {
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Record is a persisted refresh-token record. Its ID doubles as the refresh
// token's jti so rotation can revoke by id without scanning token strings.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// Ledger owns the lifecycle of refresh-token records
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect opens and pings a Redis client from a URL
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// New creates a ledger storing records with the given absolute TTL
func New(client *redis.Client, ttl time.Duration) *Ledger {
	return &Ledger{client: client, ttl: ttl}
}

// Persist creates a refresh-token record and returns its id. The record is
// created before any token is issued; the caller embeds the id as the
// token's jti.
func (l *Ledger) Persist(ctx context.Context, identity Identity, meta ClientMeta) (string, error) {
	now := time.Now()
	record := Record{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		Email:     identity.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal refresh token record: %w", err)
	}

	if err := l.client.Set(ctx, keyPrefix+record.ID, data, l.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to persist refresh token record: %w", err)
	}

	return record.ID, nil
}

// Find retrieves a live record by id
func (l *Ledger) Find(ctx context.Context, id string) (*Record, error) {
	data, err := l.client.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token record: %w", err)
	}

	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token record: %w", err)
	}

	return record, nil
}

// Delete removes a record by id. The removed flag reports whether a record
// was actually deleted; DEL is atomic, so of two concurrent callers exactly
// one observes removed=true. Deleting a missing record is not an error.
func (l *Ledger) Delete(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token record: %w", err)
	}
	return n > 0, nil
}
