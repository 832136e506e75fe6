package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/queue"
)

// AuthEventRepository persists auth audit events consumed from the queue
type AuthEventRepository struct {
	db *DB
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Create persists an auth audit event
func (r *AuthEventRepository) Create(ctx context.Context, event *queue.Event) error {
	query := `
		INSERT INTO auth_events (id, event_type, user_id, email, user_agent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var userID any
	if event.UserID != "" {
		parsed, err := uuid.Parse(event.UserID)
		if err != nil {
			return fmt.Errorf("invalid user id in event: %w", err)
		}
		userID = parsed
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Type,
		userID,
		nullableString(event.Email),
		nullableString(event.UserAgent),
		nullableString(event.IPAddress),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to persist auth event: %w", err)
	}

	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
