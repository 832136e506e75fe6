package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/models"
)

// ResultRepository handles quiz result database operations
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Create persists a completed quiz run
func (r *ResultRepository) Create(ctx context.Context, result *models.QuizResult) error {
	query := `
		INSERT INTO quiz_results (id, user_id, total_questions, correct_answers, wrong_answers, percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		result.ID,
		result.UserID,
		result.TotalQuestions,
		result.CorrectAnswers,
		result.WrongAnswers,
		result.Percentage,
		time.Now(),
	).Scan(&result.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create quiz result: %w", err)
	}

	return nil
}

// GetByUserID returns a user's quiz history, newest first
func (r *ResultRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.QuizResult, error) {
	query := `
		SELECT id, user_id, total_questions, correct_answers, wrong_answers, percentage, created_at
		FROM quiz_results
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*models.QuizResult
	for rows.Next() {
		result := &models.QuizResult{}
		if err := rows.Scan(
			&result.ID,
			&result.UserID,
			&result.TotalQuestions,
			&result.CorrectAnswers,
			&result.WrongAnswers,
			&result.Percentage,
			&result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quiz result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quiz results: %w", err)
	}

	return results, nil
}
