package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/quizroom/quizroom-api/internal/models"
)

// QuestionRepository handles quiz question database operations
type QuestionRepository struct {
	db *DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create creates a single question
func (r *QuestionRepository) Create(ctx context.Context, question *models.Question) error {
	query := `
		INSERT INTO questions (id, question, option_a, option_b, option_c, option_d, correct_answer, category, explanation, created_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		question.ID,
		question.Text,
		question.Options.A,
		question.Options.B,
		question.Options.C,
		question.Options.D,
		question.CorrectAnswer,
		question.Category,
		question.Explanation,
		question.CreatedBy,
		question.IsActive,
		time.Now(),
	).Scan(&question.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	return nil
}

// CreateBatch creates multiple questions in one transaction
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, question, option_a, option_b, option_c, option_d, correct_answer, category, explanation, created_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now()
	for _, question := range questions {
		if _, err := stmt.ExecContext(ctx,
			question.ID,
			question.Text,
			question.Options.A,
			question.Options.B,
			question.Options.C,
			question.Options.D,
			question.CorrectAnswer,
			question.Category,
			question.Explanation,
			question.CreatedBy,
			question.IsActive,
			now,
		); err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}
		question.CreatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit questions: %w", err)
	}
	return nil
}

// GetByID retrieves a question by ID
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	query := `
		SELECT id, question, option_a, option_b, option_c, option_d, correct_answer, category, explanation, created_by, is_active, created_at
		FROM questions
		WHERE id = $1
	`

	question := &models.Question{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&question.ID,
		&question.Text,
		&question.Options.A,
		&question.Options.B,
		&question.Options.C,
		&question.Options.D,
		&question.CorrectAnswer,
		&question.Category,
		&question.Explanation,
		&question.CreatedBy,
		&question.IsActive,
		&question.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("question not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return question, nil
}

// RandomSample returns up to limit random active questions, optionally
// filtered by category (case-insensitive substring) and excluding ids the
// client has already seen
func (r *QuestionRepository) RandomSample(ctx context.Context, category string, excludeIDs []uuid.UUID, limit int) ([]*models.Question, error) {
	if limit <= 0 {
		limit = 20
	}

	excluded := make([]string, len(excludeIDs))
	for i, id := range excludeIDs {
		excluded[i] = id.String()
	}

	query := `
		SELECT id, question, option_a, option_b, option_c, option_d, correct_answer, category, explanation, created_by, is_active, created_at
		FROM questions
		WHERE is_active = TRUE
		  AND ($1 = '' OR category ILIKE '%' || $1 || '%')
		  AND NOT (id::text = ANY($2))
		ORDER BY random()
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, category, pq.Array(excluded), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var questions []*models.Question
	for rows.Next() {
		question := &models.Question{}
		if err := rows.Scan(
			&question.ID,
			&question.Text,
			&question.Options.A,
			&question.Options.B,
			&question.Options.C,
			&question.Options.D,
			&question.CorrectAnswer,
			&question.Category,
			&question.Explanation,
			&question.CreatedBy,
			&question.IsActive,
			&question.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	return questions, nil
}
