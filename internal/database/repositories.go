package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/models"
)

// UserStore defines the user repository operations handlers depend on.
// The interface enables mock implementations in handler tests.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// QuestionStore defines the question repository operations handlers depend on
type QuestionStore interface {
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	RandomSample(ctx context.Context, category string, excludeIDs []uuid.UUID, limit int) ([]*models.Question, error)
}

// ResultStore defines the quiz result repository operations handlers depend on
type ResultStore interface {
	Create(ctx context.Context, result *models.QuizResult) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.QuizResult, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserStore     = (*UserRepository)(nil)
	_ QuestionStore = (*QuestionRepository)(nil)
	_ ResultStore   = (*ResultRepository)(nil)
)
