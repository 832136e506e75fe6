package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizResult represents one completed quiz run for a user
type QuizResult struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	TotalQuestions int       `json:"total_questions"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Percentage     float64   `json:"percentage"`
	CreatedAt      time.Time `json:"created_at"`
}
