package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerOption is one of the four multiple-choice options
type AnswerOption string

const (
	AnswerOptionA AnswerOption = "A"
	AnswerOptionB AnswerOption = "B"
	AnswerOptionC AnswerOption = "C"
	AnswerOptionD AnswerOption = "D"
)

// Options holds the four answer choices for a question
type Options struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Question represents a quiz question. CorrectAnswer and Explanation are
// excluded from quiz-facing payloads and only returned by the practice check.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	Text          string       `json:"question"`
	Options       Options      `json:"options"`
	CorrectAnswer AnswerOption `json:"-"`
	Category      string       `json:"category"`
	Explanation   *string      `json:"-"`
	CreatedBy     *uuid.UUID   `json:"-"`
	IsActive      bool         `json:"-"`
	CreatedAt     time.Time    `json:"-"`
}
