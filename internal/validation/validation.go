package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/quizroom/quizroom-api/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("answer_option", validateAnswerOption); err != nil {
		panic(fmt.Sprintf("failed to register answer_option validator: %v", err))
	}
}

// validateAnswerOption validates that a string is one of the four answer options
func validateAnswerOption(fl validator.FieldLevel) bool {
	switch models.AnswerOption(fl.Field().String()) {
	case models.AnswerOptionA, models.AnswerOptionB, models.AnswerOptionC, models.AnswerOptionD:
		return true
	default:
		return false
	}
}

// SanitizeText trims whitespace and removes control characters from input
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateAnswerOption validates an answer option string value
func ValidateAnswerOption(value string) error {
	switch models.AnswerOption(value) {
	case models.AnswerOptionA, models.AnswerOptionB, models.AnswerOptionC, models.AnswerOptionD:
		return nil
	default:
		return fmt.Errorf("invalid answer option: %s (must be 'A', 'B', 'C', or 'D')", value)
	}
}
