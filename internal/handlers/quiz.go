package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/middleware"
	"github.com/quizroom/quizroom-api/internal/models"
	"github.com/quizroom/quizroom-api/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultQuizSize is the number of questions returned when no limit is given
	DefaultQuizSize = 10
	// MaxQuizSize caps the number of questions a single request can fetch
	MaxQuizSize = 50
	// MaxQuestionTextLength is the maximum length for question text
	MaxQuestionTextLength = 2000
)

// QuizHandler handles question creation, quiz sampling, practice checks,
// and result history
type QuizHandler struct {
	questions database.QuestionStore
	results   database.ResultStore
	logger    *zap.Logger
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(questions database.QuestionStore, results database.ResultStore, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{
		questions: questions,
		results:   results,
		logger:    logger,
	}
}

type createQuestionRequest struct {
	Text          string  `json:"question" validate:"required,min=1,max=2000"`
	Options       options `json:"options" validate:"required"`
	CorrectAnswer string  `json:"correctAnswer" validate:"required,answer_option"`
	Category      string  `json:"category" validate:"required,min=1,max=100"`
	Explanation   *string `json:"explanation,omitempty" validate:"omitempty,max=2000"`
}

type options struct {
	A string `json:"A" validate:"required"`
	B string `json:"B" validate:"required"`
	C string `json:"C" validate:"required"`
	D string `json:"D" validate:"required"`
}

type practiceRequest struct {
	QuestionID     string `json:"questionId" validate:"required,uuid"`
	SelectedOption string `json:"selectedOption" validate:"required,answer_option"`
}

type submitResultRequest struct {
	Score      int     `json:"score" validate:"min=0"`
	Wrong      int     `json:"wrong" validate:"min=0"`
	Total      int     `json:"total" validate:"required,min=1"`
	Percentage float64 `json:"percentage" validate:"min=0,max=100"`
}

// CreateQuiz handles POST /quiz/createQuiz. The body may be a single
// question object or an array of them; all rows are inserted in one
// transaction so a bad entry rejects the whole batch.
func (h *QuizHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "NO_TOKEN", "Authentication required")
		return
	}

	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	var reqs []createQuestionRequest
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &reqs); err != nil {
			respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid question array")
			return
		}
	default:
		var single createQuestionRequest
		if err := json.Unmarshal(raw, &single); err != nil {
			respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid question object")
			return
		}
		reqs = []createQuestionRequest{single}
	}

	if len(reqs) == 0 {
		respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "No questions provided")
		return
	}

	creator, err := uuid.Parse(claims.UserID)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid user identity")
		return
	}

	questions := make([]*models.Question, 0, len(reqs))
	for i := range reqs {
		req := &reqs[i]
		if err := validation.Validate.Struct(req); err != nil {
			var validationErrors validator.ValidationErrors
			if errors.As(err, &validationErrors) {
				respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "Each question needs text, four options, a correct answer of A-D, and a category")
				return
			}
			respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid question payload")
			return
		}

		questions = append(questions, &models.Question{
			ID:   uuid.New(),
			Text: validation.SanitizeText(req.Text),
			Options: models.Options{
				A: validation.SanitizeText(req.Options.A),
				B: validation.SanitizeText(req.Options.B),
				C: validation.SanitizeText(req.Options.C),
				D: validation.SanitizeText(req.Options.D),
			},
			CorrectAnswer: models.AnswerOption(req.CorrectAnswer),
			Category:      validation.SanitizeText(req.Category),
			Explanation:   req.Explanation,
			CreatedBy:     &creator,
			IsActive:      true,
		})
	}

	if err := h.questions.CreateBatch(r.Context(), questions); err != nil {
		h.logger.Error("failed_to_create_questions", zap.Int("count", len(questions)), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to save questions")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Questions created successfully",
		"count":   len(questions),
	})
}

// GetQuiz handles GET /quiz: a random sample filtered by category and
// excludeIds. Correct answers and explanations never appear in the payload.
func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	limit := DefaultQuizSize
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			respondJSONError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		if parsed > MaxQuizSize {
			parsed = MaxQuizSize
		}
		limit = parsed
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))

	excludeIDs, err := parseExcludeIDs(r.URL.Query().Get("excludeIds"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_EXCLUDE_IDS", "excludeIds must be comma-separated UUIDs")
		return
	}

	sample, err := h.questions.RandomSample(r.Context(), category, excludeIDs, limit)
	if err != nil {
		h.logger.Error("failed_to_sample_questions", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to fetch questions")
		return
	}

	if len(sample) == 0 {
		respondJSONError(w, http.StatusNotFound, "NO_QUESTIONS", "No questions match the given filters")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"questions": sample,
		"count":     len(sample),
	})
}

// GetRandomQuestion handles GET /quiz/random: one question, same filters as GetQuiz
func (h *QuizHandler) GetRandomQuestion(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	excludeIDs, err := parseExcludeIDs(r.URL.Query().Get("excludeIds"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_EXCLUDE_IDS", "excludeIds must be comma-separated UUIDs")
		return
	}

	sample, err := h.questions.RandomSample(r.Context(), category, excludeIDs, 1)
	if err != nil {
		h.logger.Error("failed_to_sample_questions", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to fetch question")
		return
	}

	if len(sample) == 0 {
		respondJSONError(w, http.StatusNotFound, "NO_QUESTIONS", "No questions match the given filters")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"question": sample[0],
	})
}

// CheckPractice handles POST /quiz/practice: grades a single answer and
// reveals the correct option with its explanation.
func (h *QuizHandler) CheckPractice(w http.ResponseWriter, r *http.Request) {
	var req practiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "questionId and a selectedOption of A-D are required")
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_QUESTION_ID", "questionId must be a UUID")
		return
	}

	question, err := h.questions.GetByID(r.Context(), questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondJSONError(w, http.StatusNotFound, "QUESTION_NOT_FOUND", "Question not found")
			return
		}
		h.logger.Error("failed_to_fetch_question", zap.String("question_id", questionID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to fetch question")
		return
	}

	correct := models.AnswerOption(req.SelectedOption) == question.CorrectAnswer

	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"correct":       correct,
		"correctAnswer": question.CorrectAnswer,
		"explanation":   question.Explanation,
	})
}

// SubmitResult handles POST /quiz/submit: persists one completed quiz run
// for the authenticated user.
func (h *QuizHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "NO_TOKEN", "Authentication required")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid user identity")
		return
	}

	var req submitResultRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "MISSING_FIELDS", "score, wrong, total, and percentage are required")
		return
	}

	if req.Score+req.Wrong != req.Total {
		respondJSONError(w, http.StatusBadRequest, "INVALID_RESULT", "score plus wrong must equal total")
		return
	}

	result := &models.QuizResult{
		ID:             uuid.New(),
		UserID:         userID,
		TotalQuestions: req.Total,
		CorrectAnswers: req.Score,
		WrongAnswers:   req.Wrong,
		Percentage:     req.Percentage,
	}

	if err := h.results.Create(r.Context(), result); err != nil {
		h.logger.Error("failed_to_save_result", zap.String("user_id", userID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to save result")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Result saved",
		"result":  result,
	})
}

// GetResultHistory handles GET /quiz/GetResultHistory: the caller's own
// results, newest first.
func (h *QuizHandler) GetResultHistory(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r)
	if claims == nil {
		respondJSONError(w, http.StatusUnauthorized, "NO_TOKEN", "Authentication required")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid user identity")
		return
	}

	results, err := h.results.GetByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed_to_fetch_results", zap.String("user_id", userID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to fetch results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"results": results,
		"count":   len(results),
	})
}

func parseExcludeIDs(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
