package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/config"
	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/models"
	"github.com/quizroom/quizroom-api/internal/validation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout a seed file must follow
type seedFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Question      string  `yaml:"question"`
	Options       seedOpt `yaml:"options"`
	CorrectAnswer string  `yaml:"correctAnswer"`
	Category      string  `yaml:"category"`
	Explanation   *string `yaml:"explanation,omitempty"`
}

type seedOpt struct {
	A string `yaml:"A"`
	B string `yaml:"B"`
	C string `yaml:"C"`
	D string `yaml:"D"`
}

// NewSeedCmd creates the question seeding command
func NewSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed quiz questions from a YAML file",
		Long:  "Load questions from a YAML file and insert them in a single batch. A bad entry rejects the whole file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("required flag: --file")
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read seed file: %w", err)
			}

			var seed seedFile
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("failed to parse seed file: %w", err)
			}
			if len(seed.Questions) == 0 {
				return fmt.Errorf("seed file contains no questions")
			}

			questions := make([]*models.Question, 0, len(seed.Questions))
			for i, sq := range seed.Questions {
				if sq.Question == "" || sq.Category == "" {
					return fmt.Errorf("question %d: question text and category are required", i+1)
				}
				if sq.Options.A == "" || sq.Options.B == "" || sq.Options.C == "" || sq.Options.D == "" {
					return fmt.Errorf("question %d: all four options are required", i+1)
				}
				if err := validation.ValidateAnswerOption(sq.CorrectAnswer); err != nil {
					return fmt.Errorf("question %d: %w", i+1, err)
				}

				questions = append(questions, &models.Question{
					ID:   uuid.New(),
					Text: validation.SanitizeText(sq.Question),
					Options: models.Options{
						A: validation.SanitizeText(sq.Options.A),
						B: validation.SanitizeText(sq.Options.B),
						C: validation.SanitizeText(sq.Options.C),
						D: validation.SanitizeText(sq.Options.D),
					},
					CorrectAnswer: models.AnswerOption(sq.CorrectAnswer),
					Category:      validation.SanitizeText(sq.Category),
					Explanation:   sq.Explanation,
					IsActive:      true,
				})
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			ctx := context.Background()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			if err := database.NewQuestionRepository(db).CreateBatch(ctx, questions); err != nil {
				return fmt.Errorf("failed to insert questions: %w", err)
			}

			fmt.Printf("Seeded %d questions from %s\n", len(questions), file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file of questions to seed (required)")

	return cmd
}
