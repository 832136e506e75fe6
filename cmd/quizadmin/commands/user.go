package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/quizroom/quizroom-api/internal/config"
	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/models"
	"github.com/quizroom/quizroom-api/internal/validation"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// NewUserCmd creates the user management command group
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserCreateCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var firstName, lastName, username, email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long:  "Create an account directly in the database with a bcrypt-hashed password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if firstName == "" || lastName == "" || username == "" || email == "" || password == "" {
				return fmt.Errorf("required flags: --first-name, --last-name, --username, --email, --password")
			}
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email: %s", email)
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
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

			user := &models.User{
				ID:           uuid.New(),
				FirstName:    validation.SanitizeText(firstName),
				LastName:     validation.SanitizeText(lastName),
				Username:     validation.SanitizeText(username),
				Email:        email,
				PasswordHash: string(hash),
			}

			if err := database.NewUserRepository(db).Create(ctx, user); err != nil {
				if errors.Is(err, database.ErrDuplicateUser) {
					return fmt.Errorf("a user with email %s or username %s already exists", email, username)
				}
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Printf("Created user %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "First name (required)")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name (required)")
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password, minimum 8 characters (required)")

	return cmd
}
