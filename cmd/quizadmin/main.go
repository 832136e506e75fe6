package main

import (
	"fmt"
	"os"

	"github.com/quizroom/quizroom-api/cmd/quizadmin/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "quizadmin",
		Short: "Administration tool for the Quizroom API",
		Long:  "CLI tool for seeding quiz questions and managing user accounts",
	}

	rootCmd.AddCommand(commands.NewSeedCmd())
	rootCmd.AddCommand(commands.NewUserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
