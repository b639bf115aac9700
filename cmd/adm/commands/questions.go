// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"
	"strconv"

	"speakapp/internal/models"
	"speakapp/internal/observability"
	"speakapp/internal/services"
	contextutils "speakapp/internal/utils"

	"github.com/spf13/cobra"
)

// QuestionCommands returns the question catalog management commands
func QuestionCommands(store services.QuestionStorer, logger *observability.Logger) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question catalog management commands",
		Long: `Question catalog management commands for the speaking app.

Available commands:
  stats       - Show question counts per section
  deactivate  - Soft-delete a question by ID`,
	}

	questionsCmd.AddCommand(questionStatsCmd(store, logger))
	questionsCmd.AddCommand(deactivateCmd(store, logger))

	return questionsCmd
}

// questionStatsCmd returns the stats command
func questionStatsCmd(store services.QuestionStorer, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show question counts per section",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			total, err := store.CountActive(ctx, nil)
			if err != nil {
				return contextutils.WrapError(err, "failed to count questions")
			}
			fmt.Printf("Active questions: %d\n", total)

			for _, section := range models.AllSections() {
				section := section
				count, err := store.CountActive(ctx, &section)
				if err != nil {
					return contextutils.WrapError(err, "failed to count questions")
				}
				fmt.Printf("  %s: %d\n", section, count)
			}
			return nil
		},
	}
}

// deactivateCmd returns the deactivate command
func deactivateCmd(store services.QuestionStorer, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <question-id>",
		Short: "Soft-delete a question by ID",
		Long:  `Mark a question inactive so it no longer appears in selections. The row and its history are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			questionID, err := strconv.Atoi(args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "invalid question id %q", args[0])
			}

			if err := store.Deactivate(ctx, questionID); err != nil {
				return contextutils.WrapError(err, "failed to deactivate question")
			}

			logger.Info(ctx, "Question deactivated", map[string]interface{}{"question_id": questionID})
			fmt.Printf("Question %d deactivated\n", questionID)
			return nil
		},
	}
}
