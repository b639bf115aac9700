// Package main provides the entry point for the speaking app admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"speakapp/cmd/adm/commands"
	"speakapp/internal/config"
	"speakapp/internal/database"
	"speakapp/internal/observability"
	"speakapp/internal/services"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quiet logging and no OTLP exporters for the CLI
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "speaking-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		logger.Error(ctx, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": err.Error()})
		}
	}()

	questionStore := services.NewQuestionStore(db, logger)
	seeder := services.NewSeeder(questionStore, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Speaking App Administration Tool",
		Long: `Speaking App Administration Tool

A CLI tool for administering the speaking practice backend.
Provides commands for question catalog management and database operations.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.QuestionCommands(questionStore, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(dbManager, seeder, logger, cfg.Database.URL))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
