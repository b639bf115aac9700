package commands

import (
	"context"
	"fmt"

	"speakapp/internal/database"
	"speakapp/internal/observability"
	"speakapp/internal/services"
	contextutils "speakapp/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, seeder *services.Seeder, logger *observability.Logger, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the speaking app.

Available commands:
  migrate   - Apply pending schema migrations
  seed      - Load the default question catalog if the database is empty`,
	}

	dbCmd.AddCommand(migrateCmd(dbManager, databaseURL))
	dbCmd.AddCommand(seedCmd(seeder, logger))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(dbManager *database.Manager, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := dbManager.RunMigrations(databaseURL); err != nil {
				return contextutils.WrapError(err, "failed to run migrations")
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

// seedCmd returns the seed command
func seedCmd(seeder *services.Seeder, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the default question catalog if the database is empty",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := seeder.EnsureSeeded(ctx); err != nil {
				return contextutils.WrapError(err, "failed to seed question catalog")
			}
			logger.Info(ctx, "Seed command finished", nil)
			fmt.Println("Seed complete")
			return nil
		},
	}
}
