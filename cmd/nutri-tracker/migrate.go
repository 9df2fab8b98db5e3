package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bh-srinivasan/nutri-tracker/internal/config"
	"github.com/bh-srinivasan/nutri-tracker/internal/db"
)

var migrateSchemaPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  `Apply the schema script to the configured database. The script is idempotent; running it against an up-to-date database is a no-op.`,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSchemaPath, "schema", "schemas/schema.sql", "Path to the schema SQL file")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	schema, err := os.ReadFile(migrateSchemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.ApplySchema(ctx, string(schema)); err != nil {
		return err
	}
	fmt.Println("schema applied")
	return nil
}
