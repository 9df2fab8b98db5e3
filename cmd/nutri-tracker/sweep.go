package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bh-srinivasan/nutri-tracker/internal/config"
	"github.com/bh-srinivasan/nutri-tracker/internal/db"
	"github.com/bh-srinivasan/nutri-tracker/internal/jobs"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire old export jobs once and exit",
	Long:  `Run a single expiry pass: completed exports past their retention window are marked expired and their files deleted. The running server does this on a schedule; this command is for ad-hoc or cron-driven cleanup.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, cleanup := config.SetupLogger(cfg.LogFile, config.ParseLogLevel(cfg.LogLevel))
	defer cleanup()

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	count, err := jobs.NewSweeper(database, log).Sweep(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("expired %d export job(s)\n", count)
	return nil
}
