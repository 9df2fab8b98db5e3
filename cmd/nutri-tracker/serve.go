package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bh-srinivasan/nutri-tracker/internal/config"
	"github.com/bh-srinivasan/nutri-tracker/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start the HTTP server serving catalog ingestion, export and nutrition endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	log, cleanup := config.SetupLogger(cfg.LogFile, config.ParseLogLevel(cfg.LogLevel))
	defer cleanup()

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
