// Package main provides the entry point for the nutrition catalog API
// server and its operational subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nutri-tracker",
	Short: "Nutrition catalog API server",
	Long:  "nutri-tracker serves the nutrition catalog REST API: bulk CSV ingestion of foods and servings, filtered exports, and nutrition computation.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
