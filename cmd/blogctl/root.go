package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "blogctl",
	Short: "Blog maintenance CLI",
	Long: `blogctl runs the blog's maintenance tasks against the configured database.

Example usage:
  blogctl migrate                      # Create or update the schema
  blogctl recount                      # Fix drifted post, category and tag counters
  blogctl jobs                         # Run the scheduled jobs until interrupted
  blogctl seed --users 5 --posts 50    # Fill a development database`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// initConfig reads .env, the config file and the environment, then sets up
// logging
func initConfig() error {
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	return nil
}

// openDB connects without running migrations
func openDB() (*db.DB, error) {
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return database, nil
}
