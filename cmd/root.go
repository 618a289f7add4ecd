package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "picbest",
	Short: "A photo curator that groups similar shots and picks the best one",
	Long: `PicBest indexes a photo collection, groups near-duplicates and
visually similar shots into clusters, recognizes recurring people, and
selects the sharpest photo of every group so you only review the best
candidate instead of the whole burst.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// openStore connects to PostgreSQL and runs pending migrations.
func openStore(cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	st, err := postgres.Open(&cfg.Database, cfg.Embedding.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}
