package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"realworld/conduit/internal/app"
	"realworld/conduit/internal/observability"
)

func waitDBCmd() *cobra.Command {
	var (
		timeout  time.Duration
		interval time.Duration
		dsn      string
	)

	cmd := &cobra.Command{
		Use:   "wait-db",
		Short: "Block until the database accepts connections",
		Long: `Poll the database until it answers a ping. The DSN defaults to
DATABASE_URL, falling back to TEST_POSTGRES_DSN for test runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				dsn = os.Getenv("TEST_POSTGRES_DSN")
			}
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL or TEST_POSTGRES_DSN is required")
			}
			if timeout <= 0 || interval <= 0 {
				return fmt.Errorf("timeout and interval must be > 0")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))
			return app.WaitForDatabase(ctx, dsn, timeout, interval, logger)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Give up after this long")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Delay between attempts")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database URL (defaults to DATABASE_URL)")

	return cmd
}
