package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"realworld/conduit/internal/app"
	"realworld/conduit/internal/config"
	"realworld/conduit/internal/observability"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := app.Migrate(ctx, db, logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("applied %s\n", name)
			}
			return nil
		},
	}
}
