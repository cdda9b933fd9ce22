package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/phrazzld/scry-decks/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(ctx *commandContext) *cobra.Command {
	var (
		databaseURL string
		dir         string
	)

	cmd := &cobra.Command{
		Use:   "migrate {up|down|status|version|reset|redo|create NAME}",
		Short: "Manage database migrations",
		Long: "Runs goose migrations embedded in the binary against the configured database.\n" +
			"'create NAME' writes a new SQL migration into the source tree instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]

			if command == "create" {
				if len(args) < 2 {
					return fmt.Errorf("migrate create requires a migration name")
				}
				name := strings.Join(args[1:], "_")
				if err := postgres.CreateMigration(dir, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created migration %s in %s\n", name, dir)
				return nil
			}

			dbCfg, log, err := migrateTarget(ctx, databaseURL)
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd.Context(), dbCfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, log, command, args[1:]...)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "",
		"Database URL; skips loading the application config (env "+config.EnvPrefix+"_DATABASE_URL also works)")
	cmd.Flags().StringVar(&dir, "dir", postgres.MigrationsDir, "Directory for migrate create")
	return cmd
}

// migrateTarget resolves the database to migrate. An explicit URL avoids
// requiring the rest of the configuration, such as API keys.
func migrateTarget(ctx *commandContext, databaseURL string) (config.DatabaseConfig, *slog.Logger, error) {
	if databaseURL != "" {
		log, err := logger.SetupWithWriter(os.Stderr, "info")
		if err != nil {
			return config.DatabaseConfig{}, nil, err
		}
		return config.DatabaseConfig{URL: databaseURL, MaxOpenConns: 1}, log, nil
	}

	cfg, log, err := ctx.ensureLogger()
	if err != nil {
		return config.DatabaseConfig{}, nil, err
	}
	return cfg.Database, log, nil
}
