package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			log.Info("Server configuration loaded",
				"port", cfg.Server.Port,
				"log_level", cfg.Server.LogLevel,
				"expose_error_details", cfg.Server.ExposeErrorDetails)

			runCtx, stop := signalContext(cmd.Context())
			defer stop()

			db, err := openDatabase(runCtx, cfg.Database)
			if err != nil {
				return err
			}

			app, err := newApplication(runCtx, cfg, log, db)
			if err != nil {
				_ = db.Close()
				return err
			}
			return app.Run(runCtx)
		},
	}
}
