package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
	"github.com/spf13/cobra"
)

// commandContext loads configuration on first use so commands that do not
// need the full config (such as migrate with --database-url) never read it.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.LoadFrom(strings.TrimSpace(*c.configFlag))
	})
	return c.config, c.configErr
}

// ensureLogger loads the config and installs the configured logger as default.
func (c *commandContext) ensureLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRootCmd() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	serve := newServeCmd(ctx)

	rootCmd := &cobra.Command{
		Use:           "scry-decks",
		Short:         "Scry deck generation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ./config.yaml)")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newMigrateCmd(ctx))
	rootCmd.AddCommand(newProfileCmd(ctx))
	rootCmd.AddCommand(newTokenCmd(ctx))
	return rootCmd
}
