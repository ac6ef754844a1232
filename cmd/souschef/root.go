package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/config"
	"github.com/R3E-Network/souschef/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "souschef",
		Short:         "Recipes, meal logs, shopping lists and a grocery budget",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $"+config.EnvConfigFile+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newSyncCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, logging.New("souschef", cfg.Logging.Level, cfg.Logging.Format), nil
}

// open builds and starts the application for one-shot commands.
func (o *rootOptions) open(ctx context.Context) (*app.Application, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, err
	}
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := application.Start(ctx); err != nil {
		return nil, err
	}
	return application, nil
}
