package main

import (
	"fmt"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/app/storage/sqlstore"
	"github.com/R3E-Network/souschef/internal/config"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the local database schema",
	}

	sqlConfig := func() (sqlstore.Config, error) {
		cfg, _, err := opts.load()
		if err != nil {
			return sqlstore.Config{}, err
		}
		if cfg.Database.Driver == config.DriverMemory {
			return sqlstore.Config{}, fmt.Errorf("the %s driver has no schema to migrate", config.DriverMemory)
		}
		return app.SQLConfig(cfg.Database), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := sqlConfig()
				if err != nil {
					return err
				}
				if err := sqlstore.Migrate(cmd.Context(), cfg); err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := sqlConfig()
				if err != nil {
					return err
				}
				if err := sqlstore.Rollback(cmd.Context(), cfg); err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := sqlConfig()
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, cfg sqlstore.Config) error {
	version, dirty, err := sqlstore.Version(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
