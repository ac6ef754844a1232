package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/souschef/internal/app/mirror"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		owner string
		mode  string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror local data with the remote backend once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := mirror.ParseMode(mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			application, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer application.Stop(context.Background())
			if application.Syncer == nil {
				return fmt.Errorf("sync needs remote.enabled without remote.serve")
			}

			var reports []mirror.Report
			if owner != "" {
				report, err := application.Syncer.Sync(ctx, owner, m)
				if err != nil {
					return err
				}
				reports = append(reports, report)
			} else if reports, err = application.Syncer.SyncAll(ctx, m); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "account ID to sync (default: every account)")
	cmd.Flags().StringVar(&mode, "mode", string(mirror.ModeMerge), "merge, push or pull")
	return cmd
}
