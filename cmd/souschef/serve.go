package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/app/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			if err := application.Attach(httpapi.NewServer(application)); err != nil {
				return err
			}
			if err := application.Start(ctx); err != nil {
				return err
			}
			log.WithField("components", application.Services()).Info("souschef started")

			<-ctx.Done()
			log.Info("shutting down")

			// Leave room for the HTTP drain plus the stores behind it.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
			defer cancel()
			return application.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding the config")
	return cmd
}
