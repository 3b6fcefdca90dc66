package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ji-devs/ji-cloud-sub012/internal/app"
	"github.com/ji-devs/ji-cloud-sub012/internal/config"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP y el worker de búsqueda",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.L().Info("jigcloud starting",
				logger.String("env", cfg.App.Env),
				logger.String("version", app.Version),
				logger.Any("epoch", cfg.App.Epoch),
				logger.Bool("search_worker", a.Worker != nil),
			)
			return a.Run(ctx)
		},
	}
}
