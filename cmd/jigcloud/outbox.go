package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ji-devs/ji-cloud-sub012/internal/app"
	"github.com/ji-devs/ji-cloud-sub012/internal/config"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/store/pg"
)

func newOutboxCmd(load func() (*config.Config, error)) *cobra.Command {
	withRepo := func(cmd *cobra.Command, fn func(repository.OutboxRepository) error) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		pool, db, err := app.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(pg.NewOutboxRepo(db))
	}

	cmd := &cobra.Command{Use: "outbox", Short: "Operaciones sobre el outbox de búsqueda"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Muestra pendientes, hechos y poisoned",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepo(cmd, func(repo repository.OutboxRepository) error {
					st, err := repo.Stats(cmd.Context())
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "pending=%d done=%d poisoned=%d\n", st.Pending, st.Done, st.Poisoned)
					if !st.OldestPending.IsZero() {
						fmt.Fprintf(out, "oldest_pending=%s\n", st.OldestPending.UTC().Format("2006-01-02T15:04:05Z"))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "requeue",
			Short: "Vuelve a pending las filas poisoned",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepo(cmd, func(repo repository.OutboxRepository) error {
					n, err := repo.Requeue(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "requeued=%d\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "compact",
			Short: "Colapsa filas pendientes del mismo objeto",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRepo(cmd, func(repo repository.OutboxRepository) error {
					n, err := repo.Compact(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "compacted=%d\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}
