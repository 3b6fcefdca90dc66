package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ji-devs/ji-cloud-sub012/internal/config"
	"github.com/ji-devs/ji-cloud-sub012/internal/migrate"
)

// migrate sólo necesita DATABASE_URL; no valida el resto de la config.
func newMigrateCmd(configPath *string) *cobra.Command {
	dsn := func() (string, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return "", err
		}
		if cfg.Database.URL == "" {
			return "", errors.New("DATABASE_URL is required")
		}
		return cfg.Database.URL, nil
	}

	cmd := &cobra.Command{Use: "migrate", Short: "Migraciones de Postgres (goose)"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica las migraciones pendientes",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				return migrate.Up(cmd.Context(), d)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revierte la última migración",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				return migrate.Down(cmd.Context(), d)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Lista el estado de las migraciones",
			RunE: func(cmd *cobra.Command, args []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				return migrate.Status(cmd.Context(), d, os.Stdout)
			},
		},
	)
	return cmd
}
