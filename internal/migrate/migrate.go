// Package migrate aplica las migraciones SQL embebidas con goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ji-devs/ji-cloud-sub012/migrations/postgres"
)

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	goose.SetBaseFS(postgres.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Up aplica todas las migraciones pendientes.
func Up(ctx context.Context, dsn string) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := goose.UpContext(ctx, db, postgres.Dir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down revierte la última migración.
func Down(ctx context.Context, dsn string) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := goose.DownContext(ctx, db, postgres.Dir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Status escribe el estado de cada migración en w.
func Status(ctx context.Context, dsn string, w io.Writer) error {
	db, err := open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	files, err := goose.CollectMigrations(postgres.Dir, 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	for _, m := range files {
		state := "pending"
		if m.Version <= current {
			state = "applied"
		}
		fmt.Fprintf(w, "%05d  %-8s %s\n", m.Version, state, m.Source)
	}
	return nil
}
