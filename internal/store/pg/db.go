// Package pg implementa los repositorios de dominio sobre PostgreSQL (pgx v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// PgxPool es la abstracción mínima del pool que usan los repositorios.
// La implementan *pgxpool.Pool y pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// querier es lo común entre pool y pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig configura el pool.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// Connect abre el pool y verifica conectividad.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return pool, nil
}

// DB agrupa el pool y el constructor de registros de índice.
type DB struct {
	Pool    PgxPool
	Records repository.RecordBuilder

	// maxTxRetries reintentos ante deadlock/serialization failure.
	maxTxRetries uint64
	txBackoff    func() backoff.BackOff
}

// New construye un DB sobre el pool dado.
func New(pool PgxPool, records repository.RecordBuilder) *DB {
	return &DB{
		Pool:         pool,
		Records:      records,
		maxTxRetries: 3,
		txBackoff:    defaultTxBackoff,
	}
}

func defaultTxBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// Ping verifica la conexión (readyz).
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// Close cierra el pool.
func (db *DB) Close() { db.Pool.Close() }

// InTx ejecuta fn en una transacción. Deadlocks (40P01) y fallas de
// serialización (40001) reintentan la transacción completa con backoff.
func (db *DB) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryableTx(err) {
			logger.From(ctx).Warn("retrying transaction",
				logger.Layer("repository"), logger.Attempt(attempt), logger.Err(err))
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(db.txBackoff(), db.maxTxRetries), ctx)
	return backoff.Retry(op, b)
}

func (db *DB) runTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()
	return fn(tx)
}

// enqueue escribe el registro de índice en el outbox usando q (normalmente
// la transacción de la mutación que lo origina).
func enqueue(ctx context.Context, q querier, rec types.IndexRecord) (int64, error) {
	payload, err := json.Marshal(rec.Document)
	if err != nil {
		return 0, fmt.Errorf("outbox: encode %s: %w", rec.ObjectKey(), err)
	}
	var id int64
	err = q.QueryRow(ctx, sqlOutboxInsert, string(rec.Kind), rec.ObjectID, payload, rec.Deleted).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("outbox: insert %s: %w", rec.ObjectKey(), err)
	}
	return id, nil
}

const sqlOutboxInsert = `INSERT INTO search_outbox (kind, object_id, payload, deleted) VALUES ($1, $2, $3, $4) RETURNING id`

func pgCode(err error) string {
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pg.Code
	}
	return ""
}

func isRetryableTx(err error) bool {
	switch pgCode(err) {
	case "40P01", "40001":
		return true
	}
	return false
}

func isUniqueViolation(err error) bool { return pgCode(err) == "23505" }

func isForeignKeyViolation(err error) bool { return pgCode(err) == "23503" }
