package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/metrics"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Sender envía acciones al servicio de búsqueda (Client).
type Sender interface {
	Batch(ctx context.Context, actions []Action) error
}

type WorkerConfig struct {
	IndexPrefix string
	BatchSize   int           // default 100
	BatchWait   time.Duration // tiempo máximo para llenar un batch
	Lease       time.Duration // default 1m
	Idle        time.Duration // espera cuando no hay filas
	MaxAttempts int           // rechazos 4xx (no 429) antes de poisoned; default 3
	Retry       RetryPolicy
	StatsEvery  time.Duration
	Now         func() time.Time
}

// Worker drena el outbox hacia el servicio de búsqueda.
type Worker struct {
	repo   repository.OutboxRepository
	sender Sender
	cfg    WorkerConfig
	log    *zap.Logger
}

func NewWorker(repo repository.OutboxRepository, sender Sender, cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.Idle <= 0 {
		cfg.Idle = 500 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.StatsEvery <= 0 {
		cfg.StatsEvery = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{repo: repo, sender: sender, cfg: cfg, log: logger.Named("search.worker")}
}

// IndexName es el índice de cada tipo de entidad.
func IndexName(prefix string, kind types.EntityKind) string {
	return prefix + string(kind)
}

// Run arranca n loops de drenado más el refresco de gauges, hasta que ctx termine.
func (w *Worker) Run(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			w.loop(ctx, id)
			return nil
		})
	}
	g.Go(func() error {
		w.statsLoop(ctx)
		return nil
	})
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	log := w.log.With(logger.Int("worker", id))
	log.Info("search worker started")
	for {
		if ctx.Err() != nil {
			log.Info("search worker stopped")
			return
		}
		n, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error("outbox pass failed", logger.Err(err))
		}
		if n > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.cfg.Idle):
		}
	}
}

func (w *Worker) statsLoop(ctx context.Context) {
	t := time.NewTicker(w.cfg.StatsEvery)
	defer t.Stop()
	for {
		if s, err := w.repo.Stats(ctx); err == nil {
			metrics.OutboxPending.Set(float64(s.Pending))
			metrics.OutboxPoisoned.Set(float64(s.Poisoned))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce compacta, reclama un batch y lo procesa. Devuelve cuántas filas tomó.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if n, err := w.repo.Compact(ctx); err != nil {
		return 0, fmt.Errorf("outbox compact: %w", err)
	} else if n > 0 {
		w.log.Debug("outbox compacted", logger.Count(int(n)))
	}
	rows, err := w.collect(ctx)
	if len(rows) > 0 {
		w.process(ctx, rows)
	}
	return len(rows), err
}

// collect junta hasta BatchSize filas o lo que haya al cumplirse BatchWait.
func (w *Worker) collect(ctx context.Context) ([]repository.OutboxRow, error) {
	deadline := time.Now().Add(w.cfg.BatchWait)
	var rows []repository.OutboxRow
	for {
		got, err := w.repo.Claim(ctx, w.cfg.BatchSize-len(rows), w.cfg.Lease)
		if err != nil {
			return rows, fmt.Errorf("outbox claim: %w", err)
		}
		rows = append(rows, got...)
		if len(rows) == 0 || len(rows) >= w.cfg.BatchSize {
			return rows, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return rows, nil
		}
		select {
		case <-ctx.Done():
			return rows, nil
		case <-time.After(min(remaining, 50*time.Millisecond)):
		}
	}
}

func (w *Worker) process(ctx context.Context, rows []repository.OutboxRow) {
	actions := make([]Action, 0, len(rows))
	sendable := make([]repository.OutboxRow, 0, len(rows))
	for _, row := range rows {
		a, err := w.action(row)
		if err != nil {
			// payload corrupto: reintentar no lo arregla
			w.poison(ctx, row, err)
			continue
		}
		actions = append(actions, a)
		sendable = append(sendable, row)
	}
	if len(sendable) == 0 {
		return
	}

	start := time.Now()
	err := w.sender.Batch(ctx, actions)
	metrics.SearchBatchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchBatchSize.Observe(float64(len(sendable)))

	switch {
	case err == nil:
		w.done(ctx, sendable)
	case IsPermanent(err) && len(sendable) > 1:
		// aislar el registro rechazado: sólo él acumula intentos
		mid := len(sendable) / 2
		w.process(ctx, sendable[:mid])
		w.process(ctx, sendable[mid:])
	case IsPermanent(err):
		// 5xx y 429 previos no cuentan
		row := sendable[0]
		if row.Rejections+1 >= w.cfg.MaxAttempts {
			w.poison(ctx, row, err)
			return
		}
		w.retry(ctx, row, err, true)
	default:
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			w.log.Warn("search breaker open, deferring batch", logger.Count(len(sendable)))
		}
		for _, row := range sendable {
			w.retry(ctx, row, err, false)
		}
	}
}

func (w *Worker) action(row repository.OutboxRow) (Action, error) {
	index := IndexName(w.cfg.IndexPrefix, row.Kind)
	objectID := types.ObjectKey(row.Kind, row.ObjectID)
	if row.Deleted {
		return Action{Action: ActionDelete, IndexName: index, Body: map[string]any{FieldObjectID: objectID}}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(row.Payload, &doc); err != nil {
		return Action{}, fmt.Errorf("decode payload: %w", err)
	}
	if doc == nil {
		return Action{}, errors.New("empty payload")
	}
	doc[FieldObjectID] = objectID
	return Action{Action: ActionUpdate, IndexName: index, Body: doc}, nil
}

func (w *Worker) done(ctx context.Context, rows []repository.OutboxRow) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := w.repo.MarkDone(ctx, ids); err != nil {
		// el lease vence y se reenvían: at-least-once
		w.log.Error("outbox mark done failed", logger.Err(err), logger.Count(len(ids)))
		return
	}
	metrics.SearchSyncTotal.WithLabelValues("done").Add(float64(len(ids)))
}

func (w *Worker) retry(ctx context.Context, row repository.OutboxRow, cause error, rejected bool) {
	attempt := row.Attempts + 1
	next := w.cfg.Now().Add(w.cfg.Retry.Delay(attempt))
	if err := w.repo.MarkRetry(ctx, row.ID, next, cause.Error(), rejected); err != nil {
		w.log.Error("outbox mark retry failed", logger.OutboxID(row.ID), logger.Err(err))
		return
	}
	metrics.SearchSyncTotal.WithLabelValues("retry").Inc()
	w.log.Warn("search sync retry scheduled",
		logger.OutboxID(row.ID), logger.ObjectID(types.ObjectKey(row.Kind, row.ObjectID)),
		logger.Attempt(attempt), logger.Err(cause))
}

func (w *Worker) poison(ctx context.Context, row repository.OutboxRow, cause error) {
	if err := w.repo.MarkPoisoned(ctx, row.ID, cause.Error()); err != nil {
		w.log.Error("outbox mark poisoned failed", logger.OutboxID(row.ID), logger.Err(err))
		return
	}
	metrics.SearchSyncTotal.WithLabelValues("poisoned").Inc()
	w.log.Error("search record poisoned",
		logger.OutboxID(row.ID), logger.ObjectID(types.ObjectKey(row.Kind, row.ObjectID)),
		logger.Attempt(row.Attempts+1), logger.Err(cause))
}
