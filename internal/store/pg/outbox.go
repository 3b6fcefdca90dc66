package pg

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
)

// OutboxRepo implementa el lado consumidor del outbox de búsqueda.
type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

const (
	sqlOutboxCompact = `UPDATE search_outbox o SET state = 'done', done_at = now(), last_error = 'superseded'
	WHERE o.state = 'pending'
	  AND (o.lease_until IS NULL OR o.lease_until < now())
	  AND EXISTS (
	      SELECT 1 FROM search_outbox n
	      WHERE n.kind = o.kind AND n.object_id = o.object_id
	        AND n.state = 'pending' AND n.id > o.id)`

	// Sólo la fila más vieja pendiente de cada objeto es reclamable: así el
	// orden por objeto se mantiene aunque haya varios workers.
	sqlOutboxClaim = `UPDATE search_outbox SET lease_until = now() + make_interval(secs => $2)
	WHERE id IN (
	    SELECT o.id FROM search_outbox o
	    WHERE o.state = 'pending'
	      AND o.next_attempt_at <= now()
	      AND (o.lease_until IS NULL OR o.lease_until < now())
	      AND NOT EXISTS (
	          SELECT 1 FROM search_outbox p
	          WHERE p.kind = o.kind AND p.object_id = o.object_id
	            AND p.state = 'pending' AND p.id < o.id)
	    ORDER BY o.id
	    LIMIT $1
	    FOR UPDATE SKIP LOCKED)
	RETURNING id, kind, object_id, payload, deleted, enqueued_at, attempts, rejections`

	sqlOutboxDone = `UPDATE search_outbox SET state = 'done', done_at = now(), lease_until = NULL WHERE id = ANY($1)`

	sqlOutboxRetry = `UPDATE search_outbox SET attempts = attempts + 1,
	    rejections = rejections + CASE WHEN $4 THEN 1 ELSE 0 END,
	    next_attempt_at = $2, lease_until = NULL, last_error = $3
	WHERE id = $1`

	sqlOutboxPoison = `UPDATE search_outbox SET attempts = attempts + 1, rejections = rejections + 1,
	    state = 'poisoned', lease_until = NULL, last_error = $2
	WHERE id = $1`

	sqlOutboxStats = `SELECT
		count(*) FILTER (WHERE state = 'pending'),
		count(*) FILTER (WHERE state = 'done'),
		count(*) FILTER (WHERE state = 'poisoned'),
		min(enqueued_at) FILTER (WHERE state = 'pending')
	FROM search_outbox`

	sqlOutboxRequeue = `UPDATE search_outbox SET state = 'pending', attempts = 0, rejections = 0, next_attempt_at = now(), last_error = NULL
	WHERE state = 'poisoned'`
)

func (r *OutboxRepo) Enqueue(ctx context.Context, rec types.IndexRecord) (int64, error) {
	return enqueue(ctx, r.db.Pool, rec)
}

func (r *OutboxRepo) Compact(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, sqlOutboxCompact)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *OutboxRepo) Claim(ctx context.Context, limit int, lease time.Duration) ([]repository.OutboxRow, error) {
	rows, err := r.db.Pool.Query(ctx, sqlOutboxClaim, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.OutboxRow, error) {
		var (
			o    repository.OutboxRow
			kind string
		)
		err := row.Scan(&o.ID, &kind, &o.ObjectID, &o.Payload, &o.Deleted, &o.EnqueuedAt, &o.Attempts, &o.Rejections)
		o.Kind = types.EntityKind(kind)
		return o, err
	})
	if err != nil {
		return nil, err
	}
	// RETURNING no garantiza orden
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *OutboxRepo) MarkDone(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, sqlOutboxDone, ids)
	return err
}

func (r *OutboxRepo) MarkRetry(ctx context.Context, id int64, next time.Time, lastErr string, rejected bool) error {
	_, err := r.db.Pool.Exec(ctx, sqlOutboxRetry, id, next, lastErr, rejected)
	return err
}

func (r *OutboxRepo) MarkPoisoned(ctx context.Context, id int64, lastErr string) error {
	_, err := r.db.Pool.Exec(ctx, sqlOutboxPoison, id, lastErr)
	return err
}

func (r *OutboxRepo) Stats(ctx context.Context) (repository.OutboxStats, error) {
	var (
		s      repository.OutboxStats
		oldest *time.Time
	)
	if err := r.db.Pool.QueryRow(ctx, sqlOutboxStats).Scan(&s.Pending, &s.Done, &s.Poisoned, &oldest); err != nil {
		return s, err
	}
	if oldest != nil {
		s.OldestPending = *oldest
	}
	return s, nil
}

func (r *OutboxRepo) Requeue(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, sqlOutboxRequeue)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
