package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/metrics"
)

type memRow struct {
	repository.OutboxRow
	state      repository.OutboxState
	next       time.Time
	leaseUntil time.Time
	lastErr    string
}

// memOutbox reproduce las consultas de pg/outbox.go: claim cabeza-de-fila por
// objeto, leases y compactación de filas no tomadas. Con now nil el
// next_attempt_at se ignora (cada pasada es "más tarde").
type memOutbox struct {
	mu     sync.Mutex
	rows   []*memRow
	nextID int64
	now    func() time.Time
}

func (m *memOutbox) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *memOutbox) leased(r *memRow) bool { return r.leaseUntil.After(m.clock()) }

func (m *memOutbox) Enqueue(_ context.Context, rec types.IndexRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, err := json.Marshal(rec.Document)
	if err != nil {
		return 0, err
	}
	m.nextID++
	m.rows = append(m.rows, &memRow{
		OutboxRow: repository.OutboxRow{ID: m.nextID, Kind: rec.Kind, ObjectID: rec.ObjectID, Payload: payload, Deleted: rec.Deleted, EnqueuedAt: time.Now()},
		state:     repository.OutboxPending,
	})
	return m.nextID, nil
}

func (m *memOutbox) Compact(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, r := range m.rows {
		if r.state != repository.OutboxPending || m.leased(r) {
			continue
		}
		for _, later := range m.rows[i+1:] {
			if later.state == repository.OutboxPending && later.Kind == r.Kind && later.ObjectID == r.ObjectID {
				r.state = repository.OutboxDone
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *memOutbox) Claim(_ context.Context, limit int, lease time.Duration) ([]repository.OutboxRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	// la fila pendiente más vieja de cada objeto bloquea a las siguientes,
	// esté tomada o esperando reintento
	blocked := map[string]bool{}
	var out []repository.OutboxRow
	for _, r := range m.rows {
		if r.state != repository.OutboxPending {
			continue
		}
		key := types.ObjectKey(r.Kind, r.ObjectID)
		if blocked[key] {
			continue
		}
		blocked[key] = true
		if m.leased(r) || (m.now != nil && r.next.After(now)) {
			continue
		}
		if len(out) < limit {
			r.leaseUntil = now.Add(lease)
			out = append(out, r.OutboxRow)
		}
	}
	return out, nil
}

func (m *memOutbox) find(id int64) *memRow {
	for _, r := range m.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *memOutbox) MarkDone(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		r := m.find(id)
		r.state = repository.OutboxDone
		r.leaseUntil = time.Time{}
	}
	return nil
}

func (m *memOutbox) MarkRetry(_ context.Context, id int64, next time.Time, lastErr string, rejected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	r.Attempts++
	if rejected {
		r.Rejections++
	}
	r.leaseUntil = time.Time{}
	r.next = next
	r.lastErr = lastErr
	return nil
}

func (m *memOutbox) MarkPoisoned(_ context.Context, id int64, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	r.Attempts++
	r.Rejections++
	r.leaseUntil = time.Time{}
	r.state = repository.OutboxPoisoned
	r.lastErr = lastErr
	return nil
}

func (m *memOutbox) Stats(context.Context) (repository.OutboxStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s repository.OutboxStats
	for _, r := range m.rows {
		switch r.state {
		case repository.OutboxPending:
			s.Pending++
		case repository.OutboxDone:
			s.Done++
		case repository.OutboxPoisoned:
			s.Poisoned++
		}
	}
	return s, nil
}

func (m *memOutbox) Requeue(context.Context) (int64, error) { return 0, nil }

func (m *memOutbox) row(id int64) memRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.find(id)
}

// fakeIndex registra cada batch y responde según reject.
type fakeIndex struct {
	mu       sync.Mutex
	batches  [][]Action
	status   int
	rejectID string
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path != "/1/indexes/*/batch" || r.Header.Get("X-Algolia-API-Key") != "key" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Requests []Action `json:"requests"`
	}
	_ = json.Unmarshal(body, &req)
	f.batches = append(f.batches, req.Requests)
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `{"message":"nope"}`)
		return
	}
	if f.rejectID != "" {
		for _, a := range req.Requests {
			if a.Body[FieldObjectID] == f.rejectID {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"message":"record too big"}`)
				return
			}
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"taskID":{},"objectIDs":[]}`)
}

func (f *fakeIndex) sent() [][]Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Action(nil), f.batches...)
}

func newHarness(t *testing.T) (*Worker, *memOutbox, *fakeIndex) {
	t.Helper()
	idx := &fakeIndex{}
	srv := httptest.NewServer(idx)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{BaseURL: srv.URL, AppID: "APP", APIKey: "key", HTTPClient: srv.Client()})
	out := &memOutbox{}
	w := NewWorker(out, client, WorkerConfig{IndexPrefix: "test_"})
	return w, out, idx
}

func jig(id uuid.UUID, name string) *repository.ContentItem {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return &repository.ContentItem{
		ID: id, Kind: types.EntityJig, OwnerID: uuid.New(), DisplayName: name,
		Privacy: types.PrivacyPublic, CreatedAt: at, UpdatedAt: at,
	}
}

func TestWorker_MirrorsCreateAndDelete(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, "Aleph")))
	require.NoError(t, err)
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = out.Enqueue(ctx, Builder{}.DeletedRecord(types.EntityJig, id, time.Now()))
	require.NoError(t, err)
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)

	sent := idx.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, ActionUpdate, sent[0][0].Action)
	assert.Equal(t, "test_jig", sent[0][0].IndexName)
	assert.Equal(t, "jig:"+id.String(), sent[0][0].Body[FieldObjectID])
	assert.Equal(t, "Aleph", sent[0][0].Body["displayName"])
	assert.Equal(t, ActionDelete, sent[1][0].Action)
	assert.Equal(t, map[string]any{FieldObjectID: "jig:" + id.String()}, sent[1][0].Body)

	s, _ := out.Stats(ctx)
	assert.Equal(t, int64(2), s.Done)
}

func TestWorker_CompactsSupersededUpdates(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	for _, name := range []string{"v1", "v2", "v3"} {
		_, err := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, name)))
		require.NoError(t, err)
	}
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	sent := idx.sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0], 1)
	assert.Equal(t, "v3", sent[0][0].Body["displayName"])
}

func TestWorker_PoisonsAfterThreeAttempts(t *testing.T) {
	w, out, idx := newHarness(t)
	idx.status = http.StatusBadRequest
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.SearchSyncTotal.WithLabelValues("poisoned"))

	rowID, err := out.Enqueue(ctx, Builder{}.ContentRecord(jig(uuid.New(), "bad")))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := w.RunOnce(ctx)
		require.NoError(t, err)
	}

	r := out.row(rowID)
	assert.Equal(t, repository.OutboxPoisoned, r.state)
	assert.Equal(t, 3, r.Attempts)
	assert.Len(t, idx.sent(), 3)
	assert.Contains(t, r.lastErr, "400")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SearchSyncTotal.WithLabelValues("poisoned")))
}

func TestWorker_ServerErrorsRetryWithoutPoisoning(t *testing.T) {
	w, out, idx := newHarness(t)
	idx.status = http.StatusServiceUnavailable
	ctx := context.Background()

	rowID, err := out.Enqueue(ctx, Builder{}.ContentRecord(jig(uuid.New(), "later")))
	require.NoError(t, err)
	start := time.Now()
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)

	r := out.row(rowID)
	assert.Equal(t, repository.OutboxPending, r.state)
	assert.Equal(t, 1, r.Attempts)
	assert.WithinRange(t, r.next, start.Add(500*time.Millisecond), time.Now().Add(1500*time.Millisecond))

	// 429 tampoco envenena
	idx.mu.Lock()
	idx.status = http.StatusTooManyRequests
	idx.mu.Unlock()
	for i := 0; i < 3; i++ {
		_, err = w.RunOnce(ctx)
		require.NoError(t, err)
	}
	r = out.row(rowID)
	assert.Equal(t, repository.OutboxPending, r.state)
	assert.Equal(t, 4, r.Attempts)
}

func TestWorker_BisectsRejectedBatch(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	var ids []int64
	var bad string
	for i := 0; i < 4; i++ {
		item := jig(uuid.New(), "item")
		if i == 2 {
			bad = "jig:" + item.ID.String()
		}
		id, err := out.Enqueue(ctx, Builder{}.ContentRecord(item))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	idx.rejectID = bad

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	var states []string
	for _, id := range ids {
		r := out.row(id)
		states = append(states, string(r.state))
	}
	assert.Equal(t, []string{"done", "done", "pending", "done"}, states)
	assert.Equal(t, 1, out.row(ids[2]).Attempts)
	assert.Equal(t, 0, out.row(ids[0]).Attempts)
}

func TestWorker_CorruptPayloadPoisonedImmediately(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	out.mu.Lock()
	out.nextID++
	out.rows = append(out.rows, &memRow{
		OutboxRow: repository.OutboxRow{ID: out.nextID, Kind: types.EntityUser, ObjectID: uuid.New(), Payload: []byte("{not json")},
		state:     repository.OutboxPending,
	})
	out.mu.Unlock()

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.OutboxPoisoned, out.row(1).state)
	assert.Empty(t, idx.sent())
}

func sentNames(batches [][]Action) []string {
	var names []string
	for _, b := range batches {
		for _, act := range b {
			if n, ok := act.Body["displayName"].(string); ok {
				names = append(names, n)
			}
		}
	}
	return names
}

func TestWorker_LeasedHeadBlocksNewerUpdate(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	v1, _ := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, "v1")))
	// otra réplica tomó v1 y todavía no terminó
	taken, err := out.Claim(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, taken, 1)
	v2, _ := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, "v2")))

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, idx.sent())
	assert.Equal(t, repository.OutboxPending, out.row(v1).state, "leased rows are never compacted")
	assert.Equal(t, repository.OutboxPending, out.row(v2).state)

	require.NoError(t, out.MarkDone(ctx, []int64{v1}))
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"v2"}, sentNames(idx.sent()))
}

func TestWorker_RetryingHeadIsNeverSentAfterNewerUpdate(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	now := time.Now()
	out.now = func() time.Time { return now }
	w.cfg.Now = out.now
	id, other := uuid.New(), uuid.New()

	idx.status = http.StatusServiceUnavailable
	v1, _ := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, "v1")))
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, out.row(v1).next.After(now))

	// v1 espera su reintento; otro objeto no queda bloqueado por eso
	idx.mu.Lock()
	idx.status = 0
	idx.mu.Unlock()
	_, _ = out.Enqueue(ctx, Builder{}.ContentRecord(jig(other, "o1")))
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "o1"}, sentNames(idx.sent()))

	v2, _ := out.Enqueue(ctx, Builder{}.ContentRecord(jig(id, "v2")))
	for i := 0; i < 3; i++ {
		now = now.Add(time.Minute)
		_, err = w.RunOnce(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"v1", "o1", "v2"}, sentNames(idx.sent()))
	assert.Equal(t, repository.OutboxDone, out.row(v1).state)
	assert.Equal(t, repository.OutboxDone, out.row(v2).state)
}

func TestWorker_OnlyRejectionsCountTowardsPoison(t *testing.T) {
	w, out, idx := newHarness(t)
	ctx := context.Background()
	rowID, _ := out.Enqueue(ctx, Builder{}.ContentRecord(jig(uuid.New(), "flaky")))

	setStatus := func(code int) {
		idx.mu.Lock()
		idx.status = code
		idx.mu.Unlock()
	}
	setStatus(http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		_, err := w.RunOnce(ctx)
		require.NoError(t, err)
	}
	setStatus(http.StatusBadRequest)
	for i := 0; i < 2; i++ {
		_, err := w.RunOnce(ctx)
		require.NoError(t, err)
	}
	r := out.row(rowID)
	assert.Equal(t, repository.OutboxPending, r.state)
	assert.Equal(t, 4, r.Attempts)
	assert.Equal(t, 2, r.Rejections)

	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	r = out.row(rowID)
	assert.Equal(t, repository.OutboxPoisoned, r.state)
	assert.Equal(t, 3, r.Rejections)
	assert.Len(t, idx.sent(), 5)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy
	for i := 0; i < 50; i++ {
		d1 := p.Delay(1)
		assert.GreaterOrEqual(t, d1, 500*time.Millisecond)
		assert.LessOrEqual(t, d1, 1500*time.Millisecond)
		d3 := p.Delay(3)
		assert.GreaterOrEqual(t, d3, 2*time.Second)
		assert.LessOrEqual(t, d3, 6*time.Second)
		assert.LessOrEqual(t, p.Delay(20), time.Minute)
	}
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "prod_user", IndexName("prod_", types.EntityUser))
	assert.True(t, strings.HasSuffix(IndexName("", types.EntityCircle), "circle"))
}
