package media

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

const (
	UploadTTL   = 5 * time.Minute
	DownloadTTL = 15 * time.Minute

	storeAttempts = 3
)

// Options ajusta el gateway; los ceros toman los valores por defecto.
type Options struct {
	Now func() time.Time
	// Observe recibe (op, kind, result) para métricas.
	Observe func(op, kind, result string)
	// Backoff entre reintentos contra el store.
	Backoff func() backoff.BackOff
}

// Gateway valida pedidos de media, firma URLs y registra las keys emitidas.
type Gateway struct {
	store   Store
	repo    repository.MediaRepository
	now     func() time.Time
	observe func(op, kind, result string)
	backoff func() backoff.BackOff
}

func NewGateway(store Store, repo repository.MediaRepository, opts Options) *Gateway {
	g := &Gateway{store: store, repo: repo, now: opts.Now, observe: opts.Observe, backoff: opts.Backoff}
	if g.now == nil {
		g.now = time.Now
	}
	if g.observe == nil {
		g.observe = func(string, string, string) {}
	}
	if g.backoff == nil {
		g.backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		}
	}
	return g
}

type UploadRequest struct {
	Kind        string
	OwnerID     uuid.UUID
	ContentType string
	Size        int64
}

type UploadGrant struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"uploadUrl"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type DownloadGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GrantUpload valida kind/tamaño/tipo, genera una key nueva y firma un PUT de 5 minutos.
func (g *Gateway) GrantUpload(ctx context.Context, req UploadRequest) (*UploadGrant, error) {
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}
	ct, err := kind.CheckUpload(req.ContentType, req.Size)
	if err != nil {
		g.observe("upload", string(kind), "rejected")
		return nil, err
	}

	now := g.now()
	key := NewKey(kind, now)
	signed, err := g.store.PresignPut(ctx, key, ct, req.Size, UploadTTL)
	if err != nil {
		g.observe("upload", string(kind), "error")
		return nil, errors.Join(ErrStoreUpstream, err)
	}
	owner := req.OwnerID
	if err := g.repo.Create(ctx, repository.MediaObject{
		Key:          key,
		Kind:         string(kind),
		OwnerID:      &owner,
		ContentType:  ct,
		DeclaredSize: req.Size,
	}); err != nil {
		return nil, err
	}

	g.observe("upload", string(kind), "granted")
	logger.From(ctx).Info("media upload granted",
		logger.MediaKey(key), logger.MediaKind(string(kind)), logger.UserID(owner.String()))
	return &UploadGrant{Key: key, UploadURL: signed.URL, Headers: signed.Headers, ExpiresAt: now.Add(UploadTTL)}, nil
}

// GrantDownload firma un GET de 15 minutos si el usuario puede leer la key.
// Sin acceso responde ErrNotFound para no revelar la existencia.
func (g *Gateway) GrantDownload(ctx context.Context, key string, userID uuid.UUID) (*DownloadGrant, error) {
	kind, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	ok, err := g.repo.CanRead(ctx, key, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	now := g.now()
	u, err := g.store.PresignGet(ctx, key, DownloadTTL)
	if err != nil {
		g.observe("download", string(kind), "error")
		return nil, errors.Join(ErrStoreUpstream, err)
	}
	g.observe("download", string(kind), "granted")
	return &DownloadGrant{URL: u, ExpiresAt: now.Add(DownloadTTL)}, nil
}

// Actor identifica quién pide una baja. Las cuentas de servicio pueden borrar cualquier key.
type Actor struct {
	UserID  uuid.UUID
	Service bool
}

// Delete es idempotente: una key inexistente no es error.
// La fila se borra primero (ErrInUse si algo la referencia) y después el objeto.
func (g *Gateway) Delete(ctx context.Context, key string, actor Actor) error {
	kind, err := ParseKey(key)
	if err != nil {
		return err
	}
	obj, err := g.repo.Get(ctx, key)
	switch {
	case repository.IsNotFound(err):
		if !actor.Service {
			return nil
		}
	case err != nil:
		return err
	default:
		if !actor.Service && (obj.OwnerID == nil || *obj.OwnerID != actor.UserID) {
			return ErrForbidden
		}
		if err := g.repo.Delete(ctx, key); err != nil {
			if errors.Is(err, repository.ErrInUse) {
				return ErrInUse
			}
			return err
		}
	}

	if err := g.retry(ctx, func() error { return g.store.Delete(ctx, key) }); err != nil {
		g.observe("delete", string(kind), "error")
		return err
	}
	g.observe("delete", string(kind), "deleted")
	logger.From(ctx).Info("media deleted", logger.MediaKey(key))
	return nil
}

type ServerPutRequest struct {
	Key         string
	Body        []byte
	ContentType string
	OwnerID     *uuid.UUID
}

// ServerPut sube derivados generados por el servidor. Nunca sobrescribe una key existente.
func (g *Gateway) ServerPut(ctx context.Context, req ServerPutRequest) error {
	kind, err := ParseKey(req.Key)
	if err != nil {
		return err
	}
	ct, err := kind.CheckUpload(req.ContentType, int64(len(req.Body)))
	if err != nil {
		return err
	}
	if err := g.retry(ctx, func() error {
		err := g.store.PutIfAbsent(ctx, req.Key, req.Body, ct)
		if errors.Is(err, ErrKeyExists) {
			return backoff.Permanent(err)
		}
		return err
	}); err != nil {
		g.observe("server_put", string(kind), "error")
		return err
	}
	if err := g.repo.Create(ctx, repository.MediaObject{
		Key:          req.Key,
		Kind:         string(kind),
		OwnerID:      req.OwnerID,
		ContentType:  ct,
		DeclaredSize: int64(len(req.Body)),
	}); err != nil {
		return err
	}
	g.observe("server_put", string(kind), "stored")
	return nil
}

func (g *Gateway) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(g.backoff(), storeAttempts-1), ctx)
	return backoff.Retry(op, b)
}
