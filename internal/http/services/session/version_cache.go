package session

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/cache"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// VersionStore es la fuente de verdad de la versión de sesión (UserRepository).
type VersionStore interface {
	Version(ctx context.Context, id uuid.UUID) (uint32, error)
}

// VersionCache implementa jwt.VersionSource con un cache corto delante de la
// base. Logout borra la entrada, así la invalidación es inmediata en todas las
// réplicas que comparten Redis; con cache en memoria el resto de las réplicas
// la ve al vencer el TTL.
type VersionCache struct {
	cache cache.Client
	store VersionStore
	ttl   time.Duration
}

func NewVersionCache(c cache.Client, store VersionStore, ttl time.Duration) *VersionCache {
	return &VersionCache{cache: c, store: store, ttl: ttl}
}

func versionKey(id uuid.UUID) string { return "uv:" + id.String() }

// SessionVersion devuelve la versión vigente. Errores del cache no son fatales.
func (v *VersionCache) SessionVersion(ctx context.Context, id uuid.UUID) (uint32, error) {
	key := versionKey(id)
	if v.cache != nil {
		s, err := v.cache.Get(ctx, key)
		switch {
		case err == nil:
			if n, perr := strconv.ParseUint(s, 10, 32); perr == nil {
				return uint32(n), nil
			}
		case !cache.IsNotFound(err):
			logger.From(ctx).Warn("session version cache get failed", logger.Err(err))
		}
	}

	ver, err := v.store.Version(ctx, id)
	if err != nil {
		return 0, err
	}
	if v.cache != nil {
		if err := v.cache.Set(ctx, key, strconv.FormatUint(uint64(ver), 10), v.ttl); err != nil {
			logger.From(ctx).Warn("session version cache set failed", logger.Err(err))
		}
	}
	return ver, nil
}

// Forget descarta la versión cacheada (después de un bump).
func (v *VersionCache) Forget(ctx context.Context, id uuid.UUID) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Delete(ctx, versionKey(id)); err != nil {
		logger.From(ctx).Warn("session version cache delete failed", logger.Err(err))
	}
}
