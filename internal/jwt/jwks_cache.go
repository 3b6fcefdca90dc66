package jwt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

const maxJWKSBytes = 1 << 20

// Resultados reportados a OnRefresh.
const (
	RefreshOK          = "ok"
	RefreshNotModified = "not_modified"
	RefreshError       = "error"
)

// JWKSConfig configura el cache de claves públicas del issuer.
type JWKSConfig struct {
	// Resolve devuelve la URL del JWKS (discovery o valor fijo).
	Resolve            func(ctx context.Context) (string, error)
	HTTPClient         *http.Client
	SoftTTL            time.Duration // pasado este tiempo se refresca en background
	HardTTL            time.Duration // pasado este tiempo se falla cerrado
	MinRefreshInterval time.Duration // separación mínima entre fetches del mismo tipo
	FetchTimeout       time.Duration
	Now                func() time.Time
	OnRefresh          func(result string)
	Logger             *zap.Logger
}

type keySet struct {
	keys      map[string]jose.JSONWebKey
	fetchedAt time.Time
	etag      string
}

func (s *keySet) lookup(kid string) (jose.JSONWebKey, bool) {
	if kid == "" && len(s.keys) == 1 {
		for _, k := range s.keys {
			return k, true
		}
	}
	k, ok := s.keys[kid]
	return k, ok
}

// JWKSCache mantiene el JWKS del issuer con TTL blando/duro.
// Un solo refresh en vuelo a la vez; los llamadores concurrentes se suman a él.
type JWKSCache struct {
	cfg JWKSConfig
	log *zap.Logger

	mu          sync.RWMutex
	set         *keySet
	gen         uint64
	lastAttempt time.Time // último fetch por TTL (frío, vencido o background)
	lastForced  time.Time // último fetch forzado por kid desconocido
	lastErr     error

	flight singleflight.Group
}

func NewJWKSCache(cfg JWKSConfig) *JWKSCache {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.SoftTTL <= 0 {
		cfg.SoftTTL = time.Hour
	}
	if cfg.HardTTL < cfg.SoftTTL {
		cfg.HardTTL = 24 * time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := cfg.Logger
	if l == nil {
		l = logger.Named("jwks")
	}
	return &JWKSCache{cfg: cfg, log: l}
}

func (c *JWKSCache) snapshot() (*keySet, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set, c.gen
}

func (c *JWKSCache) usable(s *keySet) bool {
	return s != nil && c.cfg.Now().Sub(s.fetchedAt) < c.cfg.HardTTL
}

// Key devuelve la clave pública para kid.
// Cache frío o vencido (hard TTL) => refresh sincrónico; entre soft y hard
// se sirve lo cacheado y se refresca en background. Un kid desconocido fuerza
// a lo sumo un refresh por llamada. Los forzados se espacian entre sí por
// MinRefreshInterval, sin contar los refresh por TTL.
func (c *JWKSCache) Key(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	set, gen := c.snapshot()

	if !c.usable(set) {
		if err := c.refresh(ctx, gen, false); err != nil {
			c.log.Warn("jwks refresh failed", logger.Kid(kid), logger.Err(err))
		}
		set, gen = c.snapshot()
		if !c.usable(set) {
			return jose.JSONWebKey{}, ErrUnknownKey
		}
	} else if c.cfg.Now().Sub(set.fetchedAt) >= c.cfg.SoftTTL {
		go c.refreshBackground(gen)
	}

	if k, ok := set.lookup(kid); ok {
		return k, nil
	}

	if err := c.refresh(ctx, gen, true); err != nil {
		c.log.Warn("jwks forced refresh failed", logger.Kid(kid), logger.Err(err))
	}
	set, _ = c.snapshot()
	if c.usable(set) {
		if k, ok := set.lookup(kid); ok {
			return k, nil
		}
	}
	return jose.JSONWebKey{}, ErrUnknownKey
}

func (c *JWKSCache) refreshBackground(seen uint64) {
	if err := c.refresh(context.Background(), seen, false); err != nil {
		c.log.Warn("jwks background refresh failed", logger.Err(err))
	}
}

// refresh se suma al vuelo en curso. El fetch usa un contexto desligado del
// request: si el llamador se cancela, el resto de los que esperan no pierde el resultado.
func (c *JWKSCache) refresh(ctx context.Context, seen uint64, forced bool) error {
	ch := c.flight.DoChan("jwks", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()
		return nil, c.doRefresh(fctx, seen, forced)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

func (c *JWKSCache) doRefresh(ctx context.Context, seen uint64, forced bool) error {
	c.mu.Lock()
	if c.gen != seen {
		// otro refresh terminó después de que el llamador miró el set
		c.mu.Unlock()
		return nil
	}
	now := c.cfg.Now()
	last := &c.lastAttempt
	if forced {
		last = &c.lastForced
	}
	if !last.IsZero() && now.Sub(*last) < c.cfg.MinRefreshInterval {
		err := c.lastErr
		c.mu.Unlock()
		return err
	}
	*last = now
	var etag string
	if c.set != nil {
		etag = c.set.etag
	}
	c.mu.Unlock()

	fresh, notModified, err := c.fetch(ctx, etag)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	switch {
	case err != nil:
		c.report(RefreshError)
		return err
	case notModified && c.set != nil:
		touched := *c.set
		touched.fetchedAt = c.cfg.Now()
		c.set = &touched
		c.report(RefreshNotModified)
	case notModified:
		c.lastErr = errors.New("jwks: 304 without cached set")
		c.report(RefreshError)
		return c.lastErr
	default:
		c.set = fresh
		c.report(RefreshOK)
		c.log.Info("jwks refreshed", logger.Count(len(fresh.keys)))
	}
	c.gen++
	return nil
}

func (c *JWKSCache) report(result string) {
	if c.cfg.OnRefresh != nil {
		c.cfg.OnRefresh(result)
	}
}

func (c *JWKSCache) fetch(ctx context.Context, etag string) (*keySet, bool, error) {
	if c.cfg.Resolve == nil {
		return nil, false, errors.New("jwks: no resolver configured")
	}
	uri, err := c.cfg.Resolve(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("jwks: resolve: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("jwks: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, true, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, false, fmt.Errorf("jwks: http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, false, fmt.Errorf("jwks: read: %w", err)
	}
	keys, err := parseKeySet(body)
	if err != nil {
		return nil, false, err
	}
	return &keySet{keys: keys, fetchedAt: c.cfg.Now(), etag: resp.Header.Get("ETag")}, false, nil
}

// parseKeySet parsea clave por clave; las que no sirven para verificar firmas se descartan.
func parseKeySet(body []byte) (map[string]jose.JSONWebKey, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwks: decode: %w", err)
	}
	out := make(map[string]jose.JSONWebKey, len(doc.Keys))
	for _, raw := range doc.Keys {
		var k jose.JSONWebKey
		if err := k.UnmarshalJSON(raw); err != nil {
			continue
		}
		if !k.Valid() || !k.IsPublic() {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		out[k.KeyID] = k
	}
	if len(out) == 0 {
		return nil, errors.New("jwks: no usable signing keys")
	}
	return out, nil
}
