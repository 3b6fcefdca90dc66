// Package app arma el proceso: config -> stores -> services -> router.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ji-devs/ji-cloud-sub012/internal/cache"
	"github.com/ji-devs/ji-cloud-sub012/internal/config"
	"github.com/ji-devs/ji-cloud-sub012/internal/email"
	httpx "github.com/ji-devs/ji-cloud-sub012/internal/http"
	contentctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/content"
	healthctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/health"
	mediactrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/media"
	sessionctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/session"
	usersctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/users"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/router"
	contentsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/content"
	healthsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/health"
	sessionsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/session"
	userssvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/users"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
	"github.com/ji-devs/ji-cloud-sub012/internal/metrics"
	"github.com/ji-devs/ji-cloud-sub012/internal/migrate"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
	"github.com/ji-devs/ji-cloud-sub012/internal/rate"
	"github.com/ji-devs/ji-cloud-sub012/internal/search"
	"github.com/ji-devs/ji-cloud-sub012/internal/store/pg"
)

// Version se setea con -ldflags en el build.
var Version = "dev"

// App contiene las dependencias vivas del proceso.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	DB      *pg.DB
	Cache   cache.Client
	Handler http.Handler
	Worker  *search.Worker

	closers []io.Closer
	log     *zap.Logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open conecta Postgres (aplicando migraciones si está configurado).
// Lo usan tanto serve como los subcomandos de outbox.
func Open(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, *pg.DB, error) {
	if cfg.Database.Migrate {
		if err := migrate.Up(ctx, cfg.Database.URL); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := pg.Connect(ctx, pg.PoolConfig{
		DSN:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return pool, pg.New(pool, search.Builder{}), nil
}

// Build arma el handler y el worker de búsqueda. cfg ya pasó por config.Init.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, log: logger.Named("app")}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	pool, db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool, a.DB = pool, db
	a.closers = append(a.closers, closerFunc(func() error { pool.Close(); return nil }))

	c, err := cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, err
	}
	a.Cache = c
	a.closers = append(a.closers, c)

	users := pg.NewUserRepo(db)
	tokenRepo := pg.NewTokenRepo(db)
	mediaRepo := pg.NewMediaRepo(db)
	contentRepo := pg.NewContentRepo(db)
	outbox := pg.NewOutboxRepo(db)

	// identidad externa
	resolver := &jwtx.JWKSResolver{Issuer: cfg.JWK.IssuerURL, Override: cfg.JWK.JWKSURL}
	jwks := jwtx.NewJWKSCache(jwtx.JWKSConfig{
		Resolve:            resolver.Resolve,
		SoftTTL:            cfg.JWK.SoftTTL,
		HardTTL:            cfg.JWK.HardTTL,
		MinRefreshInterval: cfg.JWK.MinRefreshInterval,
		OnRefresh:          metrics.ObserveJWKS,
	})
	identity := jwtx.NewIdentityVerifier(jwks, cfg.JWK.IssuerURL, cfg.JWK.Audience)

	// sesiones locales
	keys, err := jwtx.DeriveSessionKeys([]byte(cfg.Session.Secret))
	if err != nil {
		return nil, err
	}
	versions := sessionsvc.NewVersionCache(c, users, cfg.Session.VersionCacheTTL)
	issuer := jwtx.NewSessionIssuer(keys)
	verifier := jwtx.NewSessionVerifier(keys, versions, tokenRepo)

	store, err := media.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cl, isCloser := store.(io.Closer); isCloser {
		a.closers = append(a.closers, cl)
	}
	gateway := media.NewGateway(store, mediaRepo, media.Options{Observe: metrics.ObserveMedia})

	var sender email.Sender = email.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.TLS)
	} else {
		a.log.Warn("SMTP not configured, verification emails are only logged")
	}
	mailer, err := email.NewMailer(sender, cfg.Email.BaseURL)
	if err != nil {
		return nil, err
	}

	sessions := sessionsvc.NewService(sessionsvc.Deps{
		Identity: identity,
		Users:    users,
		Tokens:   tokenRepo,
		Issuer:   issuer,
		Verifier: verifier,
		Versions: versions,
	})
	auth := mw.NewAuthenticator(mw.AuthConfig{
		Identity:        identity,
		Sessions:        verifier,
		Users:           sessions,
		ServiceAccounts: cfg.ServiceAccounts,
	})

	proxies, err := helpers.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		Registry: prometheus.DefaultRegisterer,
		Pool:     func() *pgxpool.Pool { return pool },
	})
	if err != nil {
		return nil, err
	}

	a.Handler = router.New(router.Deps{
		Controllers: router.Controllers{
			Session: sessionctrl.NewController(sessions, helpers.CookieConfig{
				Domain: cfg.Session.CookieDomain,
				Secure: cfg.Session.CookieSecure,
			}),
			Users: usersctrl.NewController(userssvc.NewService(userssvc.Deps{
				Users:  users,
				Tokens: tokenRepo,
				Media:  mediaRepo,
				Issuer: issuer,
				Mailer: mailer,
			})),
			Media:   mediactrl.NewController(gateway),
			Content: contentctrl.NewController(contentsvc.NewService(contentsvc.Deps{Content: contentRepo, Media: mediaRepo})),
			Health: healthctrl.NewController(healthsvc.NewService(healthsvc.Deps{
				DB:      db,
				Cache:   c,
				Epoch:   cfg.App.Epoch,
				Version: Version,
			})),
		},
		Auth:           auth,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		Epoch:          cfg.App.Epoch,
		RateLimiter:    newLimiter(cfg, c),
		TrustedProxies: proxies,
		Metrics:        metricsHandler,
	})

	if cfg.Search.BaseURL != "" || cfg.Search.AppID != "" {
		client := search.NewClient(search.ClientConfig{
			BaseURL: cfg.Search.BaseURL,
			AppID:   cfg.Search.AppID,
			APIKey:  cfg.Search.APIKey,
			Timeout: cfg.Search.Timeout,
		})
		a.Worker = search.NewWorker(outbox, client, search.WorkerConfig{
			IndexPrefix: cfg.Search.IndexPrefix,
			BatchSize:   cfg.Search.BatchSize,
			BatchWait:   cfg.Search.BatchWait,
		})
	} else {
		a.log.Warn("search not configured, outbox will accumulate until a worker runs")
	}

	ok = true
	return a, nil
}

// newLimiter usa Redis si el cache es Redis (límite compartido entre réplicas).
func newLimiter(cfg *config.Config, c cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if r, isRedis := c.(cache.RedisBacked); isRedis {
		return rate.NewRedisLimiter(r.Redis(), cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.MaxRequests, cfg.Rate.Window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.MaxRequests, cfg.Rate.Window)
}

// Run sirve HTTP y corre el worker hasta que ctx termine.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := httpx.NewServer(a.Config, a.Handler)
	g.Go(func() error {
		return httpx.Serve(ctx, srv, a.Config.Server.ShutdownTimeout)
	})
	if a.Worker != nil {
		workers := a.Config.Search.Workers
		g.Go(func() error { return a.Worker.Run(ctx, workers) })
	}
	return g.Wait()
}

// Close libera recursos en orden inverso.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
