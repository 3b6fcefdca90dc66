// Package health contiene el service de readiness.
package health

import (
	"context"
	"time"

	dto "github.com/ji-devs/ji-cloud-sub012/internal/http/dto/health"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

const (
	StatusReady       = "ready"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"

	checkTimeout = 2 * time.Second
)

// Pinger es cualquier componente con health check (pg.DB, cache.Client).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service define el check de readiness.
type Service interface {
	Check(ctx context.Context) dto.HealthResponse
}

// Deps contiene las dependencias del service. Cache es opcional.
type Deps struct {
	DB      Pinger
	Cache   Pinger
	Epoch   int64
	Version string
}

type healthService struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) Service {
	return &healthService{deps: deps, now: time.Now}
}

// Check consulta la base (crítica) y el cache (no crítico).
// Sin DB el estado es unavailable; con el cache caído es degraded.
func (s *healthService) Check(ctx context.Context) dto.HealthResponse {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("HealthService.Check"))

	resp := dto.HealthResponse{
		Status:     StatusReady,
		Epoch:      s.deps.Epoch,
		Version:    s.deps.Version,
		Components: map[string]dto.HealthStatus{},
		Timestamp:  s.now().UTC(),
	}

	db := ping(ctx, s.deps.DB)
	resp.Components["database"] = db
	if db.Status != "ok" {
		log.Warn("database check failed", logger.String("message", db.Message))
		resp.Status = StatusUnavailable
	}

	if s.deps.Cache != nil {
		st := ping(ctx, s.deps.Cache)
		resp.Components["cache"] = st
		if st.Status != "ok" {
			log.Warn("cache check failed", logger.String("message", st.Message))
			if resp.Status == StatusReady {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

func ping(ctx context.Context, p Pinger) dto.HealthStatus {
	if p == nil {
		return dto.HealthStatus{Status: "down", Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return dto.HealthStatus{Status: "down", Message: err.Error()}
	}
	return dto.HealthStatus{Status: "ok"}
}
