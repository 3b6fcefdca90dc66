// Package health contiene el controller de /readyz.
package health

import (
	"net/http"

	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	svc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/health"
)

type Controller struct {
	service svc.Service
}

func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

// Ready handles GET /readyz. Responde 503 sólo si la base no está disponible.
func (c *Controller) Ready(w http.ResponseWriter, r *http.Request) {
	resp := c.service.Check(r.Context())
	status := http.StatusOK
	if resp.Status == svc.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, status, resp)
}

// Live handles GET /healthz: el proceso responde.
func (c *Controller) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
