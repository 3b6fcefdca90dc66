// Package health contiene los DTOs de /readyz.
package health

import "time"

// HealthStatus es el estado de un componente.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse es la respuesta de GET /readyz.
type HealthResponse struct {
	Status     string                  `json:"status"` // ready | degraded | unavailable
	Epoch      int64                   `json:"epoch"`
	Version    string                  `json:"version,omitempty"`
	Components map[string]HealthStatus `json:"components"`
	Timestamp  time.Time               `json:"timestamp"`
}
