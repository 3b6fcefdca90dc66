package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = pingerFunc(func(context.Context) error { return nil })
	down = pingerFunc(func(context.Context) error { return errors.New("connection refused") })
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		db     Pinger
		cache  Pinger
		status string
	}{
		{"all up", up, up, StatusReady},
		{"no cache configured", up, nil, StatusReady},
		{"cache down", up, down, StatusDegraded},
		{"db down", down, up, StatusUnavailable},
		{"db missing", nil, up, StatusUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Deps{DB: tt.db, Cache: tt.cache, Epoch: 42})
			resp := svc.Check(context.Background())
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, int64(42), resp.Epoch)
			assert.Contains(t, resp.Components, "database")
		})
	}
}
