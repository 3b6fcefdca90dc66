package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ji-devs/ji-cloud-sub012/internal/metrics"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Acciones del endpoint batch.
const (
	ActionUpdate = "updateObject"
	ActionDelete = "deleteObject"
)

// Action es una operación sobre un objeto de un índice.
type Action struct {
	Action    string         `json:"action"`
	IndexName string         `json:"indexName"`
	Body      map[string]any `json:"body"`
}

// HTTPError es una respuesta no-2xx del servicio de búsqueda.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("search: http %d: %s", e.Status, e.Body)
}

// Retryable: 5xx y 429 se reintentan; el resto de 4xx es culpa del registro.
func (e *HTTPError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// IsPermanent reporta si err es un 4xx no reintentable.
func IsPermanent(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && !he.Retryable()
}

type ClientConfig struct {
	BaseURL    string
	AppID      string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client habla con un servicio compatible con la API batch de Algolia.
type Client struct {
	baseURL string
	appID   string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
}

const breakerName = "search-api"

func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := logger.Named("search")
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// un 4xx no dice nada de la salud del servicio
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				logger.String("breaker", name), logger.String("from", from.String()), logger.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		appID:   cfg.AppID,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    hc,
		cb:      cb,
	}
}

// Batch envía las acciones en un solo request. Con el breaker abierto devuelve
// gobreaker.ErrOpenState sin tocar la red.
func (c *Client) Batch(ctx context.Context, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.send(ctx, actions)
	})
	return err
}

func (c *Client) send(ctx context.Context, actions []Action) error {
	body, err := json.Marshal(map[string]any{"requests": actions})
	if err != nil {
		return fmt.Errorf("search: encode batch: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1/indexes/*/batch", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Algolia-Application-Id", c.appID)
	req.Header.Set("X-Algolia-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search: batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
