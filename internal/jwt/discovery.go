package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DiscoverJWKSURL lee el documento .well-known del issuer y devuelve jwks_uri.
// go-oidc valida que el issuer del documento coincida con el configurado.
func DiscoverJWKSURL(ctx context.Context, issuer string, client *http.Client) (string, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("oidc discovery: %w", err)
	}
	var meta struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("oidc discovery: %w", err)
	}
	if meta.JWKSURL == "" {
		return "", errors.New("oidc discovery: jwks_uri missing")
	}
	return meta.JWKSURL, nil
}

// JWKSResolver resuelve la URL del JWKS una sola vez (override o discovery).
// Un discovery fallido no se cachea; el próximo refresh lo reintenta.
type JWKSResolver struct {
	Issuer   string
	Override string
	Client   *http.Client

	mu  sync.Mutex
	url string
}

func (r *JWKSResolver) Resolve(ctx context.Context) (string, error) {
	if r.Override != "" {
		return r.Override, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.url != "" {
		return r.url, nil
	}
	u, err := DiscoverJWKSURL(ctx, r.Issuer, r.Client)
	if err != nil {
		return "", err
	}
	r.url = u
	return u, nil
}
