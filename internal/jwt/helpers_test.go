package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type signingKey struct {
	kid  string
	priv *rsa.PrivateKey
}

func newSigningKey(t *testing.T, kid string) signingKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, priv: priv}
}

func (k signingKey) jwk() jose.JSONWebKey {
	return jose.JSONWebKey{Key: &k.priv.PublicKey, KeyID: k.kid, Algorithm: "RS256", Use: "sig"}
}

func (k signingKey) sign(t *testing.T, claims jwtv5.Claims) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, claims)
	tk.Header["kid"] = k.kid
	s, err := tk.SignedString(k.priv)
	require.NoError(t, err)
	return s
}

// testIssuer sirve discovery + JWKS y cuenta los hits al JWKS.
type testIssuer struct {
	srv       *httptest.Server
	jwksHits  atomic.Int32
	discHits  atomic.Int32
	fail      atomic.Bool
	delay     time.Duration
	useETag   bool
	mu        sync.Mutex
	published []jose.JSONWebKey
}

func newTestIssuer(t *testing.T, keys ...signingKey) *testIssuer {
	t.Helper()
	ti := &testIssuer{}
	for _, k := range keys {
		ti.published = append(ti.published, k.jwk())
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		ti.discHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 ti.srv.URL,
			"jwks_uri":               ti.srv.URL + "/jwks",
			"authorization_endpoint": ti.srv.URL + "/authorize",
			"token_endpoint":         ti.srv.URL + "/token",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		ti.jwksHits.Add(1)
		if ti.delay > 0 {
			time.Sleep(ti.delay)
		}
		if ti.fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if ti.useETag {
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
		}
		ti.mu.Lock()
		set := jose.JSONWebKeySet{Keys: append([]jose.JSONWebKey(nil), ti.published...)}
		ti.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	})
	ti.srv = httptest.NewServer(mux)
	t.Cleanup(ti.srv.Close)
	return ti
}

func (ti *testIssuer) publish(k signingKey) {
	ti.mu.Lock()
	ti.published = append(ti.published, k.jwk())
	ti.mu.Unlock()
}

func (ti *testIssuer) cache(clock *fakeClock, minRefresh time.Duration) *JWKSCache {
	resolver := &JWKSResolver{Issuer: ti.srv.URL, Client: ti.srv.Client()}
	return NewJWKSCache(JWKSConfig{
		Resolve:            resolver.Resolve,
		HTTPClient:         ti.srv.Client(),
		SoftTTL:            time.Hour,
		HardTTL:            24 * time.Hour,
		MinRefreshInterval: minRefresh,
		Now:                clock.Now,
	})
}
