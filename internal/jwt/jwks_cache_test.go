package jwt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWKSCache_ColdCacheConcurrentCallersHitIssuerOnce(t *testing.T) {
	k := newSigningKey(t, "k1")
	ti := newTestIssuer(t, k)
	ti.delay = 50 * time.Millisecond
	c := ti.cache(newFakeClock(), 30*time.Second)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Key(context.Background(), "k1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), ti.jwksHits.Load())
	assert.Equal(t, int32(1), ti.discHits.Load())
}

func TestJWKSCache_SoftTTLServesCachedAndRefreshesInBackground(t *testing.T) {
	k := newSigningKey(t, "k1")
	ti := newTestIssuer(t, k)
	clock := newFakeClock()
	c := ti.cache(clock, 30*time.Second)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	clock.Advance(61 * time.Minute)
	ti.fail.Store(true)
	got, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", got.KeyID)

	require.Eventually(t, func() bool { return ti.jwksHits.Load() == 2 }, time.Second, 5*time.Millisecond)

	// refresh fallido: se conserva el set anterior hasta el hard TTL
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
}

func TestJWKSCache_FailsClosedAfterHardTTL(t *testing.T) {
	k := newSigningKey(t, "k1")
	ti := newTestIssuer(t, k)
	clock := newFakeClock()
	c := ti.cache(clock, 30*time.Second)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	ti.fail.Store(true)
	clock.Advance(25 * time.Hour)
	_, err = c.Key(context.Background(), "k1")
	require.ErrorIs(t, err, ErrUnknownKey)

	// el issuer vuelve: el siguiente intento (pasado el intervalo mínimo) recupera
	ti.fail.Store(false)
	clock.Advance(time.Minute)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
}

func TestJWKSCache_UnknownKidForcesRefresh(t *testing.T) {
	k1 := newSigningKey(t, "k1")
	ti := newTestIssuer(t, k1)
	clock := newFakeClock()
	c := ti.cache(clock, 0)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	k2 := newSigningKey(t, "k2")
	ti.publish(k2)
	got, err := c.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.KeyID)
	assert.Equal(t, int32(2), ti.jwksHits.Load())

	_, err = c.Key(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(3), ti.jwksHits.Load(), "exactly one forced refresh per call")
}

func TestJWKSCache_MinRefreshIntervalThrottlesUnknownKids(t *testing.T) {
	ti := newTestIssuer(t, newSigningKey(t, "k1"))
	clock := newFakeClock()
	c := ti.cache(clock, 30*time.Second)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = c.Key(context.Background(), "random-kid")
		require.ErrorIs(t, err, ErrUnknownKey)
	}
	// fetch inicial + un único forzado
	assert.Equal(t, int32(2), ti.jwksHits.Load())

	clock.Advance(31 * time.Second)
	_, err = c.Key(context.Background(), "random-kid")
	require.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, int32(3), ti.jwksHits.Load())
}

func TestJWKSCache_RotationRightAfterBackgroundRefresh(t *testing.T) {
	ti := newTestIssuer(t, newSigningKey(t, "k1"))
	clock := newFakeClock()
	c := ti.cache(clock, 30*time.Second)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	clock.Advance(61 * time.Minute)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, gen := c.snapshot()
		return gen == 2
	}, time.Second, 5*time.Millisecond)

	// el issuer rota dentro del intervalo mínimo del refresh en background
	ti.publish(newSigningKey(t, "k2"))
	got, err := c.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.KeyID)
	assert.Equal(t, int32(3), ti.jwksHits.Load())
}

func TestJWKSCache_NotModifiedKeepsKeys(t *testing.T) {
	ti := newTestIssuer(t, newSigningKey(t, "k1"))
	ti.useETag = true
	clock := newFakeClock()
	var results []string
	var mu sync.Mutex
	c := ti.cache(clock, 0)
	c.cfg.OnRefresh = func(r string) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{RefreshOK, RefreshNotModified}, results)
}

func TestParseKeySet_SkipsUnusableKeys(t *testing.T) {
	good := newSigningKey(t, "good")
	raw, err := good.jwk().MarshalJSON()
	require.NoError(t, err)
	body := []byte(`{"keys":[{"kty":"oct","k":"c2VjcmV0","kid":"sym"},` +
		`{"kty":"RSA","kid":"enc","use":"enc","n":"AQAB","e":"AQAB"},` +
		`{"kty":"bogus"},` + string(raw) + `]}`)

	keys, err := parseKeySet(body)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Contains(t, keys, "good")

	_, err = parseKeySet([]byte(`{"keys":[]}`))
	require.Error(t, err)
}
