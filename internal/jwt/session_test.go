package jwt

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

type memVersions struct {
	mu sync.Mutex
	v  map[uuid.UUID]uint32
}

func (m *memVersions) SessionVersion(_ context.Context, id uuid.UUID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.v[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return v, nil
}

func (m *memVersions) bump(id uuid.UUID) {
	m.mu.Lock()
	m.v[id]++
	m.mu.Unlock()
}

type memJTIs struct {
	mu   sync.Mutex
	used map[uuid.UUID]bool
}

func (m *memJTIs) ConsumeSingleUse(_ context.Context, jti uuid.UUID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used[jti] {
		return repository.ErrAlreadyUsed
	}
	m.used[jti] = true
	return nil
}

type sessionFixture struct {
	clock    *fakeClock
	issuer   *SessionIssuer
	verifier *SessionVerifier
	versions *memVersions
	user     uuid.UUID
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	keys, err := DeriveSessionKeys([]byte(strings.Repeat("s", 32)))
	require.NoError(t, err)
	clock := newFakeClock()
	user := uuid.New()
	versions := &memVersions{v: map[uuid.UUID]uint32{user: 1}}
	jtis := &memJTIs{used: map[uuid.UUID]bool{}}
	return &sessionFixture{
		clock:    clock,
		issuer:   NewSessionIssuer(keys).WithClock(clock.Now),
		verifier: NewSessionVerifier(keys, versions, jtis).WithClock(clock.Now),
		versions: versions,
		user:     user,
	}
}

func (f *sessionFixture) mint(t *testing.T, kind Kind) Minted {
	t.Helper()
	m, err := f.issuer.Mint(MintRequest{UserID: f.user, Version: 1, Kind: kind, Scopes: []string{"basic"}})
	require.NoError(t, err)
	return m
}

func TestSession_ExpiryBoundaryPerKind(t *testing.T) {
	for _, kind := range []Kind{KindShort, KindRefresh, KindPasswordReset, KindEmailVerify} {
		t.Run(string(kind), func(t *testing.T) {
			f := newSessionFixture(t)
			m := f.mint(t, kind)
			assert.Equal(t, kind.TTL(), m.ExpiresAt.Sub(m.IssuedAt))

			f.clock.Advance(kind.TTL() - time.Second)
			claims, err := f.verifier.Verify(context.Background(), m.Token, kind)
			require.NoError(t, err)
			assert.Equal(t, f.user.String(), claims.Subject)
			assert.Equal(t, []string{"basic"}, claims.Scopes)

			f.clock.Advance(time.Second + SessionSkew + time.Second)
			_, err = f.verifier.Verify(context.Background(), m.Token, kind)
			require.ErrorIs(t, err, ErrExpired)
		})
	}
}

func TestSession_VersionBumpInvalidates(t *testing.T) {
	f := newSessionFixture(t)
	m := f.mint(t, KindShort)

	_, err := f.verifier.Verify(context.Background(), m.Token, KindShort)
	require.NoError(t, err)

	f.versions.bump(f.user)
	_, err = f.verifier.Verify(context.Background(), m.Token, KindShort)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestSession_UnknownUserIsRevoked(t *testing.T) {
	f := newSessionFixture(t)
	m, err := f.issuer.Mint(MintRequest{UserID: uuid.New(), Version: 1, Kind: KindShort})
	require.NoError(t, err)
	_, err = f.verifier.Verify(context.Background(), m.Token, KindShort)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestSession_WrongKind(t *testing.T) {
	f := newSessionFixture(t)
	refresh := f.mint(t, KindRefresh)
	_, err := f.verifier.Verify(context.Background(), refresh.Token, KindShort)
	require.ErrorIs(t, err, ErrWrongKind)
}

func TestSession_TamperedSignature(t *testing.T) {
	f := newSessionFixture(t)
	m := f.mint(t, KindShort)
	parts := strings.Split(m.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	_, err := f.verifier.Verify(context.Background(), tampered, KindShort)
	require.ErrorIs(t, err, ErrBadSignature)

	_, err = f.verifier.Verify(context.Background(), "abc", KindShort)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestSession_KeysDifferPerSecret(t *testing.T) {
	f := newSessionFixture(t)
	m := f.mint(t, KindShort)

	otherKeys, err := DeriveSessionKeys([]byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	other := NewSessionVerifier(otherKeys, f.versions, &memJTIs{used: map[uuid.UUID]bool{}}).WithClock(f.clock.Now)
	_, err = other.Verify(context.Background(), m.Token, KindShort)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSession_CSRFOnlyOnSessionKinds(t *testing.T) {
	f := newSessionFixture(t)
	short := f.mint(t, KindShort)
	assert.NotEmpty(t, short.CSRF)
	claims, err := f.verifier.Verify(context.Background(), short.Token, KindShort)
	require.NoError(t, err)
	assert.Equal(t, short.CSRF, claims.CSRF)

	pinned, err := f.issuer.Mint(MintRequest{UserID: f.user, Version: 1, Kind: KindRefresh, CSRF: short.CSRF})
	require.NoError(t, err)
	assert.Equal(t, short.CSRF, pinned.CSRF)

	reset := f.mint(t, KindPasswordReset)
	assert.Empty(t, reset.CSRF)
}

func TestSession_RedeemSingleUse(t *testing.T) {
	f := newSessionFixture(t)
	m := f.mint(t, KindEmailVerify)

	_, err := f.verifier.Redeem(context.Background(), m.Token, KindEmailVerify)
	require.NoError(t, err)
	_, err = f.verifier.Redeem(context.Background(), m.Token, KindEmailVerify)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestDeriveSessionKeys_ShortSecret(t *testing.T) {
	_, err := DeriveSessionKeys([]byte("short"))
	require.Error(t, err)
}
