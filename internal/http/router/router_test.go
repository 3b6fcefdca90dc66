package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ji-devs/ji-cloud-sub012/internal/cache"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	contentctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/content"
	healthctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/health"
	mediactrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/media"
	sessionctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/session"
	usersctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/users"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	contentsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/content"
	healthsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/health"
	sessionsvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/session"
	userssvc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/users"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
	"github.com/ji-devs/ji-cloud-sub012/internal/rate"
	tokens "github.com/ji-devs/ji-cloud-sub012/internal/security/token"
)

const (
	testIssuer = "https://securetoken.google.com/ji-cloud"
	testEpoch  = int64(1700000000000)
)

// stubIdentity acepta tokens "good:<sub>".
type stubIdentity struct{}

func (stubIdentity) Trusts(iss string) bool { return iss == testIssuer }

func (stubIdentity) Verify(_ context.Context, raw string) (*jwtx.IdentityAssertion, error) {
	sub, ok := strings.CutPrefix(raw, "good:")
	if !ok {
		return nil, jwtx.ErrBadSignature
	}
	return &jwtx.IdentityAssertion{
		Issuer: testIssuer, Subject: sub, Email: sub + "@example.com", Name: "User " + sub,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

type pingOK struct{}

func (pingOK) Ping(context.Context) error { return nil }

type env struct {
	handler http.Handler
	users   *memUsers
	tokens  *memTokens
	media   *memMedia
	store   *fakeStore
	mailer  *nopMailer
}

func newEnv(t *testing.T, limiter rate.Limiter) *env {
	t.Helper()
	keys, err := jwtx.DeriveSessionKeys([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	e := &env{users: newMemUsers(), tokens: newMemTokens(), media: newMemMedia(), store: &fakeStore{}, mailer: &nopMailer{}}
	versions := sessionsvc.NewVersionCache(cache.NewMemory("test:"), e.users, time.Minute)
	issuer := jwtx.NewSessionIssuer(keys)
	verifier := jwtx.NewSessionVerifier(keys, versions, e.tokens)

	sessions := sessionsvc.NewService(sessionsvc.Deps{
		Identity: stubIdentity{},
		Users:    e.users,
		Tokens:   e.tokens,
		Issuer:   issuer,
		Verifier: verifier,
		Versions: versions,
	})
	gateway := media.NewGateway(e.store, e.media, media.Options{})
	auth := mw.NewAuthenticator(mw.AuthConfig{
		Identity:        stubIdentity{},
		Sessions:        verifier,
		Users:           sessions,
		ServiceAccounts: map[string]string{"image-worker": tokens.SHA256Base64URL("svc.worker-secret")},
	})

	e.handler = New(Deps{
		Controllers: Controllers{
			Session: sessionctrl.NewController(sessions, helpers.CookieConfig{}),
			Users: usersctrl.NewController(userssvc.NewService(userssvc.Deps{
				Users: e.users, Tokens: e.tokens, Media: e.media, Issuer: issuer, Mailer: e.mailer,
			})),
			Media:   mediactrl.NewController(gateway),
			Content: contentctrl.NewController(contentsvc.NewService(contentsvc.Deps{Content: newMemContent(), Media: e.media})),
			Health:  healthctrl.NewController(healthsvc.NewService(healthsvc.Deps{DB: pingOK{}, Cache: pingOK{}, Epoch: testEpoch})),
		},
		Auth:        auth,
		Epoch:       testEpoch,
		RateLimiter: limiter,
	})
	return e
}

// client guarda las cookies de sesión como lo haría el navegador.
type client struct {
	e       *env
	cookies map[string]string
}

func (e *env) client() *client { return &client{e: e, cookies: map[string]string{}} }

func (c *client) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, v := range c.cookies {
		if name == helpers.RefreshCookie && !strings.HasPrefix(path, helpers.RefreshPath) {
			continue
		}
		req.AddCookie(&http.Cookie{Name: name, Value: v})
	}
	if csrf := c.cookies[helpers.CSRFCookie]; csrf != "" && !helpers.IsSafeMethod(method) {
		req.Header.Set(helpers.CSRFHeader, csrf)
	}
	rec := httptest.NewRecorder()
	c.e.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
	return rec
}

func (c *client) login(t *testing.T, sub string) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/v1/session", map[string]string{"idToken": "good:" + sub})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestLogin_CreatesUserAndSession(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()

	rec := c.do(t, http.MethodPost, "/v1/session", map[string]string{"idToken": "good:subject-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, c.cookies[helpers.SessionCookie])
	assert.NotEmpty(t, c.cookies[helpers.RefreshCookie])
	assert.NotEmpty(t, c.cookies[helpers.CSRFCookie])

	u, err := e.users.GetByIssuerSub(context.Background(), "subject-1")
	require.NoError(t, err)
	assert.Equal(t, []string{types.ScopeBasic}, u.Scopes)

	me := c.do(t, http.MethodGet, "/v1/users/me", nil)
	require.Equal(t, http.StatusOK, me.Code)
	var profile struct {
		ID     string   `json:"id"`
		Scopes []string `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &profile))
	assert.Equal(t, u.ID.String(), profile.ID)
	assert.Equal(t, []string{"basic"}, profile.Scopes)

	// segundo login del mismo sujeto no crea otro usuario
	c.login(t, "subject-1")
	assert.Len(t, e.users.byID, 1)
}

func TestLogin_RejectsBadAssertion(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.client().do(t, http.MethodPost, "/v1/session", map[string]string{"idToken": "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.invalid", errorCode(t, rec))
	assert.Empty(t, e.users.byID)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-2")
	r1 := c.cookies[helpers.RefreshCookie]
	csrf1 := c.cookies[helpers.CSRFCookie]

	rec := c.do(t, http.MethodPost, "/v1/session/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r2 := c.cookies[helpers.RefreshCookie]
	assert.NotEqual(t, r1, r2)

	// reusar R1 es 401 y revoca la familia entera, R2 incluido
	stale := e.client()
	stale.cookies[helpers.RefreshCookie] = r1
	stale.cookies[helpers.CSRFCookie] = csrf1
	rec = stale.do(t, http.MethodPost, "/v1/session/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth.invalid", errorCode(t, rec))

	rec = c.do(t, http.MethodPost, "/v1/session/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCSRF_MutationWithoutHeaderIsRejected(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-3")

	csrf := c.cookies[helpers.CSRFCookie]
	delete(c.cookies, helpers.CSRFCookie)
	rec := c.do(t, http.MethodPatch, "/v1/users/me", map[string]string{"displayName": "Hacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "auth.csrf_mismatch", errorCode(t, rec))

	u, err := e.users.GetByIssuerSub(context.Background(), "subject-3")
	require.NoError(t, err)
	assert.Equal(t, "User subject-3", u.DisplayName)

	c.cookies[helpers.CSRFCookie] = csrf
	rec = c.do(t, http.MethodPatch, "/v1/users/me", map[string]string{"displayName": "Renamed"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogout_InvalidatesSession(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-4")
	session := c.cookies[helpers.SessionCookie]
	refresh := c.cookies[helpers.RefreshCookie]
	csrf := c.cookies[helpers.CSRFCookie]

	rec := c.do(t, http.MethodDelete, "/v1/session", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, c.cookies[helpers.SessionCookie])

	old := e.client()
	old.cookies[helpers.SessionCookie] = session
	rec = old.do(t, http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	old.cookies[helpers.RefreshCookie] = refresh
	old.cookies[helpers.CSRFCookie] = csrf
	rec = old.do(t, http.MethodPost, "/v1/session/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMediaUpload(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-5")

	rec := c.do(t, http.MethodPost, "/v1/media/upload", map[string]any{
		"kind": "image_library", "contentType": "image/png", "size": 123456,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grant media.UploadGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	assert.True(t, strings.HasPrefix(grant.Key, "image_library/"))
	assert.Contains(t, grant.UploadURL, "X-Amz-Expires=300")
	assert.Equal(t, "image/png", grant.Headers["Content-Type"])

	rec = c.do(t, http.MethodPost, "/v1/media/upload", map[string]any{
		"kind": "image_library", "contentType": "image/png", "size": int64(200) << 20,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "media.size_exceeded", errorCode(t, rec))

	rec = c.do(t, http.MethodGet, "/v1/media/download?key="+grant.Key, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// otro usuario no ve la key
	other := e.client()
	other.login(t, "subject-6")
	rec = other.do(t, http.MethodGet, "/v1/media/download?key="+grant.Key, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaDelete_Idempotent(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-7")

	rec := c.do(t, http.MethodPost, "/v1/media/upload", map[string]any{
		"kind": "audio", "contentType": "audio/mpeg", "size": 1024,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var grant media.UploadGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))

	for i := 0; i < 2; i++ {
		rec = c.do(t, http.MethodDelete, "/v1/media/"+grant.Key, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	}
	_, err := e.media.Get(context.Background(), grant.Key)
	assert.Error(t, err)
}

func TestMediaDelete_ServiceAccount(t *testing.T) {
	e := newEnv(t, nil)
	key := media.NewKey(media.KindImageLibrary, time.Now())
	owner := uuid.New()
	require.NoError(t, e.media.Create(context.Background(), mediaObject(key, owner)))

	req := httptest.NewRequest(http.MethodDelete, "/v1/media/"+key, nil)
	req.Header.Set("Authorization", "Bearer svc.worker-secret")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, 1, e.store.deletes)

	// la cuenta de servicio no entra a rutas de usuario
	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer svc.worker-secret")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestContent_PrivateItemsAreHidden(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.client()
	owner.login(t, "subject-8")

	rec := owner.do(t, http.MethodPost, "/v1/jigs", map[string]any{"displayName": "Aleph Bet"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item struct {
		ID      string `json:"id"`
		Privacy string `json:"privacy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "private", item.Privacy)

	rec = owner.do(t, http.MethodGet, "/v1/jigs/"+item.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	other := e.client()
	other.login(t, "subject-9")
	rec = other.do(t, http.MethodGet, "/v1/jigs/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = owner.do(t, http.MethodPatch, "/v1/jigs/"+item.ID, map[string]any{"privacy": "public"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = other.do(t, http.MethodGet, "/v1/jigs/"+item.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = other.do(t, http.MethodDelete, "/v1/jigs/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = owner.do(t, http.MethodDelete, "/v1/jigs/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// kind desconocido
	rec = owner.do(t, http.MethodPost, "/v1/widgets", map[string]any{"displayName": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContent_Validation(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-10")

	rec := c.do(t, http.MethodPost, "/v1/courses", map[string]any{"displayName": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/courses", map[string]any{"displayName": "ok", "privacy": "secret"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/courses", map[string]any{"displayName": "ok", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/courses", map[string]any{"displayName": "ok", "coverKey": "image_library/2025/01/" + uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_SessionRoutes(t *testing.T) {
	e := newEnv(t, rate.NewMemoryLimiter(2, time.Minute))
	c := e.client()
	for i := 0; i < 2; i++ {
		rec := c.do(t, http.MethodPost, "/v1/session", map[string]string{"idToken": "good:subject-11"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := c.do(t, http.MethodPost, "/v1/session", map[string]string{"idToken": "good:subject-11"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// otras rutas no comparten el bucket
	rec = c.do(t, http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmailVerification(t *testing.T) {
	e := newEnv(t, nil)
	c := e.client()
	c.login(t, "subject-12")

	rec := c.do(t, http.MethodPost, "/v1/users/me/email/verify", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, e.mailer.sent, 1)
	token := e.mailer.sent[0]

	// el link se abre sin sesión
	anon := e.client()
	rec = anon.do(t, http.MethodPost, "/v1/session/email/confirm", map[string]string{"token": token})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	u, err := e.users.GetByIssuerSub(context.Background(), "subject-12")
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)

	rec = anon.do(t, http.MethodPost, "/v1/session/email/confirm", map[string]string{"token": token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(t, http.MethodPost, "/v1/users/me/email/verify", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReadyz(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.client().do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1700000000000", rec.Header().Get("X-Epoch"))

	var body struct {
		Status string `json:"status"`
		Epoch  int64  `json:"epoch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, testEpoch, body.Epoch)
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.client().do(t, http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}
