package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
)

// Repositorios en memoria para los tests de punta a punta del router.

type memUsers struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*repository.User
	bySub map[string]uuid.UUID
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*repository.User{}, bySub: map[string]uuid.UUID{}}
}

func (m *memUsers) copyOf(u *repository.User) *repository.User {
	c := *u
	c.Scopes = append([]string(nil), u.Scopes...)
	return &c
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(u), nil
}

func (m *memUsers) GetByIssuerSub(ctx context.Context, sub string) (*repository.User, error) {
	m.mu.Lock()
	id, ok := m.bySub[sub]
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *memUsers) Ensure(_ context.Context, in repository.EnsureUserInput) (*repository.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.bySub[in.IssuerSub]; ok {
		return m.copyOf(m.byID[id]), false, nil
	}
	now := time.Now().UTC()
	u := &repository.User{
		ID:            uuid.New(),
		IssuerSub:     in.IssuerSub,
		Email:         in.Email,
		EmailVerified: in.EmailVerified,
		DisplayName:   in.DisplayName,
		Scopes:        in.Scopes,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.byID[u.ID] = u
	m.bySub[in.IssuerSub] = u.ID
	return m.copyOf(u), true, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, p repository.ProfilePatch) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.GivenName != nil {
		u.GivenName = *p.GivenName
	}
	if p.FamilyName != nil {
		u.FamilyName = *p.FamilyName
	}
	if p.Language != nil {
		u.Language = *p.Language
	}
	if p.ProfileImageKey != nil {
		u.ProfileImageKey = p.ProfileImageKey
	}
	return m.copyOf(u), nil
}

func (m *memUsers) Version(_ context.Context, id uuid.UUID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return u.Version, nil
}

func (m *memUsers) BumpVersion(_ context.Context, id uuid.UUID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Version++
	return u.Version, nil
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	refresh map[uuid.UUID]*repository.RefreshToken
	single  map[uuid.UUID]string
}

func newMemTokens() *memTokens {
	return &memTokens{refresh: map[uuid.UUID]*repository.RefreshToken{}, single: map[uuid.UUID]string{}}
}

func (m *memTokens) CreateRefresh(_ context.Context, in repository.CreateRefreshInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[in.JTI] = &repository.RefreshToken{
		JTI: in.JTI, UserID: in.UserID, FamilyID: in.FamilyID, RotatedFrom: in.RotatedFrom,
		IssuedAt: time.Now(), ExpiresAt: in.ExpiresAt,
	}
	return nil
}

func (m *memTokens) ConsumeRefresh(_ context.Context, jti uuid.UUID) (*repository.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[jti]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	now := time.Now()
	switch {
	case t.UsedAt != nil:
		return &c, repository.ErrAlreadyUsed
	case t.RevokedAt != nil, !t.ExpiresAt.After(now):
		return &c, repository.ErrRevoked
	}
	t.UsedAt = &now
	return &c, nil
}

func (m *memTokens) IsRefreshActive(_ context.Context, jti uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[jti]
	return ok && t.UsedAt == nil && t.RevokedAt == nil, nil
}

func (m *memTokens) revokeWhere(match func(*repository.RefreshToken) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, t := range m.refresh {
		if match(t) && t.RevokedAt == nil {
			t.RevokedAt = &now
			n++
		}
	}
	return n
}

func (m *memTokens) RevokeFamily(_ context.Context, family uuid.UUID) (int, error) {
	return m.revokeWhere(func(t *repository.RefreshToken) bool { return t.FamilyID == family }), nil
}

func (m *memTokens) RevokeAllByUser(_ context.Context, user uuid.UUID) (int, error) {
	return m.revokeWhere(func(t *repository.RefreshToken) bool { return t.UserID == user }), nil
}

func (m *memTokens) CreateSingleUse(_ context.Context, jti, _ uuid.UUID, kind string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.single[jti] = kind
	return nil
}

func (m *memTokens) ConsumeSingleUse(_ context.Context, jti uuid.UUID, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.single[jti]
	if !ok || k != kind {
		return repository.ErrNotFound
	}
	delete(m.single, jti)
	return nil
}

type memMedia struct {
	mu   sync.Mutex
	objs map[string]repository.MediaObject
}

func newMemMedia() *memMedia { return &memMedia{objs: map[string]repository.MediaObject{}} }

func (m *memMedia) Create(_ context.Context, obj repository.MediaObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[obj.Key]; ok {
		return repository.ErrConflict
	}
	m.objs[obj.Key] = obj
	return nil
}

func (m *memMedia) Get(_ context.Context, key string) (*repository.MediaObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &obj, nil
}

func (m *memMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *memMedia) CanRead(_ context.Context, key string, user uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[key]
	return ok && obj.OwnerID != nil && *obj.OwnerID == user, nil
}

type memContent struct {
	mu    sync.Mutex
	items map[uuid.UUID]*repository.ContentItem
}

func newMemContent() *memContent {
	return &memContent{items: map[uuid.UUID]*repository.ContentItem{}}
}

func (m *memContent) Create(_ context.Context, item *repository.ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	c := *item
	m.items[item.ID] = &c
	return nil
}

func (m *memContent) Get(_ context.Context, kind types.EntityKind, id uuid.UUID) (*repository.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Kind != kind {
		return nil, repository.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (m *memContent) Update(_ context.Context, kind types.EntityKind, id, owner uuid.UUID, p repository.ContentPatch) (*repository.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Kind != kind || it.OwnerID != owner {
		return nil, repository.ErrNotFound
	}
	if p.DisplayName != nil {
		it.DisplayName = *p.DisplayName
	}
	if p.Privacy != nil {
		it.Privacy = *p.Privacy
	}
	c := *it
	return &c, nil
}

func (m *memContent) Delete(_ context.Context, kind types.EntityKind, id, owner uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok || it.Kind != kind || it.OwnerID != owner {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// fakeStore firma URLs falsas y cuenta los deletes.
type fakeStore struct {
	mu      sync.Mutex
	deletes int
}

func (s *fakeStore) PresignPut(_ context.Context, key, contentType string, size int64, ttl time.Duration) (media.SignedRequest, error) {
	return media.SignedRequest{
		URL:     "https://bucket.example/" + key + "?X-Amz-Expires=300",
		Headers: map[string]string{"Content-Type": contentType},
	}, nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.example/" + key + "?X-Amz-Expires=900", nil
}

func (s *fakeStore) Delete(context.Context, string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) PutIfAbsent(context.Context, string, []byte, string) error { return nil }

type nopMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *nopMailer) SendVerification(_ context.Context, to, _, token, _ string) error {
	m.mu.Lock()
	m.sent = append(m.sent, token)
	m.mu.Unlock()
	return nil
}

func mediaObject(key string, owner uuid.UUID) repository.MediaObject {
	kind, _ := media.ParseKey(key)
	return repository.MediaObject{Key: key, Kind: string(kind), OwnerID: &owner, ContentType: "image/png", DeclaredSize: 10}
}
