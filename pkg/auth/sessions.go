package auth

import (
	"context"
	"sync"
	"time"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
	"github.com/google/uuid"
)

// SessionStore keeps session payloads by token. Load returns an apperr
// NotFound error for unknown or expired tokens.
type SessionStore interface {
	Save(ctx context.Context, token string, s *models.Session) error
	Load(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

func NewToken() string {
	return uuid.NewString()
}

type RedisSessions struct {
	repo *repository.RedisRepository
	ttl  time.Duration
}

func NewRedisSessions(repo *repository.RedisRepository, ttl time.Duration) *RedisSessions {
	return &RedisSessions{repo: repo, ttl: ttl}
}

func (r *RedisSessions) Save(ctx context.Context, token string, s *models.Session) error {
	return r.repo.SaveSession(ctx, token, s, r.ttl)
}

func (r *RedisSessions) Load(ctx context.Context, token string) (*models.Session, error) {
	return r.repo.LoadSession(ctx, token)
}

func (r *RedisSessions) Delete(ctx context.Context, token string) error {
	return r.repo.DeleteSession(ctx, token)
}

type memorySession struct {
	session models.Session
	expires time.Time
}

// MemorySessions is a SessionStore for single-process deployments and tests.
type MemorySessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{ttl: ttl, sessions: make(map[string]memorySession), now: time.Now}
}

func (m *MemorySessions) Save(_ context.Context, token string, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memorySession{session: *s, expires: m.now().Add(m.ttl)}
	entry.session.Flashes = append([]models.Flash(nil), s.Flashes...)
	m.sessions[token] = entry
	return nil
}

func (m *MemorySessions) Load(_ context.Context, token string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[token]
	if !ok {
		return nil, apperr.NotFound("session")
	}
	if m.now().After(entry.expires) {
		delete(m.sessions, token)
		return nil, apperr.NotFound("session")
	}
	s := entry.session
	s.Flashes = append([]models.Flash(nil), entry.session.Flashes...)
	return &s, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
