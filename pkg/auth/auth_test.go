package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := NewService(repository.NewMemoryStore(), zap.NewNop())

	u, err := s.Register(ctx, " bob ", "bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.False(t, u.IsAdmin)

	got, err := s.Login(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Login(ctx, "bob", "wrong")
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	assert.True(t, IsBadCredentials(err))

	_, err = s.Login(ctx, "nobody", "secret1")
	assert.True(t, IsBadCredentials(err))
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	s := NewService(repository.NewMemoryStore(), zap.NewNop())
	_, err := s.Register(ctx, "bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name                      string
		username, email, password string
		kind                      apperr.Kind
	}{
		{"missing username", "", "x@example.com", "secret1", apperr.KindValidation},
		{"bad email", "x", "example.com", "secret1", apperr.KindValidation},
		{"short password", "x", "x@example.com", "12345", apperr.KindValidation},
		{"long password", "x", "x@example.com", strings.Repeat("p", 80), apperr.KindValidation},
		{"duplicate username", "bob", "other@example.com", "secret1", apperr.KindConflict},
		{"duplicate email", "other", "bob@example.com", "secret1", apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.username, tt.email, tt.password)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessions(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	token := NewToken()
	sess := NewSession(&models.User{ID: 3, Username: "cat", Email: "cat@example.com", IsAdmin: true})
	sess.AddFlash("info", "hi")
	require.NoError(t, m.Save(ctx, token, sess))

	sess.Flashes[0].Message = "mutated"
	got, err := m.Load(ctx, token)
	require.NoError(t, err)
	assert.True(t, got.LoggedIn())
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "hi", got.Flashes[0].Message)

	now = now.Add(2 * time.Hour)
	_, err = m.Load(ctx, token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, m.Save(ctx, token, sess))
	require.NoError(t, m.Delete(ctx, token))
	_, err = m.Load(ctx, token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRedisSessions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	repo := repository.NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	r := NewRedisSessions(repo, time.Minute)

	token := NewToken()
	require.NoError(t, r.Save(ctx, token, &models.Session{UserID: 1, Username: "dan"}))
	got, err := r.Load(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "dan", got.Username)
	assert.Equal(t, time.Minute, mr.TTL("session:"+token))

	require.NoError(t, r.Delete(ctx, token))
	_, err = r.Load(ctx, token)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
