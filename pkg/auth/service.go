// Package auth registers and authenticates shoppers and keeps their sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	// bcrypt rejects longer input.
	maxPasswordBytes = 72
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return nil, apperr.Validation("password must be at most %d bytes", maxPasswordBytes)
	}

	exists, err := s.store.Users().ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Duplicate("username or email")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

var errBadCredentials = apperr.Unauthorized("invalid username or password")

func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.Users().GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, errBadCredentials
	}
	return user, nil
}

// NewSession builds the session payload for a logged-in user.
func NewSession(u *models.User) *models.Session {
	return &models.Session{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
	}
}

// IsBadCredentials reports whether err is a failed login.
func IsBadCredentials(err error) bool {
	return errors.Is(err, errBadCredentials)
}
