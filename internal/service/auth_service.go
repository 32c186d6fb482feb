package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/nixai/internal/config"
	"github.com/xxxsen/nixai/internal/model"
	appErr "github.com/xxxsen/nixai/internal/pkg/errors"
	"github.com/xxxsen/nixai/internal/pkg/jwt"
	"github.com/xxxsen/nixai/internal/pkg/password"
)

// AuthService authenticates the users listed in the config.
type AuthService struct {
	byEmail   map[string]model.User
	byID      map[string]model.User
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(users []config.UserConfig, secret []byte, ttl time.Duration) *AuthService {
	s := &AuthService{
		byEmail:   make(map[string]model.User, len(users)),
		byID:      make(map[string]model.User, len(users)),
		jwtSecret: secret,
		jwtTTL:    ttl,
	}
	for _, u := range users {
		user := model.User{ID: u.UserID, Email: u.Email, Name: u.Name, PasswordHash: u.PasswordHash}
		s.byEmail[strings.ToLower(u.Email)] = user
		s.byID[u.UserID] = user
	}
	return s
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, "", appErr.ErrUnauthorized
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func (s *AuthService) Get(ctx context.Context, userID string) (*model.User, error) {
	user, ok := s.byID[userID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &user, nil
}
