package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicdesk/internal/auth"
	"clinicdesk/internal/domain"

	"go.uber.org/zap"
)

const RoleAdmin = "admin"

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Admin     domain.Admin `json:"admin"`
}

func (s *Service) CreateAdmin(ctx context.Context, username, password string) (domain.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Admin{}, domain.Invalid("username", "is required")
	}
	if len(password) < 8 {
		return domain.Admin{}, domain.Invalid("password", "must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Admin{}, err
	}
	created, err := s.store.CreateAdmin(ctx, domain.Admin{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		Role:         RoleAdmin,
		CreatedAt:    s.clock(),
	})
	if err != nil {
		return domain.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	s.audit(ctx, "admin", "Created admin", created.Username)
	return created, nil
}

// EnsureAdmin creates the bootstrap admin unless that username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil
	}
	_, err := s.store.GetAdminByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.CreateAdmin(ctx, username, password); err != nil && !errors.Is(err, domain.ErrConflict) {
		return err
	}
	s.logger.Info("bootstrap admin ready", zap.String("username", username))
	return nil
}

func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	admin, err := s.store.GetAdminByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, domain.ErrUnauthorized
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return LoginResult{}, domain.ErrUnauthorized
	}
	token, expires, err := s.tokens.Issue(admin.ID, admin.Username, admin.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expires, Admin: admin}, nil
}

func (s *Service) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	return s.store.ListAdmins(ctx)
}
