package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"hashhost/internal/auth"
	"hashhost/internal/models"
	"hashhost/internal/store"
)

var usernameRx = regexp.MustCompile(`^[a-z0-9._-]{3,64}$`)

func normalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// EnsureAdmin provisions the bootstrap account on a fresh database.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return false, nil
	}
	if !usernameRx.MatchString(username) {
		return false, invalid("bootstrap username %q is not valid", username)
	}
	if err := s.ValidatePassword(password); err != nil {
		return false, err
	}
	if _, err := s.st.GetAdminByUsername(ctx, username); err == nil {
		return false, nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	return s.st.EnsureAdmin(ctx, username, hash)
}

// CreateAdmin adds an account on behalf of actorID, which must be an existing
// admin. The new account records who created it.
func (s *Service) CreateAdmin(ctx context.Context, actorID, username, password string) (models.AdminUser, error) {
	actor, err := s.st.GetAdminByID(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return models.AdminUser{}, ErrInvalidSession
	}
	if err != nil {
		return models.AdminUser{}, err
	}
	username = normalizeUsername(username)
	if !usernameRx.MatchString(username) {
		return models.AdminUser{}, invalid("username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if err := s.ValidatePassword(password); err != nil {
		return models.AdminUser{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.AdminUser{}, err
	}
	a, err := s.st.CreateAdmin(ctx, username, hash, actor.ID)
	if err != nil {
		return models.AdminUser{}, err
	}
	slog.InfoContext(ctx, "admin created", "username", a.Username, "created_by", actor.Username)
	return a, nil
}

func (s *Service) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	return s.st.ListAdmins(ctx)
}

// ChangePassword replaces the admin's password and revokes every other
// session of that admin. The calling session stays valid.
func (s *Service) ChangePassword(ctx context.Context, adminID, sessionID, current, next string) error {
	a, err := s.st.GetAdminByID(ctx, adminID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(a.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := s.ValidatePassword(next); err != nil {
		return err
	}
	if current == next {
		return invalid("new password must differ from the current one")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.st.UpdateAdminPassword(ctx, adminID, hash); err != nil {
		return err
	}
	_, err = s.st.RevokeAdminSessions(ctx, adminID, sessionID)
	return err
}
