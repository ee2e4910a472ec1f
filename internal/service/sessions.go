package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hashhost/internal/auth"
	"hashhost/internal/models"
	"hashhost/internal/store"
)

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Admin     models.AdminUser `json:"admin"`
}

// Login checks the credentials and opens a new session. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (LoginResult, error) {
	username = normalizeUsername(username)
	a, err := s.st.GetAdminByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, err
		}
		auth.BurnVerification(password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !auth.VerifyPassword(a.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	raw, tokenHash, err := auth.NewOpaqueToken(s.secret)
	if err != nil {
		return LoginResult{}, err
	}
	now := s.clock()
	sess := models.AdminSession{
		ID:            uuid.NewString(),
		AdminID:       a.ID,
		TokenHash:     tokenHash,
		IPHint:        ip,
		UserAgentHash: hashUA(userAgent),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.SessionTTL()),
		LastSeenAt:    now,
	}
	if err := s.st.CreateSession(ctx, sess); err != nil {
		return LoginResult{}, err
	}
	if err := s.st.TouchAdminLastLogin(ctx, a.ID, now); err != nil {
		slog.WarnContext(ctx, "touch last login failed", "admin_id", a.ID, "err", err)
	} else {
		a.LastLoginAt = &now
	}
	if n, err := s.st.DeleteDeadSessions(ctx, now); err != nil {
		slog.WarnContext(ctx, "session sweep failed", "err", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "session sweep", "deleted", n)
	}
	return LoginResult{Token: raw, ExpiresAt: sess.ExpiresAt, Admin: a}, nil
}

// ValidateSession resolves a bearer token to its admin. Only active sessions
// pass; expired rows that were not swept yet still fail.
func (s *Service) ValidateSession(ctx context.Context, rawToken string) (models.AdminUser, models.AdminSession, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return models.AdminUser{}, models.AdminSession{}, ErrInvalidSession
	}
	sess, err := s.st.GetSessionByTokenHash(ctx, auth.TokenDigest(s.secret, rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return models.AdminUser{}, models.AdminSession{}, ErrInvalidSession
	}
	if err != nil {
		return models.AdminUser{}, models.AdminSession{}, err
	}
	now := s.clock()
	if sess.StateAt(now) != models.SessionActive {
		return models.AdminUser{}, models.AdminSession{}, ErrInvalidSession
	}
	a, err := s.st.GetAdminByID(ctx, sess.AdminID)
	if errors.Is(err, store.ErrNotFound) {
		return models.AdminUser{}, models.AdminSession{}, ErrInvalidSession
	}
	if err != nil {
		return models.AdminUser{}, models.AdminSession{}, err
	}
	if err := s.st.TouchSession(ctx, sess.ID, now); err != nil {
		slog.WarnContext(ctx, "touch session failed", "session_id", sess.ID, "err", err)
	} else {
		sess.LastSeenAt = now
	}
	return a, sess, nil
}

// Logout removes the session behind rawToken. Unknown or already removed
// tokens succeed.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil
	}
	return s.st.DeleteSessionByTokenHash(ctx, auth.TokenDigest(s.secret, rawToken))
}

func (s *Service) CleanupSessions(ctx context.Context, now time.Time) (int64, error) {
	return s.st.DeleteDeadSessions(ctx, now)
}

func (s *Service) RevokeAdminSessions(ctx context.Context, adminID, exceptSessionID string) (int64, error) {
	return s.st.RevokeAdminSessions(ctx, adminID, exceptSessionID)
}
