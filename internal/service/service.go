package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hashhost/internal/config"
	"hashhost/internal/notify"
	"hashhost/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
	ErrValidation         = errors.New("validation failed")
)

// notifyTimeout bounds the synchronous owner notification after a submission.
const notifyTimeout = 5 * time.Second

type Service struct {
	cfg    config.Config
	st     *store.Store
	sender notify.Sender
	secret []byte
	now    func() time.Time
}

func New(cfg config.Config, st *store.Store, sender notify.Sender) *Service {
	if sender == nil {
		sender = notify.LogSender{}
	}
	return &Service{
		cfg:    cfg,
		st:     st,
		sender: sender,
		secret: []byte(cfg.SessionSecret),
		now:    time.Now,
	}
}

func (s *Service) Store() *store.Store { return s.st }

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func hashUA(ua string) string {
	s := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(s[:])
}

func (s *Service) ValidatePassword(pw string) error {
	if strings.TrimSpace(pw) == "" {
		return invalid("password is required")
	}
	n := len([]rune(pw))
	if n < s.cfg.PasswordMinLength {
		return invalid("password must be at least %d characters", s.cfg.PasswordMinLength)
	}
	if n > s.cfg.PasswordMaxLength {
		return invalid("password must be at most %d characters", s.cfg.PasswordMaxLength)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, n notify.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.sender.Send(ctx, n); err != nil {
		slog.WarnContext(ctx, "notification failed", "subject", n.Subject, "err", err)
	}
}
