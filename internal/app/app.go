package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"hashhost/internal/adapter"
	"hashhost/internal/api"
	"hashhost/internal/captcha"
	"hashhost/internal/config"
	"hashhost/internal/db"
	"hashhost/internal/notify"
	"hashhost/internal/rate"
	"hashhost/internal/service"
	"hashhost/internal/store"
)

// Initializer returns the cold-start routine for the API: connect, migrate,
// bootstrap the first admin and register routes. cfgErr is the validation
// result from config.Load; a missing DATABASE_URL takes precedence over it.
func Initializer(cfg config.Config, cfgErr error) adapter.InitFunc {
	return func(ctx context.Context) (http.Handler, error) {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, adapter.NotConfigured("DATABASE_URL")
		}
		if cfgErr != nil {
			return nil, fmt.Errorf("invalid configuration: %w", cfgErr)
		}

		conn, dialect, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.ApplyMigrations(ctx, conn, dialect); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		svc := service.New(cfg, store.New(conn, dialect), notify.NewSender(cfg))
		created, err := svc.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			slog.Info("bootstrap admin created", "username", strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminUsername)))
		}

		slog.Info("database ready", "dialect", string(dialect))
		return api.NewRouter(cfg, svc, captcha.NewVerifier(cfg), rate.NewLimiter()), nil
	}
}

// NewHandler builds the full request handler for one process.
func NewHandler(cfg config.Config, cfgErr error) http.Handler {
	coord := adapter.NewCoordinator(Initializer(cfg, cfgErr))
	return adapter.New(coord, adapter.NewStatic(cfg.StaticDir)).Handler(cfg.TrustProxy)
}
