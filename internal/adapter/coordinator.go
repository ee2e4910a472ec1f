package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultInitTimeout bounds a cold start's initialization.
const DefaultInitTimeout = 30 * time.Second

var ErrNotConfigured = errors.New("required configuration is missing")

// ConfigError names the environment variables whose absence keeps the API
// from starting.
type ConfigError struct {
	Vars []string
}

func (e *ConfigError) Error() string {
	return ErrNotConfigured.Error() + ": " + strings.Join(e.Vars, ", ")
}

func (e *ConfigError) Unwrap() error { return ErrNotConfigured }

func NotConfigured(vars ...string) error {
	return &ConfigError{Vars: vars}
}

type Kind int

const (
	Ready Kind = iota + 1
	Degraded
)

func (k Kind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}

type Cause int

const (
	CauseNone Cause = iota
	CauseMissingConfig
	CauseInitFailed
)

// RouteTable is the outcome of initialization. A Ready table routes to the
// real API; a Degraded one answers every API request with a configuration
// error. Reason is for operators only.
type RouteTable struct {
	Kind    Kind
	Handler http.Handler
	Cause   Cause
	Reason  string
}

type InitFunc func(ctx context.Context) (http.Handler, error)

// Coordinator runs the initializer at most once per process and hands every
// caller the same RouteTable.
type Coordinator struct {
	table func() RouteTable
}

func NewCoordinator(init InitFunc) *Coordinator {
	return newCoordinator(init, DefaultInitTimeout)
}

func newCoordinator(init InitFunc, timeout time.Duration) *Coordinator {
	return &Coordinator{table: sync.OnceValue(func() RouteTable {
		return buildTable(init, timeout)
	})}
}

// EnsureInitialized blocks until the first initialization finishes.
func (c *Coordinator) EnsureInitialized() RouteTable {
	return c.table()
}

func buildTable(init InitFunc, timeout time.Duration) (rt RouteTable) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			reason := fmt.Sprintf("panic during initialization: %v", v)
			slog.Error("api initialization panicked", "panic", fmt.Sprint(v))
			rt = degradedTable(CauseInitFailed, reason, nil)
		}
	}()

	// Detached from any request so one caller's cancellation cannot decide
	// the outcome for everyone.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	h, err := init(ctx)
	switch {
	case errors.Is(err, ErrNotConfigured):
		slog.Error("api running in degraded mode", "table", Degraded.String(), "cause", "missing_config", "err", err)
		var ce *ConfigError
		errors.As(err, &ce)
		return degradedTable(CauseMissingConfig, err.Error(), ce)
	case err != nil:
		slog.Error("api running in degraded mode", "table", Degraded.String(), "cause", "init_failed", "err", err)
		return degradedTable(CauseInitFailed, err.Error(), nil)
	case h == nil:
		slog.Error("api running in degraded mode", "table", Degraded.String(), "cause", "init_failed", "err", "initializer returned no handler")
		return degradedTable(CauseInitFailed, "initializer returned no handler", nil)
	}
	slog.Info("api initialized", "table", Ready.String(), "duration_ms", time.Since(start).Milliseconds())
	return RouteTable{Kind: Ready, Handler: h}
}

func degradedTable(cause Cause, reason string, ce *ConfigError) RouteTable {
	return RouteTable{Kind: Degraded, Handler: DegradedHandler(cause, ce), Cause: cause, Reason: reason}
}
