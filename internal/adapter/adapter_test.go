package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"hashhost/internal/util"
)

const indexHTML = `<!doctype html><html><body><div id="root"></div></body></html>`

type apiStub struct{}

func (*apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/health":
		util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "/api/panic":
		panic("handler exploded at /var/task/internal/api")
	default:
		util.WriteError(w, http.StatusNotFound, "not_found", "no such endpoint", "")
	}
}

func writeSite(t *testing.T, withIndex bool) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("console.log('hi')"), 0o644))
	if withIndex {
		require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte(indexHTML), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "secret.txt"), []byte("top secret"), 0o644))
	return root
}

func newHandler(t *testing.T, init InitFunc, withIndex bool) http.Handler {
	t.Helper()
	return New(NewCoordinator(init), NewStatic(writeSite(t, withIndex))).Handler(false)
}

func ready(context.Context) (http.Handler, error) { return &apiStub{}, nil }

func request(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func apiError(t *testing.T, rr *httptest.ResponseRecorder) util.APIError {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var e util.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e
}

func TestConcurrentColdStartInitializesOnce(t *testing.T) {
	var calls atomic.Int32
	stub := &apiStub{}
	c := NewCoordinator(func(ctx context.Context) (http.Handler, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return stub, nil
	})

	const n = 64
	tables := make([]RouteTable, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			tables[i] = c.EnsureInitialized()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, calls.Load())
	for _, rt := range tables {
		assert.Equal(t, Ready, rt.Kind)
		assert.Same(t, stub, rt.Handler)
	}
}

func TestConcurrentRequestsShareOneInit(t *testing.T) {
	var calls atomic.Int32
	h := newHandler(t, func(ctx context.Context) (http.Handler, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &apiStub{}, nil
	}, true)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		path := "/api/health"
		if i%2 == 1 {
			path = "/"
		}
		g.Go(func() error {
			if rr := request(h, "GET", path); rr.Code != http.StatusOK {
				return errors.New(path + " returned " + rr.Result().Status)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, calls.Load())
}

func TestInitRunsOnDetachedBoundedContext(t *testing.T) {
	var sawDeadline bool
	c := NewCoordinator(func(ctx context.Context) (http.Handler, error) {
		_, sawDeadline = ctx.Deadline()
		return &apiStub{}, ctx.Err()
	})
	assert.Equal(t, Ready, c.EnsureInitialized().Kind)
	assert.True(t, sawDeadline)
}

func TestInitTimeoutDegrades(t *testing.T) {
	c := newCoordinator(func(ctx context.Context) (http.Handler, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 10*time.Millisecond)
	rt := c.EnsureInitialized()
	assert.Equal(t, Degraded, rt.Kind)
	assert.Equal(t, CauseInitFailed, rt.Cause)
}

func TestMissingConfigDegradesAPIButServesSite(t *testing.T) {
	h := newHandler(t, func(context.Context) (http.Handler, error) {
		return nil, NotConfigured("DATABASE_URL")
	}, true)

	rr := request(h, "GET", "/api/health")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := apiError(t, rr)
	assert.Equal(t, "configuration_error", e.Code)
	assert.Contains(t, e.Message, "DATABASE_URL")
	assert.NotEmpty(t, e.RequestID)

	rr = request(h, "GET", "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, indexHTML, rr.Body.String())
}

func TestWrappedNotConfiguredIsMissingConfig(t *testing.T) {
	c := NewCoordinator(func(context.Context) (http.Handler, error) {
		return nil, errors.Join(errors.New("startup"), ErrNotConfigured)
	})
	rt := c.EnsureInitialized()
	assert.Equal(t, Degraded, rt.Kind)
	assert.Equal(t, CauseMissingConfig, rt.Cause)
}

func TestInitFailureHidesCause(t *testing.T) {
	h := newHandler(t, func(context.Context) (http.Handler, error) {
		return nil, errors.New("dial tcp 10.0.0.3:5432: connection refused")
	}, true)

	rr := request(h, "POST", "/api/admin/login")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := apiError(t, rr)
	assert.Equal(t, "configuration_error", e.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.3")
	assert.Contains(t, e.Message, "logs")
}

func TestInitPanicDegradesAndIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := NewCoordinator(func(context.Context) (http.Handler, error) {
		calls.Add(1)
		panic("route registration blew up")
	})
	for i := 0; i < 3; i++ {
		rt := c.EnsureInitialized()
		assert.Equal(t, Degraded, rt.Kind)
		assert.Equal(t, CauseInitFailed, rt.Cause)
		assert.NotNil(t, rt.Handler)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestNilHandlerDegrades(t *testing.T) {
	rt := NewCoordinator(func(context.Context) (http.Handler, error) { return nil, nil }).EnsureInitialized()
	assert.Equal(t, Degraded, rt.Kind)
	assert.Equal(t, CauseInitFailed, rt.Cause)
}

func TestSPAFallbackForClientRoutes(t *testing.T) {
	h := newHandler(t, ready, true)

	for _, p := range []string{"/", "/admin/dashboard", "/services/hosting?ref=nav", "/assets", "/assets/missing.js", "/../secret.txt", "/apix"} {
		rr := request(h, "GET", p)
		assert.Equal(t, http.StatusOK, rr.Code, p)
		assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"), p)
		assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"), p)
		assert.Equal(t, indexHTML, rr.Body.String(), p)
	}
}

func TestAssetsAreServed(t *testing.T) {
	h := newHandler(t, ready, true)

	rr := request(h, "GET", "/assets/app.js")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "javascript")
	assert.Equal(t, "console.log('hi')", rr.Body.String())

	rr = request(h, "HEAD", "/assets/app.js")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, rr.Body.Len())
}

func TestMissingBuildIsReportedButAPIStillRoutes(t *testing.T) {
	h := newHandler(t, ready, false)

	rr := request(h, "GET", "/admin/dashboard")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := apiError(t, rr)
	assert.Equal(t, "not_built", e.Code)
	assert.True(t, strings.HasPrefix(e.Message, "The application was not built correctly"))

	rr = request(h, "GET", "/api/health")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNonAPIWriteMethodsAre404(t *testing.T) {
	h := newHandler(t, ready, true)
	for _, m := range []string{"POST", "PUT", "DELETE", "PATCH"} {
		rr := request(h, m, "/contact")
		assert.Equal(t, http.StatusNotFound, rr.Code, m)
		assert.Equal(t, "not_found", apiError(t, rr).Code, m)
	}
}

func TestUnmatchedAPIPathIsJSON404(t *testing.T) {
	h := newHandler(t, ready, true)
	for _, p := range []string{"/api", "/api/unknown"} {
		rr := request(h, "GET", p)
		assert.Equal(t, http.StatusNotFound, rr.Code, p)
		assert.Equal(t, "not_found", apiError(t, rr).Code, p)
	}
}

func TestHandlerPanicBecomesJSONError(t *testing.T) {
	h := newHandler(t, ready, true)

	rr := request(h, "GET", "/api/panic")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	e := apiError(t, rr)
	assert.Equal(t, "internal_error", e.Code)
	assert.Equal(t, rr.Header().Get("X-Request-ID"), e.RequestID)
	assert.NotContains(t, rr.Body.String(), "/var/task")

	assert.Equal(t, http.StatusOK, request(h, "GET", "/api/health").Code)
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	h := newHandler(t, ready, true)
	for _, p := range []string{"/", "/api/health", "/api/unknown"} {
		rr := request(h, "GET", p)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"), p)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"), p)
	}
}
