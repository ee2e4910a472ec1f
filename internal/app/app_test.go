package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashhost/internal/adapter"
	"hashhost/internal/config"
	"hashhost/internal/util"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>site</html>"), 0o644))
	return config.Config{
		DatabaseURL:            "sqlite:" + filepath.Join(t.TempDir(), "data", "site.db"),
		DBMaxOpenConns:         1,
		DBMaxIdleConns:         1,
		SessionSecret:          "0123456789abcdef0123456789abcdef-app",
		SessionTTLHours:        24,
		StaticDir:              static,
		PasswordMinLength:      12,
		PasswordMaxLength:      128,
		BootstrapAdminUsername: "Owner",
		BootstrapAdminPassword: "bootstrap password 123",
		NotifySender:           "log",
	}
}

func TestInitializerMissingDatabaseURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = ""
	_, err := Initializer(cfg, errors.New("SESSION_SECRET must be set"))(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrNotConfigured)
}

func TestInitializerInvalidConfig(t *testing.T) {
	_, err := Initializer(testConfig(t), errors.New("SESSION_SECRET must be set"))(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, adapter.ErrNotConfigured)
}

func TestInitializerUnsupportedScheme(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = "redis://localhost"
	_, err := Initializer(cfg, nil)(context.Background())
	assert.Error(t, err)
}

func TestEndToEndWithBootstrapAdmin(t *testing.T) {
	h := NewHandler(testConfig(t), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/admin", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<html>site</html>", rr.Body.String())

	body, _ := json.Marshal(map[string]string{"username": "owner", "password": "bootstrap password 123"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/admin/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))

	req := httptest.NewRequest("GET", "/api/admin/me", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestEndToEndDegradedWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = ""
	h := NewHandler(cfg, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var e util.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	assert.Equal(t, "configuration_error", e.Code)
	assert.Contains(t, e.Message, "DATABASE_URL")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
