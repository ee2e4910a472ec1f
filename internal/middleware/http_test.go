package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hashhost/internal/models"
	"hashhost/internal/rate"
	"hashhost/internal/service"
	"hashhost/internal/util"
)

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.5")

	assert.Equal(t, "10.0.0.5", ClientIP(r, false))
	assert.Equal(t, "1.2.3.4", ClientIP(r, true))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(r))

	r.Header.Set("Authorization", "bearer  tok-123 ")
	assert.Equal(t, "tok-123", BearerToken(r))
}

type fakeValidator struct {
	admin models.AdminUser
	err   error
}

func (f fakeValidator) ValidateSession(_ context.Context, raw string) (models.AdminUser, models.AdminSession, error) {
	if f.err != nil {
		return models.AdminUser{}, models.AdminSession{}, f.err
	}
	return f.admin, models.AdminSession{ID: "sess-" + raw, AdminID: f.admin.ID}, nil
}

func TestAuthn(t *testing.T) {
	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := Admin(r.Context())
		require.True(t, ok)
		s, ok := Session(r.Context())
		require.True(t, ok)
		util.WriteJSON(w, http.StatusOK, map[string]string{"admin": a.Username, "session": s.ID})
	})

	cases := []struct {
		name   string
		header string
		v      fakeValidator
		status int
		code   string
	}{
		{name: "missing token", v: fakeValidator{}, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "invalid token", header: "Bearer nope", v: fakeValidator{err: service.ErrInvalidSession}, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "store failure", header: "Bearer tok", v: fakeValidator{err: errors.New("db down")}, status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/api/admin/me", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			Authn(tc.v)(protected).ServeHTTP(rr, r)
			assert.Equal(t, tc.status, rr.Code)
			var body util.APIError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.NotContains(t, rr.Body.String(), "db down")
		})
	}

	rr := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/admin/me", nil)
	r.Header.Set("Authorization", "Bearer tok")
	Authn(fakeValidator{admin: models.AdminUser{ID: "a1", Username: "ops"}})(protected).ServeHTTP(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"admin":"ops","session":"sess-tok"}`, rr.Body.String())
}

func TestRateLimit(t *testing.T) {
	l := rate.NewLimiter()
	h := RateLimit(l, "login", 2, time.Minute, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/admin/login", nil)
		r.RemoteAddr = "198.51.100.1:4000"
		h.ServeHTTP(rr, r)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{204, 204, 429}, codes)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))

	const incoming = "7f1f4a5e-2a55-4c43-9f40-5d1f0b8f4a10"
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", incoming)
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, incoming, seen)

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "<script>")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.NotEqual(t, "<script>", seen)
}
