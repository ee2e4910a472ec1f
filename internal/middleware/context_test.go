package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"hashhost/internal/models"
)

func TestAuthContext(t *testing.T) {
	_, ok := Admin(context.Background())
	assert.False(t, ok)
	_, ok = Session(context.Background())
	assert.False(t, ok)

	ctx := WithAuth(context.Background(), models.AdminUser{ID: "a1", Username: "ops"}, models.AdminSession{ID: "s1", AdminID: "a1"})
	a, ok := Admin(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ops", a.Username)
	s, ok := Session(ctx)
	assert.True(t, ok)
	assert.Equal(t, a.ID, s.AdminID)
}

func TestSecurityHeadersPolicyByPath(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := []struct {
		path string
		csp  string
	}{
		{path: "/api/health", csp: apiCSP},
		{path: "/api", csp: apiCSP},
		{path: "/", csp: siteCSP},
		{path: "/apix/page", csp: siteCSP},
		{path: "/assets/app.js", csp: siteCSP},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest("GET", tc.path, nil))
			assert.Equal(t, tc.csp, rr.Header().Get("Content-Security-Policy"))
			assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
			assert.NotEmpty(t, rr.Header().Get("Permissions-Policy"))
		})
	}
}
