package middleware

import (
	"context"
	"net/http"
	"strings"

	"hashhost/internal/models"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuth
)

// authInfo is what Authn learned about the caller. Admin and session are
// stored together so a handler never sees one without the other.
type authInfo struct {
	admin   models.AdminUser
	session models.AdminSession
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

// WithAuth attaches the admin behind a validated session.
func WithAuth(ctx context.Context, a models.AdminUser, s models.AdminSession) context.Context {
	return context.WithValue(ctx, ctxAuth, authInfo{admin: a, session: s})
}

func Admin(ctx context.Context) (models.AdminUser, bool) {
	info, ok := ctx.Value(ctxAuth).(authInfo)
	return info.admin, ok
}

func Session(ctx context.Context) (models.AdminSession, bool) {
	info, ok := ctx.Value(ctxAuth).(authInfo)
	return info.session, ok
}

// JSON responses never load subresources, so API paths get a locked-down
// policy. The site policy admits the captcha widgets used by the forms.
const (
	apiCSP  = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	siteCSP = "default-src 'self'; " +
		"img-src 'self' data: https:; " +
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
		"font-src 'self' data: https://fonts.gstatic.com; " +
		"connect-src 'self'; " +
		"script-src 'self' https://challenges.cloudflare.com https://js.hcaptcha.com; " +
		"frame-src https://challenges.cloudflare.com https://newassets.hcaptcha.com; " +
		"frame-ancestors 'none'; base-uri 'self'"
)

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Content-Security-Policy", apiCSP)
		} else {
			h.Set("Content-Security-Policy", siteCSP)
		}
		next.ServeHTTP(w, r)
	})
}
