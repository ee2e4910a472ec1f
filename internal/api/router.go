package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"hashhost/internal/captcha"
	"hashhost/internal/config"
	"hashhost/internal/middleware"
	"hashhost/internal/rate"
	"hashhost/internal/service"
	"hashhost/internal/store"
	"hashhost/internal/util"
	"hashhost/internal/version"
)

const maxBodyBytes = 64 << 10

type Handlers struct {
	cfg             config.Config
	svc             *service.Service
	limiter         *rate.Limiter
	captchaVerifier captcha.Verifier
}

// NewRouter builds the /api surface. Request ids, logging, security headers
// and panic recovery are applied by the caller around it.
func NewRouter(cfg config.Config, svc *service.Service, verifier captcha.Verifier, limiter *rate.Limiter) http.Handler {
	if verifier == nil {
		verifier = captcha.NewVerifier(cfg)
	}
	if limiter == nil {
		limiter = rate.NewLimiter()
	}
	h := &Handlers{cfg: cfg, svc: svc, limiter: limiter, captchaVerifier: verifier}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusNotFound, "not_found", "no such endpoint", middleware.RequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.RequestID(r.Context()))
	})
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.With(middleware.RateLimit(h.limiter, "contact", 5, time.Minute, h.cfg.TrustProxy)).Post("/contact", h.SubmitContact)
		r.With(middleware.RateLimit(h.limiter, "appointment", 5, time.Minute, h.cfg.TrustProxy)).Post("/appointments", h.RequestAppointment)

		r.Route("/admin", func(r chi.Router) {
			r.Use(noStore)
			r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, h.cfg.TrustProxy)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authn(h.svc))
				r.Get("/me", h.Me)
				r.Post("/password", h.ChangePassword)
				r.Get("/users", h.ListAdmins)
				r.Post("/users", h.CreateAdmin)
				r.Get("/contacts", h.ListContacts)
				r.Get("/contacts/{id}", h.GetContact)
				r.Patch("/contacts/{id}/status", h.SetContactStatus)
				r.Get("/appointments", h.ListAppointments)
				r.Get("/appointments/{id}", h.GetAppointment)
				r.Patch("/appointments/{id}/status", h.DecideAppointment)
				r.Post("/sessions/cleanup", h.CleanupSessions)
			})
		})
	})
	return r
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	out := map[string]any{
		"status":     "ok",
		"database":   "ok",
		"version":    version.Current(),
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.svc.Store().Ping(ctx); err != nil {
		out["status"] = "degraded"
		out["database"] = "unreachable"
		util.WriteJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	util.WriteJSON(w, http.StatusOK, out)
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return util.NewStatusError(http.StatusRequestEntityTooLarge, "payload_too_large", "request body is too large")
		}
		return util.NewStatusError(http.StatusBadRequest, "bad_request", "invalid json")
	}
	return nil
}

// fail maps domain errors onto API responses. conflict names the 409 code
// for the calling endpoint.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error, conflict string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
		err = &util.StatusError{Status: http.StatusBadRequest, Code: "validation_error", Message: msg, Err: err}
	case errors.Is(err, service.ErrInvalidCredentials):
		err = &util.StatusError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "invalid username or password", Err: err}
	case errors.Is(err, service.ErrInvalidSession):
		err = &util.StatusError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "invalid session", Err: err}
	case errors.Is(err, store.ErrNotFound):
		err = &util.StatusError{Status: http.StatusNotFound, Code: "not_found", Message: "record not found", Err: err}
	case errors.Is(err, store.ErrConflict):
		if conflict == "" {
			conflict = "conflict"
		}
		err = &util.StatusError{Status: http.StatusConflict, Code: conflict, Message: strings.ReplaceAll(conflict, "_", " "), Err: err}
	default:
		err = captcha.AsStatusError(err)
	}
	middleware.Fail(w, r, err)
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}

type page[T any] struct {
	Items    []T `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
