package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hashhost/internal/middleware"
	"hashhost/internal/models"
	"hashhost/internal/service"
	"hashhost/internal/util"
)

// Failed logins per client and username before further attempts are refused.
const (
	loginFailureLimit  = 5
	loginFailureWindow = 15 * time.Minute
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	ip := middleware.ClientIP(r, h.cfg.TrustProxy)
	key := "login_failed:" + ip + "|" + strings.ToLower(strings.TrimSpace(req.Username))
	if h.limiter.Blocked(key, loginFailureLimit, loginFailureWindow) {
		w.Header().Set("Retry-After", strconv.Itoa(int(loginFailureWindow.Seconds())))
		util.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many failed logins", middleware.RequestID(r.Context()))
		return
	}
	res, err := h.svc.Login(r.Context(), req.Username, req.Password, ip, r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.limiter.Allow(key, loginFailureLimit, loginFailureWindow)
		}
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// Logout accepts requests with a missing or stale token.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	a, _ := middleware.Admin(r.Context())
	sess, _ := middleware.Session(r.Context())
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"admin": a,
		"session": map[string]any{
			"created_at": sess.CreatedAt,
			"expires_at": sess.ExpiresAt,
		},
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	a, _ := middleware.Admin(r.Context())
	sess, _ := middleware.Session(r.Context())
	if err := h.svc.ChangePassword(r.Context(), a.ID, sess.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *Handlers) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.svc.ListAdmins(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": admins})
}

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	actor, _ := middleware.Admin(r.Context())
	a, err := h.svc.CreateAdmin(r.Context(), actor.ID, req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err, "username_taken")
		return
	}
	util.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	p, ps := parsePagination(r)
	items, err := h.svc.ListContacts(r.Context(), models.ContactQuery{
		Status: models.ContactStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:  ps,
		Offset: (p - 1) * ps,
	})
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, page[models.ContactSubmission]{Items: items, Page: p, PageSize: ps})
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, c)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) SetContactStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	c, err := h.svc.SetContactStatus(r.Context(), chi.URLParam(r, "id"), models.ContactStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, c)
}

func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	p, ps := parsePagination(r)
	items, err := h.svc.ListAppointments(r.Context(), models.AppointmentQuery{
		Status: models.AppointmentStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:  ps,
		Offset: (p - 1) * ps,
	})
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, page[models.Appointment]{Items: items, Page: p, PageSize: ps})
}

func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, a)
}

func (h *Handlers) DecideAppointment(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	admin, _ := middleware.Admin(r.Context())
	a, err := h.svc.DecideAppointment(r.Context(), chi.URLParam(r, "id"), models.AppointmentStatus(strings.TrimSpace(req.Status)), admin.Username)
	if err != nil {
		h.fail(w, r, err, "already_decided")
		return
	}
	util.WriteJSON(w, http.StatusOK, a)
}

func (h *Handlers) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CleanupSessions(r.Context(), time.Now())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
