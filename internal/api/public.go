package api

import (
	"net/http"

	"hashhost/internal/middleware"
	"hashhost/internal/service"
	"hashhost/internal/util"
)

type contactRequest struct {
	service.ContactInput
	CaptchaToken string `json:"captcha_token"`
}

type appointmentRequest struct {
	service.AppointmentInput
	CaptchaToken string `json:"captcha_token"`
}

func (h *Handlers) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	if err := h.captchaVerifier.Verify(r.Context(), req.CaptchaToken, middleware.ClientIP(r, h.cfg.TrustProxy)); err != nil {
		h.fail(w, r, err, "")
		return
	}
	c, err := h.svc.SubmitContact(r.Context(), req.ContactInput)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{"id": c.ID, "status": c.Status})
}

func (h *Handlers) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.Fail(w, r, err)
		return
	}
	if err := h.captchaVerifier.Verify(r.Context(), req.CaptchaToken, middleware.ClientIP(r, h.cfg.TrustProxy)); err != nil {
		h.fail(w, r, err, "")
		return
	}
	a, err := h.svc.RequestAppointment(r.Context(), req.AppointmentInput)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":           a.ID,
		"status":       a.Status,
		"requested_at": a.RequestedAt,
		"timezone":     a.Timezone,
	})
}
