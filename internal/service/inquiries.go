package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"github.com/emersion/go-message/mail"

	"hashhost/internal/models"
	"hashhost/internal/notify"
)

const (
	maxNameLen    = 200
	maxEmailLen   = 320
	maxPhoneLen   = 64
	maxCompanyLen = 200
	maxServiceLen = 100
	maxMessageLen = 5000
	maxNotesLen   = 2000
)

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Service string `json:"service"`
	Message string `json:"message"`
}

type AppointmentInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Company     string `json:"company"`
	RequestedAt string `json:"requested_at"`
	Timezone    string `json:"timezone"`
	Notes       string `json:"notes"`
}

func (s *Service) SubmitContact(ctx context.Context, in ContactInput) (models.ContactSubmission, error) {
	name, email, err := requireContact(in.Name, in.Email)
	if err != nil {
		return models.ContactSubmission{}, err
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return models.ContactSubmission{}, invalid("message is required")
	}
	if err := maxLen("message", msg, maxMessageLen); err != nil {
		return models.ContactSubmission{}, err
	}
	c := models.ContactSubmission{
		Name:    name,
		Email:   email,
		Phone:   strings.TrimSpace(in.Phone),
		Company: strings.TrimSpace(in.Company),
		Service: strings.TrimSpace(in.Service),
		Message: msg,
	}
	for _, f := range []struct {
		field string
		v     string
		max   int
	}{{"phone", c.Phone, maxPhoneLen}, {"company", c.Company, maxCompanyLen}, {"service", c.Service, maxServiceLen}} {
		if err := maxLen(f.field, f.v, f.max); err != nil {
			return models.ContactSubmission{}, err
		}
	}

	c, err = s.st.CreateContact(ctx, c)
	if err != nil {
		return models.ContactSubmission{}, err
	}
	s.notify(ctx, notify.Notification{
		Subject: "New contact request from " + c.Name,
		ReplyTo: c.Email,
		Body: fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\nCompany: %s\nService: %s\n\n%s\n",
			c.Name, c.Email, c.Phone, c.Company, c.Service, c.Message),
	})
	return c, nil
}

func (s *Service) RequestAppointment(ctx context.Context, in AppointmentInput) (models.Appointment, error) {
	name, email, err := requireContact(in.Name, in.Email)
	if err != nil {
		return models.Appointment{}, err
	}
	raw := strings.TrimSpace(in.RequestedAt)
	if raw == "" {
		return models.Appointment{}, invalid("requested_at is required")
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return models.Appointment{}, invalid("requested_at must be an RFC 3339 timestamp")
	}
	if !at.After(s.now()) {
		return models.Appointment{}, invalid("requested_at must be in the future")
	}
	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return models.Appointment{}, invalid("timezone %q is not a known IANA zone", tz)
	}
	a := models.Appointment{
		Name:        name,
		Email:       email,
		Phone:       strings.TrimSpace(in.Phone),
		Company:     strings.TrimSpace(in.Company),
		RequestedAt: at.UTC(),
		Timezone:    tz,
		Notes:       strings.TrimSpace(in.Notes),
	}
	for _, f := range []struct {
		field string
		v     string
		max   int
	}{{"phone", a.Phone, maxPhoneLen}, {"company", a.Company, maxCompanyLen}, {"notes", a.Notes, maxNotesLen}} {
		if err := maxLen(f.field, f.v, f.max); err != nil {
			return models.Appointment{}, err
		}
	}

	a, err = s.st.CreateAppointment(ctx, a)
	if err != nil {
		return models.Appointment{}, err
	}
	s.notify(ctx, notify.Notification{
		Subject: "New appointment request from " + a.Name,
		ReplyTo: a.Email,
		Body: fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\nCompany: %s\nRequested: %s (%s)\n\n%s\n",
			a.Name, a.Email, a.Phone, a.Company, a.RequestedAt.Format(time.RFC3339), a.Timezone, a.Notes),
	})
	return a, nil
}

func (s *Service) ListContacts(ctx context.Context, q models.ContactQuery) ([]models.ContactSubmission, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("unknown status %q", q.Status)
	}
	return s.st.ListContacts(ctx, q)
}

func (s *Service) GetContact(ctx context.Context, id string) (models.ContactSubmission, error) {
	return s.st.GetContact(ctx, id)
}

// SetContactStatus moves a submission to any known status, including back to
// unread.
func (s *Service) SetContactStatus(ctx context.Context, id string, status models.ContactStatus) (models.ContactSubmission, error) {
	if !status.Valid() {
		return models.ContactSubmission{}, invalid("status must be one of unread, responded, ignored")
	}
	return s.st.UpdateContactStatus(ctx, id, status)
}

func (s *Service) ListAppointments(ctx context.Context, q models.AppointmentQuery) ([]models.Appointment, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, invalid("unknown status %q", q.Status)
	}
	return s.st.ListAppointments(ctx, q)
}

func (s *Service) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	return s.st.GetAppointment(ctx, id)
}

// DecideAppointment approves or rejects a pending appointment. Decided
// appointments return store.ErrConflict.
func (s *Service) DecideAppointment(ctx context.Context, id string, status models.AppointmentStatus, decidedBy string) (models.Appointment, error) {
	if !status.Decision() {
		return models.Appointment{}, invalid("status must be approved or rejected")
	}
	return s.st.DecideAppointment(ctx, id, status, decidedBy)
}

func requireContact(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", invalid("name is required")
	}
	if err := maxLen("name", name, maxNameLen); err != nil {
		return "", "", err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", invalid("email is required")
	}
	if len(email) > maxEmailLen {
		return "", "", invalid("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", invalid("email is not a valid address")
	}
	return name, addr.Address, nil
}

func maxLen(field, v string, n int) error {
	if utf8.RuneCountInString(v) > n {
		return invalid("%s must be at most %d characters", field, n)
	}
	return nil
}
