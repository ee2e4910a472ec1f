package models

import "time"

type ContactStatus string

const (
	ContactUnread    ContactStatus = "unread"
	ContactResponded ContactStatus = "responded"
	ContactIgnored   ContactStatus = "ignored"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactUnread, ContactResponded, ContactIgnored:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentPending  AppointmentStatus = "pending"
	AppointmentApproved AppointmentStatus = "approved"
	AppointmentRejected AppointmentStatus = "rejected"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentApproved, AppointmentRejected:
		return true
	}
	return false
}

// Decision reports whether s is a status an admin may move a pending
// appointment to.
func (s AppointmentStatus) Decision() bool {
	return s == AppointmentApproved || s == AppointmentRejected
}

type ContactSubmission struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Company   string        `json:"company,omitempty"`
	Service   string        `json:"service,omitempty"`
	Message   string        `json:"message"`
	Status    ContactStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Appointment struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	Company     string            `json:"company,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	Timezone    string            `json:"timezone"`
	Notes       string            `json:"notes,omitempty"`
	Status      AppointmentStatus `json:"status"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	DecidedBy   *string           `json:"decided_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type AdminUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedBy    *string    `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type SessionState string

const (
	SessionIssued  SessionState = "issued"
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
	SessionRevoked SessionState = "revoked"
)

type AdminSession struct {
	ID            string
	AdminID       string
	TokenHash     string
	IPHint        string
	UserAgentHash string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time
}

// StateAt derives the lifecycle state at now. Revoked and expired are
// terminal; a session that was never persisted is still issued.
func (s AdminSession) StateAt(now time.Time) SessionState {
	switch {
	case s.RevokedAt != nil:
		return SessionRevoked
	case !now.Before(s.ExpiresAt):
		return SessionExpired
	case s.CreatedAt.IsZero():
		return SessionIssued
	default:
		return SessionActive
	}
}

type ContactQuery struct {
	Status ContactStatus
	Limit  int
	Offset int
}

type AppointmentQuery struct {
	Status AppointmentStatus
	Limit  int
	Offset int
}
