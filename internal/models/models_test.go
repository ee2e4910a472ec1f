package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)

	cases := []struct {
		name string
		sess AdminSession
		want SessionState
	}{
		{name: "issued", sess: AdminSession{ExpiresAt: now.Add(time.Hour)}, want: SessionIssued},
		{name: "active", sess: AdminSession{CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)}, want: SessionActive},
		{name: "expired at boundary", sess: AdminSession{CreatedAt: now.Add(-time.Hour), ExpiresAt: now}, want: SessionExpired},
		{name: "expired", sess: AdminSession{CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}, want: SessionExpired},
		{name: "revoked wins over expiry", sess: AdminSession{CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour), RevokedAt: &revokedAt}, want: SessionRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sess.StateAt(now))
		})
	}
}

func TestStatusEnums(t *testing.T) {
	assert.True(t, ContactResponded.Valid())
	assert.False(t, ContactStatus("read").Valid())
	assert.True(t, AppointmentPending.Valid())
	assert.False(t, AppointmentPending.Decision())
	assert.True(t, AppointmentRejected.Decision())
	assert.False(t, AppointmentStatus("cancelled").Valid())
}
