package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"hashhost/internal/models"
)

const contactColumns = `id,name,email,phone,company,service,message,status,created_at,updated_at`

func (s *Store) CreateContact(ctx context.Context, c models.ContactSubmission) (models.ContactSubmission, error) {
	ts := now()
	c.ID = uuid.NewString()
	c.Status = models.ContactUnread
	c.CreatedAt = ts
	c.UpdatedAt = ts
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO contact_submissions(`+contactColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		c.ID, c.Name, c.Email, c.Phone, c.Company, c.Service, c.Message, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return models.ContactSubmission{}, err
	}
	return c, nil
}

func (s *Store) GetContact(ctx context.Context, id string) (models.ContactSubmission, error) {
	return scanContact(s.db.QueryRowContext(ctx, s.q(`SELECT `+contactColumns+` FROM contact_submissions WHERE id=?`), id))
}

func (s *Store) ListContacts(ctx context.Context, q models.ContactQuery) ([]models.ContactSubmission, error) {
	limit, offset := limitOffset(q.Limit, q.Offset)
	var rows *sql.Rows
	var err error
	if q.Status != "" {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT `+contactColumns+` FROM contact_submissions WHERE status=? ORDER BY created_at DESC LIMIT ? OFFSET ?`),
			q.Status, limit, offset,
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT `+contactColumns+` FROM contact_submissions ORDER BY created_at DESC LIMIT ? OFFSET ?`),
			limit, offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ContactSubmission{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateContactStatus(ctx context.Context, id string, status models.ContactStatus) (models.ContactSubmission, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE contact_submissions SET status=?, updated_at=? WHERE id=?`),
		status, now(), id,
	)
	if err := requireRow(res, err); err != nil {
		return models.ContactSubmission{}, err
	}
	return s.GetContact(ctx, id)
}

const appointmentColumns = `id,name,email,phone,company,requested_at,timezone,notes,status,decided_at,decided_by,created_at,updated_at`

func (s *Store) CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	ts := now()
	a.ID = uuid.NewString()
	a.Status = models.AppointmentPending
	a.RequestedAt = a.RequestedAt.UTC().Truncate(time.Microsecond)
	a.DecidedAt = nil
	a.DecidedBy = nil
	a.CreatedAt = ts
	a.UpdatedAt = ts
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO appointments(id,name,email,phone,company,requested_at,timezone,notes,status,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		a.ID, a.Name, a.Email, a.Phone, a.Company, a.RequestedAt, a.Timezone, a.Notes, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return models.Appointment{}, err
	}
	return a, nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	return scanAppointment(s.db.QueryRowContext(ctx, s.q(`SELECT `+appointmentColumns+` FROM appointments WHERE id=?`), id))
}

func (s *Store) ListAppointments(ctx context.Context, q models.AppointmentQuery) ([]models.Appointment, error) {
	limit, offset := limitOffset(q.Limit, q.Offset)
	var rows *sql.Rows
	var err error
	if q.Status != "" {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT `+appointmentColumns+` FROM appointments WHERE status=? ORDER BY requested_at ASC LIMIT ? OFFSET ?`),
			q.Status, limit, offset,
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT `+appointmentColumns+` FROM appointments ORDER BY requested_at ASC LIMIT ? OFFSET ?`),
			limit, offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DecideAppointment moves a pending appointment to status. A missing row is
// ErrNotFound; a row that was already decided is ErrConflict.
func (s *Store) DecideAppointment(ctx context.Context, id string, status models.AppointmentStatus, decidedBy string) (models.Appointment, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE appointments SET status=?, decided_at=?, decided_by=?, updated_at=? WHERE id=? AND status='pending'`),
		status, ts, decidedBy, ts, id,
	)
	if err := requireRow(res, err); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return models.Appointment{}, err
		}
		if _, getErr := s.GetAppointment(ctx, id); getErr != nil {
			return models.Appointment{}, getErr
		}
		return models.Appointment{}, ErrConflict
	}
	return s.GetAppointment(ctx, id)
}

func scanContact(row rowScanner) (models.ContactSubmission, error) {
	var c models.ContactSubmission
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Service, &c.Message, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.ContactSubmission{}, ErrNotFound
	}
	if err != nil {
		return models.ContactSubmission{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func scanAppointment(row rowScanner) (models.Appointment, error) {
	var a models.Appointment
	var decidedAt sql.NullTime
	var decidedBy sql.NullString
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Company, &a.RequestedAt, &a.Timezone, &a.Notes, &a.Status, &decidedAt, &decidedBy, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Appointment{}, ErrNotFound
	}
	if err != nil {
		return models.Appointment{}, err
	}
	a.RequestedAt = a.RequestedAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if decidedAt.Valid {
		t := decidedAt.Time.UTC()
		a.DecidedAt = &t
	}
	if decidedBy.Valid {
		v := decidedBy.String
		a.DecidedBy = &v
	}
	return a, nil
}
