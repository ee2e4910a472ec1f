package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"hashhost/internal/db"
	"hashhost/internal/models"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

func New(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

func (s *Store) q(query string) string { return db.Rebind(s.dialect, query) }

// now is truncated to the precision every supported column type keeps.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAdmin inserts a new account. createdBy is the id of the admin who
// added it, empty for the bootstrap account.
func (s *Store) CreateAdmin(ctx context.Context, username, passwordHash, createdBy string) (models.AdminUser, error) {
	a := models.AdminUser{ID: uuid.NewString(), Username: username, PasswordHash: passwordHash, CreatedAt: now()}
	var by sql.NullString
	if createdBy != "" {
		a.CreatedBy = &createdBy
		by = sql.NullString{String: createdBy, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO admin_users(id,username,password_hash,created_by,created_at) VALUES(?,?,?,?,?)`),
		a.ID, a.Username, a.PasswordHash, by, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.AdminUser{}, ErrConflict
	}
	if err != nil {
		return models.AdminUser{}, err
	}
	return a, nil
}

// EnsureAdmin creates the bootstrap account when it does not exist yet. An
// existing account keeps its current password.
func (s *Store) EnsureAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || passwordHash == "" {
		return false, nil
	}
	_, err := s.GetAdminByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	_, err = s.CreateAdmin(ctx, username, passwordHash, "")
	if errors.Is(err, ErrConflict) {
		// Another instance bootstrapped first.
		return false, nil
	}
	return err == nil, err
}

func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM admin_users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

const adminColumns = `id,username,password_hash,created_by,created_at,last_login_at`

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (models.AdminUser, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, s.q(`SELECT `+adminColumns+` FROM admin_users WHERE username=?`), username))
}

func (s *Store) GetAdminByID(ctx context.Context, id string) (models.AdminUser, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, s.q(`SELECT `+adminColumns+` FROM admin_users WHERE id=?`), id))
}

func (s *Store) ListAdmins(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+adminColumns+` FROM admin_users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AdminUser{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAdminPassword(ctx context.Context, adminID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE admin_users SET password_hash=? WHERE id=?`), passwordHash, adminID)
	return requireRow(res, err)
}

func (s *Store) TouchAdminLastLogin(ctx context.Context, adminID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE admin_users SET last_login_at=? WHERE id=?`), at.UTC(), adminID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess models.AdminSession) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO admin_sessions(id,admin_id,token_hash,ip_hint,user_agent_hash,created_at,expires_at,last_seen_at) VALUES(?,?,?,?,?,?,?,?)`),
		sess.ID, sess.AdminID, sess.TokenHash, sess.IPHint, sess.UserAgentHash, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(), sess.LastSeenAt.UTC(),
	)
	return err
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (models.AdminSession, error) {
	var sess models.AdminSession
	var revoked sql.NullTime
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id,admin_id,token_hash,ip_hint,user_agent_hash,created_at,expires_at,last_seen_at,revoked_at FROM admin_sessions WHERE token_hash=?`),
		tokenHash,
	).Scan(&sess.ID, &sess.AdminID, &sess.TokenHash, &sess.IPHint, &sess.UserAgentHash, &sess.CreatedAt, &sess.ExpiresAt, &sess.LastSeenAt, &revoked)
	if err == sql.ErrNoRows {
		return models.AdminSession{}, ErrNotFound
	}
	if err != nil {
		return models.AdminSession{}, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	sess.LastSeenAt = sess.LastSeenAt.UTC()
	if revoked.Valid {
		t := revoked.Time.UTC()
		sess.RevokedAt = &t
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE admin_sessions SET last_seen_at=? WHERE id=?`), at.UTC(), id)
	return err
}

// DeleteSessionByTokenHash removes the session row. Deleting a token that no
// longer exists is not an error.
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM admin_sessions WHERE token_hash=?`), tokenHash)
	return err
}

// RevokeAdminSessions marks every live session of adminID revoked, except
// keepID when it is non-empty.
func (s *Store) RevokeAdminSessions(ctx context.Context, adminID, keepID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE admin_sessions SET revoked_at=? WHERE admin_id=? AND id<>? AND revoked_at IS NULL`),
		now(), adminID, keepID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteDeadSessions(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM admin_sessions WHERE expires_at<=? OR revoked_at IS NOT NULL`),
		at.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(row rowScanner) (models.AdminUser, error) {
	var a models.AdminUser
	var createdBy sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &createdBy, &a.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return models.AdminUser{}, ErrNotFound
	}
	if err != nil {
		return models.AdminUser{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	if createdBy.Valid {
		a.CreatedBy = &createdBy.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		a.LastLoginAt = &t
	}
	return a, nil
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func limitOffset(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
