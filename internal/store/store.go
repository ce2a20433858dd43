package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/makromakina/kiosk/internal/model"
)

// Verify at compile time that Store implements all interfaces.
var (
	_ VisitorRepository = (*Store)(nil)
	_ AdminStore        = (*Store)(nil)
	_ SessionStore      = (*Store)(nil)
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store provides data access to the SQL database.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Option configures a Store.
type Option func(*Store)

// WithPostgres switches placeholder syntax to $1, $2, ...
func WithPostgres() Option {
	return func(s *Store) { s.postgres = true }
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// currentSchemaVersion is bumped whenever the schema changes.
// Add a new migration function in the migrations slice below.
const currentSchemaVersion = 2

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: visitors, admins, login attempts
		s.migrateV2, // v1 → v2: admin sessions
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(s.rebind(`UPDATE schema_version SET version = ?`), i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema (v0 → v1).
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS visitors (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		surname         TEXT NOT NULL,
		phone           TEXT NOT NULL,
		email           TEXT,
		kvkk_consent    BOOLEAN NOT NULL,
		signature_image TEXT,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_created ON visitors(created_at);

	CREATE TABLE IF NOT EXISTS admins (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS login_attempts (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		ip_address TEXT,
		success    BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 adds persistent admin sessions (v1 → v2).
func (s *Store) migrateV2() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS admin_sessions (
			token      TEXT PRIMARY KEY,
			admin_id   TEXT NOT NULL REFERENCES admins(id),
			email      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_admin_sessions_expiry ON admin_sessions(expires_at);
	`)
	return err
}

// ---------------------------------------------------------------------------
// Visitors
// ---------------------------------------------------------------------------

const visitorColumns = `id, name, surname, phone, email, kvkk_consent, signature_image, created_at`

// InsertVisitor stores a new visitor and returns its ID.
func (s *Store) InsertVisitor(ctx context.Context, v model.Visitor) (string, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO visitors (`+visitorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.Name, v.Surname, v.Phone, v.Email, v.ConsentGiven, v.SignatureImage, v.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}

// GetVisitor returns a single visitor.
func (s *Store) GetVisitor(ctx context.Context, id string) (*model.Visitor, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+visitorColumns+` FROM visitors WHERE id = ?`), id)
	v, err := scanVisitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// ListVisitors returns one page of visitors matching f, newest first, and the
// total number of matches.
func (s *Store) ListVisitors(ctx context.Context, f model.VisitorFilter) ([]model.Visitor, int, error) {
	var conditions []string
	var args []interface{}

	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		conditions = append(conditions, "(LOWER(name) LIKE ? OR LOWER(surname) LIKE ?)")
		args = append(args, like, like)
	}
	if f.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.Before != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, f.Before.UTC().Format(time.RFC3339))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM visitors`+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visitors: %w", err)
	}

	query := `SELECT ` + visitorColumns + ` FROM visitors` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var visitors []model.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, 0, err
		}
		visitors = append(visitors, *v)
	}
	return visitors, total, rows.Err()
}

// DeleteVisitor removes a visitor record.
func (s *Store) DeleteVisitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM visitors WHERE id = ?`), id)
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

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account.
func (s *Store) CreateAdmin(ctx context.Context, a model.Admin) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO admins (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`),
		a.ID, a.Email, a.PasswordHash, a.CreatedAt,
	)
	return err
}

// GetAdminByEmail looks an admin up by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, password_hash, created_at FROM admins WHERE email = ?`), email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAdminPassword replaces an admin's password hash.
func (s *Store) UpdateAdminPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE admins SET password_hash = ? WHERE id = ?`), passwordHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of admin accounts.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n)
	return n, err
}

// RecordLoginAttempt appends a row to the login audit.
func (s *Store) RecordLoginAttempt(ctx context.Context, a model.LoginAttempt) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO login_attempts (id, email, ip_address, success, created_at) VALUES (?, ?, ?, ?, ?)`),
		a.ID, a.Email, a.IPAddress, a.Success, a.CreatedAt,
	)
	return err
}

// ListLoginAttempts returns the most recent login attempts for an email.
func (s *Store) ListLoginAttempts(ctx context.Context, email string, limit int) ([]model.LoginAttempt, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, email, ip_address, success, created_at FROM login_attempts
		WHERE email = ? ORDER BY created_at DESC LIMIT ?`), email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.LoginAttempt
	for rows.Next() {
		var a model.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.IPAddress, &a.Success, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession stores a new admin session.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO admin_sessions (token, admin_id, email, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`),
		sess.Token, sess.AdminID, sess.Email, sess.CreatedAt, sess.ExpiresAt,
	)
	return err
}

// GetSession returns the session for a token, expired or not.
func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT token, admin_id, email, created_at, expires_at FROM admin_sessions WHERE token = ?`), token).
		Scan(&sess.Token, &sess.AdminID, &sess.Email, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM admin_sessions WHERE token = ?`), token)
	return err
}

// DeleteExpiredSessions removes every session whose expiry has passed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM admin_sessions WHERE expires_at <= ?`), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVisitor(row scanner) (*model.Visitor, error) {
	var v model.Visitor
	var signature sql.NullString
	err := row.Scan(&v.ID, &v.Name, &v.Surname, &v.Phone, &v.Email, &v.ConsentGiven, &signature, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.SignatureImage = signature.String
	return &v, nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
