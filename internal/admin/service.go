package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/store"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 10

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an admin with this email already exists")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Store is the persistence the service needs.
type Store interface {
	store.AdminStore
	store.SessionStore
}

// Service manages admin accounts and their sessions.
type Service struct {
	store      Store
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService creates an admin service. Sessions last for ttl.
func NewService(s Store, ttl time.Duration) *Service {
	return &Service{store: s, sessionTTL: ttl, now: time.Now}
}

// Login checks the credentials and opens a session. Every call is recorded in
// the login audit, successful or not.
func (s *Service) Login(ctx context.Context, email, password, ip string) (model.Session, error) {
	email = normalizeEmail(email)
	sess, err := s.login(ctx, email, password)
	s.audit(ctx, email, ip, err == nil)
	return sess, err
}

func (s *Service) login(ctx context.Context, email, password string) (model.Session, error) {
	if email == "" || password == "" {
		return model.Session{}, ErrInvalidCredentials
	}
	a, err := s.store.GetAdminByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("look up admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return model.Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return model.Session{}, err
	}
	sess := model.NewSession(token, *a, s.sessionTTL)
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// RecordAttempt writes a login audit row for a request that never reached
// Login, such as one with a malformed body.
func (s *Service) RecordAttempt(ctx context.Context, email, ip string) {
	s.audit(ctx, normalizeEmail(email), ip, false)
}

func (s *Service) audit(ctx context.Context, email, ip string, success bool) {
	attempt := model.LoginAttempt{
		ID:        uuid.New().String(),
		Email:     email,
		Success:   success,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if ip != "" {
		attempt.IPAddress = &ip
	}
	if err := s.store.RecordLoginAttempt(ctx, attempt); err != nil {
		slog.Error("record login attempt", "email", email, "error", err)
	}
}

// Authenticate resolves a session token.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, ErrUnauthenticated
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, ErrUnauthenticated
	}
	if err != nil {
		return model.Session{}, err
	}
	if sess.Expired(s.now()) {
		return model.Session{}, ErrUnauthenticated
	}
	return *sess, nil
}

// Logout ends a session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Register creates a new admin account.
func (s *Service) Register(ctx context.Context, email, password string) (model.Admin, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.Admin{}, &model.ValidationError{Fields: map[string]string{"email": "email is required"}}
	}
	if len(password) < MinPasswordLength {
		return model.Admin{}, ErrWeakPassword
	}
	_, err := s.store.GetAdminByEmail(ctx, email)
	if err == nil {
		return model.Admin{}, ErrEmailTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Admin{}, fmt.Errorf("look up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return model.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	a := model.Admin{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.store.CreateAdmin(ctx, a); err != nil {
		return model.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, email, current, next string) error {
	email = normalizeEmail(email)
	if len(next) < MinPasswordLength {
		return ErrWeakPassword
	}
	a, err := s.store.GetAdminByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("look up admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateAdminPassword(ctx, a.ID, string(hash))
}

// SeedInitialAdmin creates the first admin account when none exists yet. It
// does nothing when either credential is empty.
func (s *Service) SeedInitialAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	a, err := s.Register(ctx, email, password)
	if err != nil {
		return err
	}
	slog.Info("initial admin created", "email", a.Email)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
