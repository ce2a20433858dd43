package model

import "time"

// Admin is a panel user.
type Admin struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at"`
}

// LoginAttempt is an audit row written for every login request.
type LoginAttempt struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	IPAddress *string `json:"ip_address"`
	Success   bool    `json:"success"`
	CreatedAt string  `json:"created_at"`
}

// Session is an authenticated admin session.
type Session struct {
	Token     string `json:"-"`
	AdminID   string `json:"admin_id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// NewSession creates a session valid for ttl from now.
func NewSession(token string, a Admin, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		Token:     token,
		AdminID:   a.ID,
		Email:     a.Email,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(ttl).Format(time.RFC3339),
	}
}

// Expired reports whether the session is past its expiry at t.
func (s Session) Expired(t time.Time) bool {
	exp, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return true
	}
	return !t.Before(exp)
}
