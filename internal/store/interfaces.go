package store

import (
	"context"

	"github.com/makromakina/kiosk/internal/model"
)

// VisitorWriter inserts new visitor records. It is the storage sink of the
// submission pipeline.
type VisitorWriter interface {
	InsertVisitor(ctx context.Context, v model.Visitor) (string, error)
}

// VisitorReader provides read access to visitors.
type VisitorReader interface {
	GetVisitor(ctx context.Context, id string) (*model.Visitor, error)
	ListVisitors(ctx context.Context, f model.VisitorFilter) ([]model.Visitor, int, error)
}

// VisitorRepository combines the visitor operations used by the admin API.
type VisitorRepository interface {
	VisitorWriter
	VisitorReader
	DeleteVisitor(ctx context.Context, id string) error
}

// AdminStore provides access to admin accounts and the login audit.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a model.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	UpdateAdminPassword(ctx context.Context, id, passwordHash string) error
	CountAdmins(ctx context.Context) (int, error)
	RecordLoginAttempt(ctx context.Context, a model.LoginAttempt) error
}

// SessionStore persists admin sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
