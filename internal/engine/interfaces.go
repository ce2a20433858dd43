package engine

import (
	"context"

	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/signature"
)

// Notifier sends a templated notification message.
type Notifier interface {
	Send(ctx context.Context, creds Credentials, params map[string]string) error
}

// VisitorSink durably stores a visitor record and returns its ID.
type VisitorSink interface {
	InsertVisitor(ctx context.Context, v model.Visitor) (string, error)
}

// ThumbnailFunc derives a bounded thumbnail from an encoded image.
type ThumbnailFunc func(ctx context.Context, source []byte, maxW, maxH int) (signature.Artifact, error)

// Credentials identify the notification account and template. All three
// identifiers are required; PrivateKey is optional.
type Credentials struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
}

// Complete reports whether every required identifier is set.
func (c Credentials) Complete() bool {
	return c.ServiceID != "" && c.TemplateID != "" && c.PublicKey != ""
}

// ClientInfo describes the kiosk device that made the submission.
type ClientInfo struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
}
