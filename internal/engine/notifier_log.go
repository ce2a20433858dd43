package engine

import (
	"context"
	"log/slog"
)

// LogNotifier logs notifications instead of sending them (for development).
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, creds Credentials, params map[string]string) error {
	slog.Info("notification (log only)",
		"template", creds.TemplateID,
		"visitor", params["visitor_full_name"],
		"submitted_at", params["submission_datetime"],
		"signature_bytes", len(params["signature_image"]),
	)
	return nil
}
