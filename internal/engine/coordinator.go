package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/signature"
)

// Sink names used in errors and diagnostics.
const (
	SinkNotification = "notification"
	SinkStorage      = "storage"
)

// ErrConfigurationMissing means the notification credentials are not set, so
// no send was attempted.
var ErrConfigurationMissing = errors.New("notification configuration missing")

// SinkError wraps a failure of one of the two sinks.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// PathResult is the settled result of one sink.
type PathResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Outcome is the reconciled result of one submission attempt.
type Outcome struct {
	Notification   PathResult `json:"notification"`
	Storage        PathResult `json:"storage"`
	OverallSuccess bool       `json:"success"`
	Diagnostics    []string   `json:"diagnostics,omitempty"`
	VisitorID      string     `json:"visitor_id,omitempty"`
	// ResetAfter is how long the success acknowledgment stays visible before
	// the form is reset. Zero on failure.
	ResetAfter time.Duration `json:"-"`
}

// Message joins the diagnostics into one human-readable string.
func (o Outcome) Message() string {
	return strings.Join(o.Diagnostics, " and ")
}

// Coordinator runs the dual-path submission: a notification carrying a
// thumbnail of the signature, and a storage write carrying the full image.
type Coordinator struct {
	notifier Notifier
	sink     VisitorSink
	creds    Credentials

	thumbnail  ThumbnailFunc
	maxW, maxH int

	resetAfter  time.Duration
	sinkTimeout time.Duration
	company     string
	formType    string
	loc         *time.Location

	now   func() time.Time
	newID func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithThumbnailBounds sets the maximum thumbnail size (default 200x100).
func WithThumbnailBounds(maxW, maxH int) Option {
	return func(c *Coordinator) { c.maxW, c.maxH = maxW, maxH }
}

// WithThumbnailer replaces the thumbnail encoder.
func WithThumbnailer(fn ThumbnailFunc) Option {
	return func(c *Coordinator) { c.thumbnail = fn }
}

// WithResetDelay sets Outcome.ResetAfter for successful submissions (default 3s).
func WithResetDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.resetAfter = d }
}

// WithSinkTimeout bounds each sink call independently (default 30s).
func WithSinkTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.sinkTimeout = d }
}

// WithCompany sets the company name and form type sent with notifications.
func WithCompany(name, formType string) Option {
	return func(c *Coordinator) { c.company, c.formType = name, formType }
}

// WithLocation sets the time zone used for the notification timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewCoordinator creates a coordinator with the given sinks.
func NewCoordinator(n Notifier, sink VisitorSink, creds Credentials, opts ...Option) *Coordinator {
	c := &Coordinator{
		notifier:    n,
		sink:        sink,
		creds:       creds,
		thumbnail:   signature.EncodeThumbnail,
		maxW:        signature.DefaultThumbWidth,
		maxH:        signature.DefaultThumbHeight,
		resetAfter:  3 * time.Second,
		sinkTimeout: 30 * time.Second,
		company:     DefaultCompanyName,
		formType:    DefaultFormType,
		loc:         time.Local,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit makes exactly one notification attempt and one storage attempt and
// waits for both to settle. It never fails as a whole: each sink's error is
// recorded in its PathResult. The submission counts as successful when at
// least one sink succeeded.
//
// The request context only contributes values; once launched, the sinks run
// to completion even if the caller goes away.
func (c *Coordinator) Submit(ctx context.Context, f model.VisitorFields, full signature.Artifact, client ClientInfo) Outcome {
	ctx = context.WithoutCancel(ctx)
	submittedAt := c.now().In(c.loc)

	var (
		wg        sync.WaitGroup
		notifyErr error
		storeErr  error
		visitorID string
	)

	// A missing configuration or an unusable thumbnail settles the
	// notification path before anything is launched.
	if !c.creds.Complete() {
		notifyErr = &SinkError{Sink: SinkNotification, Err: ErrConfigurationMissing}
	} else if thumb, err := c.thumbnail(ctx, full.Data, c.maxW, c.maxH); err != nil {
		notifyErr = &SinkError{Sink: SinkNotification, Err: err}
	} else {
		params := c.templateParams(f, thumb, client, submittedAt)
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifyErr = c.settle(ctx, SinkNotification, func(ctx context.Context) error {
				return c.notifier.Send(ctx, c.creds, params)
			})
		}()
	}

	record := model.NewVisitor(c.newID(), f, full.DataURL())
	wg.Add(1)
	go func() {
		defer wg.Done()
		storeErr = c.settle(ctx, SinkStorage, func(ctx context.Context) error {
			id, err := c.sink.InsertVisitor(ctx, record)
			if err == nil {
				visitorID = id
			}
			return err
		})
	}()

	wg.Wait()
	return c.reconcile(notifyErr, storeErr, visitorID)
}

// settle runs one sink call under its own timeout and converts a panic into
// an ordinary failure.
func (c *Coordinator) settle(ctx context.Context, sink string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = &SinkError{Sink: sink, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(ctx); err != nil {
		return &SinkError{Sink: sink, Err: err}
	}
	return nil
}

func (c *Coordinator) reconcile(notifyErr, storeErr error, visitorID string) Outcome {
	out := Outcome{
		Notification: pathResult(notifyErr),
		Storage:      pathResult(storeErr),
		VisitorID:    visitorID,
	}
	if notifyErr != nil {
		slog.Warn("notification failed", "error", notifyErr)
		out.Diagnostics = append(out.Diagnostics, "email notification failed: "+out.Notification.Reason)
	}
	if storeErr != nil {
		slog.Warn("storage failed", "error", storeErr)
		out.Diagnostics = append(out.Diagnostics, "database save failed: "+out.Storage.Reason)
	}
	out.OverallSuccess = out.Notification.OK || out.Storage.OK
	if out.OverallSuccess {
		out.ResetAfter = c.resetAfter
		slog.Info("submission accepted",
			"visitor_id", visitorID,
			"notification", out.Notification.OK,
			"storage", out.Storage.OK,
		)
	}
	return out
}

func pathResult(err error) PathResult {
	if err == nil {
		return PathResult{OK: true}
	}
	var se *SinkError
	if errors.As(err, &se) {
		return PathResult{Reason: se.Err.Error()}
	}
	return PathResult{Reason: err.Error()}
}
