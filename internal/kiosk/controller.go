package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makromakina/kiosk/internal/engine"
	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/signature"
)

var (
	ErrSessionNotFound = errors.New("kiosk session not found")
	ErrNoSurface       = errors.New("signature surface is not open")
	ErrNoSignature     = errors.New("no signature drawn")
	ErrTooManySessions = errors.New("too many open kiosk sessions")
)

// DefaultMaxSessions bounds the live sessions of a Controller.
const DefaultMaxSessions = 32

// Submitter runs a submission. *engine.Coordinator satisfies it.
type Submitter interface {
	Submit(ctx context.Context, f model.VisitorFields, full signature.Artifact, client engine.ClientInfo) engine.Outcome
}

// SurfaceState is what the front end needs after a batch of input events.
type SurfaceState struct {
	Drawing bool `json:"drawing"`
	HasInk  bool `json:"has_ink"`
}

type session struct {
	mu         sync.Mutex
	fields     model.VisitorFields
	surface    *signature.Surface // nil while the signing view is closed
	saved      *signature.Artifact
	done       bool // submitted successfully, waiting for reset
	lastActive time.Time
}

// Controller keeps the in-progress visitor forms, one per kiosk session.
type Controller struct {
	submitter Submitter

	mu          sync.Mutex
	sessions    map[string]*session
	maxSessions int

	now       func() time.Time
	newID     func() string
	afterFunc func(time.Duration, func())
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMaxSessions caps the number of live sessions. Values below 1 are ignored.
func WithMaxSessions(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.maxSessions = n
		}
	}
}

// NewController creates a controller that hands finished forms to s.
func NewController(s Submitter, opts ...ControllerOption) *Controller {
	c := &Controller{
		submitter:   s,
		sessions:    make(map[string]*session),
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		afterFunc:   func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open validates the form fields and starts a new session. It returns
// ErrTooManySessions once the session cap is reached.
func (c *Controller) Open(f model.VisitorFields) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	id := c.newID()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) >= c.maxSessions {
		return "", ErrTooManySessions
	}
	c.sessions[id] = &session{fields: f, lastActive: c.now()}
	return id, nil
}

// UpdateFields replaces the form fields of an open session.
func (c *Controller) UpdateFields(id string, f model.VisitorFields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return c.with(id, func(s *session) error {
		s.fields = f
		return nil
	})
}

// OpenSurface opens the signing view at the given display size. Opening it
// again re-runs setup, which wipes any ink on it.
func (c *Controller) OpenSurface(id string, d signature.Display) error {
	return c.with(id, func(s *session) error {
		if s.surface == nil {
			surface, err := signature.NewSurface(d)
			if err != nil {
				return err
			}
			s.surface = surface
			return nil
		}
		return s.surface.Setup(d)
	})
}

// Dispatch feeds a batch of input events to the session's surface.
func (c *Controller) Dispatch(id string, r signature.Rect, events []signature.Event) (SurfaceState, error) {
	var st SurfaceState
	err := c.with(id, func(s *session) error {
		if s.surface == nil {
			return ErrNoSurface
		}
		for _, ev := range events {
			s.surface.Dispatch(ev, r)
		}
		st = SurfaceState{
			Drawing: s.surface.State() == signature.StateDrawing,
			HasInk:  s.surface.HasInk(),
		}
		return nil
	})
	return st, err
}

// ClearSignature wipes the open surface back to blank.
func (c *Controller) ClearSignature(id string) error {
	return c.with(id, func(s *session) error {
		if s.surface == nil {
			return ErrNoSurface
		}
		s.surface.Clear()
		return nil
	})
}

// Preview encodes the open surface as it currently looks.
func (c *Controller) Preview(id string) (signature.Artifact, error) {
	var a signature.Artifact
	err := c.with(id, func(s *session) error {
		if s.surface == nil {
			if s.saved != nil {
				a = *s.saved
				return nil
			}
			return ErrNoSurface
		}
		var err error
		a, err = signature.EncodeFull(s.surface)
		return err
	})
	return a, err
}

// SaveSignature encodes the surface, keeps the result on the form and closes
// the signing view.
func (c *Controller) SaveSignature(id string) (signature.Artifact, error) {
	var a signature.Artifact
	err := c.with(id, func(s *session) error {
		var err error
		a, err = s.save()
		return err
	})
	return a, err
}

// CloseSurface closes the signing view without saving.
func (c *Controller) CloseSurface(id string) error {
	return c.with(id, func(s *session) error {
		s.surface = nil
		return nil
	})
}

// Submit sends the completed form. An open surface with ink is saved first.
// On success the session is removed once the acknowledgment delay passes; on
// failure it stays as it is so the visitor can try again.
func (c *Controller) Submit(ctx context.Context, id string, client engine.ClientInfo) (engine.Outcome, error) {
	var out engine.Outcome
	err := c.with(id, func(s *session) error {
		if err := s.fields.Validate(); err != nil {
			return err
		}
		if s.surface != nil && s.surface.HasInk() {
			if _, err := s.save(); err != nil {
				return err
			}
		}
		if s.saved == nil {
			return ErrNoSignature
		}

		out = c.submitter.Submit(ctx, s.fields, *s.saved, client)
		if out.OverallSuccess {
			s.done = true
			c.afterFunc(out.ResetAfter, func() { c.remove(id) })
		}
		return nil
	})
	return out, err
}

// Expire drops sessions that have been idle longer than idle and returns how
// many were removed.
func (c *Controller) Expire(now time.Time, idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, s := range c.sessions {
		// A locked session is in use right now.
		if !s.mu.TryLock() {
			continue
		}
		stale := now.Sub(s.lastActive) > idle
		s.mu.Unlock()
		if stale {
			delete(c.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Controller) remove(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
	slog.Debug("kiosk session reset", "session", id)
}

// with runs fn under the session lock.
func (c *Controller) with(id string, fn func(*session) error) error {
	c.mu.Lock()
	s, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrSessionNotFound
	}
	s.lastActive = c.now()
	return fn(s)
}

func (s *session) save() (signature.Artifact, error) {
	if s.surface == nil {
		return signature.Artifact{}, ErrNoSurface
	}
	if !s.surface.HasInk() {
		return signature.Artifact{}, ErrNoSignature
	}
	a, err := signature.EncodeFull(s.surface)
	if err != nil {
		return signature.Artifact{}, fmt.Errorf("encode signature: %w", err)
	}
	s.saved = &a
	s.surface = nil
	return a, nil
}
