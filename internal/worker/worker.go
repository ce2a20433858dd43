package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionPurger deletes admin sessions whose expiry has passed.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// KioskExpirer drops abandoned kiosk forms.
type KioskExpirer interface {
	Expire(now time.Time, idle time.Duration) int
}

// Sweeper periodically removes expired admin sessions and idle kiosk forms.
type Sweeper struct {
	sessions SessionPurger
	kiosk    KioskExpirer
	idle     time.Duration
	interval time.Duration
	now      func() time.Time
}

// New creates a new Sweeper. Kiosk forms idle longer than idle are dropped.
func New(sessions SessionPurger, kiosk KioskExpirer, idle, interval time.Duration) *Sweeper {
	return &Sweeper{sessions: sessions, kiosk: kiosk, idle: idle, interval: interval, now: time.Now}
}

// Start begins the sweep loop. It blocks until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	slog.Info("sweeper started", "interval", w.interval.String())
	for {
		w.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-time.After(w.interval):
		}
	}
}

// SweepOnce runs a single pass.
func (w *Sweeper) SweepOnce(ctx context.Context) {
	if w.sessions != nil {
		n, err := w.sessions.DeleteExpiredSessions(ctx)
		if err != nil {
			slog.Error("sweep admin sessions", "error", err)
		} else if n > 0 {
			slog.Info("expired admin sessions removed", "count", n)
		}
	}
	if w.kiosk != nil {
		if n := w.kiosk.Expire(w.now(), w.idle); n > 0 {
			slog.Info("idle kiosk sessions removed", "count", n)
		}
	}
}
