package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/makromakina/kiosk/internal/admin"
	"github.com/makromakina/kiosk/internal/api"
	"github.com/makromakina/kiosk/internal/config"
	"github.com/makromakina/kiosk/internal/consent"
	"github.com/makromakina/kiosk/internal/engine"
	"github.com/makromakina/kiosk/internal/kiosk"
	"github.com/makromakina/kiosk/internal/store"
	"github.com/makromakina/kiosk/internal/worker"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	loc := cfg.Location()

	// Open the database.
	db, err := store.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// Initialize store.
	var opts []store.Option
	if cfg.DBDriver == store.DriverPostgres {
		opts = append(opts, store.WithPostgres())
	}
	s, err := store.New(db, opts...)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	admins := admin.NewService(s, cfg.SessionTTL)
	if err := admins.SeedInitialAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Warn("seed initial admin", "error", err)
	}

	// Build submission dependencies.
	creds := engine.Credentials{
		ServiceID:  cfg.EmailJSServiceID,
		TemplateID: cfg.EmailJSTemplateID,
		PublicKey:  cfg.EmailJSPublicKey,
		PrivateKey: cfg.EmailJSPrivateKey,
	}
	var notifier engine.Notifier
	switch cfg.Notifier {
	case "log":
		slog.Info("using log notifier")
		notifier = engine.LogNotifier{}
	default:
		if !creds.Complete() {
			slog.Warn("EmailJS configuration incomplete, notifications will fail")
		}
		notifier = engine.NewEmailJSClient(
			engine.WithBaseURL(cfg.EmailJSBaseURL),
			engine.WithHTTPTimeout(cfg.HTTPTimeout),
		)
	}

	coord := engine.NewCoordinator(notifier, s, creds,
		engine.WithThumbnailBounds(cfg.ThumbnailMaxWidth, cfg.ThumbnailMaxHeight),
		engine.WithResetDelay(cfg.ResetDelay),
		engine.WithCompany(cfg.CompanyName, cfg.FormType),
		engine.WithLocation(loc),
	)
	controller := kiosk.NewController(coord, kiosk.WithMaxSessions(cfg.KioskMaxSessions))

	// Start sweeper in background.
	sweeper := worker.New(s, controller, cfg.KioskIdleTimeout, cfg.SweepInterval)
	go sweeper.Start(ctx)

	// Start API server.
	srv := api.New(api.Deps{
		Kiosk:         controller,
		Visitors:      s,
		Admins:        admins,
		Consent:       consent.NewProvider(cfg.ConsentURL, time.Hour),
		Location:      loc,
		CORSOrigin:    cfg.CORSOrigin,
		SecureCookies: cfg.SecureCookies,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("kiosk server listening", "addr", "http://localhost:"+cfg.Port, "db", cfg.DBDriver)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
