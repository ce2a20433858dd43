package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/makromakina/kiosk/internal/admin"
	"github.com/makromakina/kiosk/internal/consent"
	"github.com/makromakina/kiosk/internal/kiosk"
	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/store"
)

// maxRequestBody is the maximum allowed request body size (8 MB). Signature
// data URLs at high pixel ratios are the largest payloads.
const maxRequestBody int64 = 8 << 20

// SessionCookie is the name of the admin session cookie.
const SessionCookie = "kiosk_admin_session"

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Kiosk      *kiosk.Controller
	Visitors   store.VisitorRepository
	Admins     *admin.Service
	Consent    *consent.Provider
	Location   *time.Location
	CORSOrigin string
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	kiosk      *kiosk.Controller
	visitors   store.VisitorRepository
	admins     *admin.Service
	consent    *consent.Provider
	loc        *time.Location
	corsOrigin string
	secure     bool
	now        func() time.Time
	mux        *http.ServeMux
}

// New creates a new API server.
func New(d Deps) *Server {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	origin := d.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	srv := &Server{
		kiosk:      d.Kiosk,
		visitors:   d.Visitors,
		admins:     d.Admins,
		consent:    d.Consent,
		loc:        loc,
		corsOrigin: origin,
		secure:     d.SecureCookies,
		now:        time.Now,
		mux:        http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/consent", s.handleConsent)

	// Kiosk
	s.mux.HandleFunc("POST /api/kiosk/sessions", s.handleOpenSession)
	s.mux.HandleFunc("PUT /api/kiosk/sessions/{id}", s.handleUpdateSession)
	s.mux.HandleFunc("POST /api/kiosk/sessions/{id}/surface", s.handleOpenSurface)
	s.mux.HandleFunc("DELETE /api/kiosk/sessions/{id}/surface", s.handleCloseSurface)
	s.mux.HandleFunc("POST /api/kiosk/sessions/{id}/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/kiosk/sessions/{id}/clear", s.handleClear)
	s.mux.HandleFunc("POST /api/kiosk/sessions/{id}/signature", s.handleSaveSignature)
	s.mux.HandleFunc("GET /api/kiosk/sessions/{id}/signature.png", s.handlePreview)
	s.mux.HandleFunc("POST /api/kiosk/sessions/{id}/submit", s.handleSubmit)
	s.mux.HandleFunc("POST /api/submit-form", s.handleSubmitForm)

	// Admin
	s.mux.HandleFunc("POST /api/admin/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/admin/logout", s.handleLogout)
	s.mux.Handle("GET /api/admin/session", s.requireAdmin(s.handleCurrentSession))
	s.mux.Handle("POST /api/admin/register", s.requireAdmin(s.handleRegister))
	s.mux.Handle("POST /api/admin/change-password", s.requireAdmin(s.handleChangePassword))
	s.mux.Handle("GET /api/admin/visitors", s.requireAdmin(s.handleListVisitors))
	s.mux.Handle("GET /api/admin/visitors/export", s.requireAdmin(s.handleExportVisitors))
	s.mux.Handle("GET /api/admin/visitors/{id}", s.requireAdmin(s.handleGetVisitor))
	s.mux.Handle("DELETE /api/admin/visitors/{id}", s.requireAdmin(s.handleDeleteVisitor))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for the configured origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if s.corsOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

// requireAdmin rejects requests without a valid admin session and stores the
// session in the request context.
func (s *Server) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.admins.Authenticate(r.Context(), sessionToken(r))
		if errors.Is(err, admin.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check session")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func currentSession(r *http.Request) model.Session {
	sess, _ := r.Context().Value(sessionKey{}).(model.Session)
	return sess
}

// sessionToken reads the token from the session cookie or a bearer header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// clientIP picks the caller address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": verr.Fields,
	})
}
