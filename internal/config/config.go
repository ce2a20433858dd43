// Package config provides centralized configuration for the kiosk server.
// All configurable values are loaded from environment variables with sensible
// defaults. Values from .env.local and .env fill in whatever the real
// environment leaves unset.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBDriver selects the database: "sqlite" or "postgres".
	DBDriver string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// Notifier selects the notification backend: "emailjs" or "log".
	Notifier string

	EmailJSServiceID  string
	EmailJSTemplateID string
	EmailJSPublicKey  string
	EmailJSPrivateKey string
	EmailJSBaseURL    string

	CompanyName string
	FormType    string

	// ThumbnailMaxWidth and ThumbnailMaxHeight bound the notification image.
	ThumbnailMaxWidth  int
	ThumbnailMaxHeight int

	// ResetDelay is how long the kiosk shows the success message.
	ResetDelay time.Duration

	// SessionTTL is the lifetime of an admin session.
	SessionTTL time.Duration

	// KioskIdleTimeout drops kiosk forms left untouched for this long.
	KioskIdleTimeout time.Duration

	// KioskMaxSessions caps the kiosk forms held in memory at once.
	KioskMaxSessions int

	// SweepInterval is how often expired sessions are cleaned up.
	SweepInterval time.Duration

	// HTTPTimeout is the timeout for outgoing HTTP requests (notification, consent page).
	HTTPTimeout time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// SecureCookies marks the admin cookie Secure.
	SecureCookies bool

	// ConsentURL, when set, is a page whose text replaces the built-in notice.
	ConsentURL string

	// AdminEmail and AdminPassword seed the first admin account.
	AdminEmail    string
	AdminPassword string

	// Timezone is used for notification timestamps, date filters and exports.
	Timezone string

	LogLevel string
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	loadEnvFile(".env.local")
	loadEnvFile(".env")

	return Config{
		Port:               envOr("PORT", "8080"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBPath:             envOr("DB_PATH", "kiosk.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Notifier:           envOr("NOTIFIER", "emailjs"),
		EmailJSServiceID:   os.Getenv("EMAILJS_SERVICE_ID"),
		EmailJSTemplateID:  os.Getenv("EMAILJS_TEMPLATE_ID"),
		EmailJSPublicKey:   os.Getenv("EMAILJS_PUBLIC_KEY"),
		EmailJSPrivateKey:  os.Getenv("EMAILJS_PRIVATE_KEY"),
		EmailJSBaseURL:     envOr("EMAILJS_BASE_URL", "https://api.emailjs.com"),
		CompanyName:        envOr("COMPANY_NAME", "Makro Makina"),
		FormType:           envOr("FORM_TYPE", "Ziyaretçi Kayıt Formu"),
		ThumbnailMaxWidth:  envInt("THUMBNAIL_MAX_WIDTH", 200),
		ThumbnailMaxHeight: envInt("THUMBNAIL_MAX_HEIGHT", 100),
		ResetDelay:         envDuration("RESET_DELAY", 3*time.Second),
		SessionTTL:         envDuration("SESSION_TTL", 8*time.Hour),
		KioskIdleTimeout:   envDuration("KIOSK_IDLE_TIMEOUT", 30*time.Minute),
		KioskMaxSessions:   envInt("KIOSK_MAX_SESSIONS", 32),
		SweepInterval:      envDuration("SWEEP_INTERVAL", 5*time.Minute),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 15*time.Second),
		CORSOrigin:         envOr("CORS_ORIGIN", "*"),
		SecureCookies:      envBool("COOKIE_SECURE", false),
		ConsentURL:         os.Getenv("CONSENT_URL"),
		AdminEmail:         os.Getenv("ADMIN_EMAIL"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		Timezone:           envOr("TIMEZONE", "Europe/Istanbul"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}
}

// DSN returns the data source for the selected driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvFile loads KEY=VALUE pairs from path without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
