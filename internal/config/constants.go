package config

import "time"

// Timeout constants
const (
	// DefaultStoreTimeout bounds every question/history store call so a hung
	// database never blocks a selection request; the resolver falls through to
	// the next tier instead.
	DefaultStoreTimeout = 3 * time.Second

	// DatabaseConnMaxLifetime is the default maximum connection lifetime
	DatabaseConnMaxLifetime = 5 * time.Minute

	// ServerShutdownTimeout bounds graceful shutdown
	ServerShutdownTimeout = 30 * time.Second

	// SessionMaxAge is the cookie session lifetime
	SessionMaxAge = 7 * 24 * time.Hour
)

// Rotation defaults
const (
	// DefaultRotationWindowDays is the trailing window during which a user's
	// answered questions are excluded from re-selection.
	DefaultRotationWindowDays = 50

	DefaultPart1MinQuestions = 4
	DefaultPart1MaxQuestions = 6
	DefaultPart3MinQuestions = 5
	DefaultPart3MaxQuestions = 7
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "speak-session"
)

// Security configuration constants
const (
	// DefaultCSP is the Content Security Policy applied by the secure middleware
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)
