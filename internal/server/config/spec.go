// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for sessionguard-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Session  SessionSection  `koanf:"session"`
	Security SecuritySection `koanf:"security"`
	Admin    AdminSection    `koanf:"admin"`
	Metrics  MetricsSection  `koanf:"metrics"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// TrustProxy honors X-Forwarded-For and X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = allow all).
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimit is the per-IP request rate (requests/second). 0 disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// SessionSection configures session lifetime and transport.
type SessionSection struct {
	// Window is the inactivity window. A session is refreshed back to the
	// full window once less than a third of it remains.
	Window time.Duration `koanf:"window"`

	// SweepInterval is how often expired sessions are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	CookieName   string `koanf:"cookie_name"`
	CookieSecure bool   `koanf:"cookie_secure"`
}

// SecuritySection configures password hashing and login throttling.
type SecuritySection struct {
	// Pepper is mixed into every password hash. Changing it invalidates all passwords.
	Pepper string `koanf:"pepper"`

	Argon2Memory      uint32 `koanf:"argon2_memory"`
	Argon2Iterations  uint32 `koanf:"argon2_iterations"`
	Argon2Parallelism uint8  `koanf:"argon2_parallelism"`

	// LoginRate is the login attempt rate per username and client (attempts/second).
	LoginRate  float64 `koanf:"login_rate"`
	LoginBurst int     `koanf:"login_burst"`
}

// AdminSection bootstraps an admin account at startup. Both fields empty skips it.
type AdminSection struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
}

// LogSection configures logging.
type LogSection struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	AddSource bool   `koanf:"add_source"`
}
