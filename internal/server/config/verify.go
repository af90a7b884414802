package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/telemetry/logger"
)

// minSessionWindow keeps the refresh threshold (a third of the window) above a second.
const minSessionWindow = 3 * time.Second

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyHTTP(&cfg.Server.HTTP); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if err := verifyAdmin(&cfg.Admin); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyHTTP(cfg *HTTPConfig) error {
	if cfg.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("server.http.addr %q: %w", cfg.Addr, err)
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("tls file: %w", err)
		}
	}

	if cfg.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.Window < minSessionWindow {
		return fmt.Errorf("session.window must be at least %s", minSessionWindow)
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	if cfg.CookieName == "" || strings.ContainsAny(cfg.CookieName, " ;,=") {
		return fmt.Errorf("session.cookie_name %q is invalid", cfg.CookieName)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.Argon2Memory < 1024 {
		return errors.New("security.argon2_memory must be at least 1024 KiB")
	}
	if cfg.Argon2Iterations < 1 || cfg.Argon2Parallelism < 1 {
		return errors.New("security.argon2_iterations and argon2_parallelism must be at least 1")
	}
	if cfg.LoginRate < 0 {
		return errors.New("security.login_rate must not be negative")
	}
	if cfg.LoginRate > 0 && cfg.LoginBurst < 1 {
		return errors.New("security.login_burst must be at least 1")
	}
	return nil
}

func verifyAdmin(cfg *AdminSection) error {
	if cfg.Username == "" && cfg.Password == "" {
		return nil
	}
	if err := domain.ValidateUsername(cfg.Username); err != nil {
		return fmt.Errorf("admin.username: %w", err)
	}
	if err := domain.ValidatePassword(cfg.Password); err != nil {
		return fmt.Errorf("admin.password: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format %q is invalid", cfg.Format)
	}
}
