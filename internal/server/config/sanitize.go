package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Server.HTTP.CORSAllowedOrigins = append([]string(nil), cfg.Server.HTTP.CORSAllowedOrigins...)

	if sanitized.Security.Pepper != "" {
		sanitized.Security.Pepper = maskSecret(sanitized.Security.Pepper)
	}
	if sanitized.Admin.Password != "" {
		sanitized.Admin.Password = "****"
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
