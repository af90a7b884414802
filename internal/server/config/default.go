package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRateLimit       = 50
	DefaultRateBurst       = 100

	DefaultSessionWindow = 20 * time.Minute
	DefaultSweepInterval = 30 * time.Second
	DefaultCookieName    = "SGSESSION"

	DefaultArgon2Memory      = 16 * 1024
	DefaultArgon2Iterations  = 2
	DefaultArgon2Parallelism = 2
	DefaultLoginRate         = 0.2
	DefaultLoginBurst        = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				IdleTimeout:     DefaultIdleTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				RateLimit:       DefaultRateLimit,
				RateBurst:       DefaultRateBurst,
			},
		},
		Session: SessionSection{
			Window:        DefaultSessionWindow,
			SweepInterval: DefaultSweepInterval,
			CookieName:    DefaultCookieName,
		},
		Security: SecuritySection{
			Argon2Memory:      DefaultArgon2Memory,
			Argon2Iterations:  DefaultArgon2Iterations,
			Argon2Parallelism: DefaultArgon2Parallelism,
			LoginRate:         DefaultLoginRate,
			LoginBurst:        DefaultLoginBurst,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
