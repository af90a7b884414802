package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address.
	Addr string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// GetCertificate, when set, supplies the certificate for every handshake
	// and takes precedence over the files.
	GetCertificate func(*tls.ClientHelloInfo) (*tls.Certificate, error)

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns server defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:              "127.0.0.1:8080",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        Config
}

// New creates a new HTTP server.
func New(cfg *Config, handler http.Handler) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			TLSConfig: &tls.Config{
				MinVersion:     tls.VersionTLS12,
				GetCertificate: cfg.GetCertificate,
			},
		},
		cfg: *cfg,
	}
}

// TLSEnabled reports whether the server serves HTTPS.
func (s *Server) TLSEnabled() bool {
	return s.cfg.GetCertificate != nil || (s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "")
}

// Serve accepts connections on ln until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	switch {
	case s.cfg.GetCertificate != nil:
		err = s.httpServer.ServeTLS(ln, "", "")
	case s.TLSEnabled():
		err = s.httpServer.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	default:
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
