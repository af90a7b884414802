package command

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/infra/buildinfo"
	"github.com/yndnr/sessionguard/internal/infra/confloader"
	"github.com/yndnr/sessionguard/internal/infra/shutdown"
	"github.com/yndnr/sessionguard/internal/infra/tlscert"
	"github.com/yndnr/sessionguard/internal/server/config"
	"github.com/yndnr/sessionguard/internal/server/httpserver"
	"github.com/yndnr/sessionguard/internal/storage/memory"
	"github.com/yndnr/sessionguard/internal/telemetry/logger"
	"github.com/yndnr/sessionguard/internal/telemetry/metric"
)

// pruneInterval is how often idle rate limiters are dropped.
const pruneInterval = time.Minute

// ServeCommand starts the HTTP server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the server (default)",
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	opts, err := loaderOptions(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfigWith(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting sessionguard-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", c.String("config"))
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	srv, err := newServer(c.Context, cfg, log)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	sh := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)
	srv.registerHooks(sh)

	if path := c.String("config"); path != "" {
		stop, err := watchLogLevel(path, opts, log)
		if err != nil {
			log.Warn("config watch disabled", "path", path, "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	go func() {
		log.Info("HTTP server listening", "addr", ln.Addr().String(), "tls", srv.http.TLSEnabled())
		if err := srv.http.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			sh.Trigger()
		}
	}()

	if err := sh.Wait(c.Context); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// server owns every long-lived component of a running instance.
type server struct {
	cfg        *config.ServerConfig
	logger     *slog.Logger
	sessions   *memory.SessionStore
	identities *identity.Store
	accounts   *service.AccountService
	limiters   *service.RateLimiterRegistry
	metrics    *metric.Registry
	certs      *tlscert.Reloader
	handler    http.Handler
	http       *httpserver.Server

	draining  atomic.Bool
	stopPrune context.CancelFunc
}

// newServer wires storage, the identity store, services and the HTTP
// stack, and starts the background sweeper and limiter pruning.
func newServer(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: log}

	var recorder service.Recorder = service.NopRecorder{}
	var observer httpserver.HTTPObserver
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		s.metrics = metric.NewRegistry()
		recorder = s.metrics
		observer = s.metrics
		metricsHandler = s.metrics.Handler()
	}

	s.sessions = memory.New(
		memory.WithLogger(log.With("component", "session-store")),
		memory.WithSweepInterval(cfg.Session.SweepInterval),
	)
	s.identities = identity.NewStore(s.sessions,
		identity.WithLogger(log.With("component", "identity")),
		identity.WithEvictionHook(func(accountID, evictedSessionID string) {
			recorder.RecordEviction()
		}),
	)
	service.NewLifecycleReaper(s.identities, recorder, log.With("component", "reaper")).Attach(s.sessions)

	if s.metrics != nil {
		err := s.metrics.Register(metric.NewCollector(metric.StateSource{
			Bindings:             s.identities.Count,
			Sessions:             s.sessions.Count,
			MultiSessionAccounts: s.sessions.MultiSessionAccounts,
		}))
		if err != nil {
			return nil, fmt.Errorf("register collectors: %w", err)
		}
	}

	s.accounts = service.NewAccountService(service.AccountServiceDeps{
		Accounts:   memory.NewAccountStore(),
		Sessions:   s.sessions,
		Identities: s.identities,
		Hasher:     newHasher(cfg),
		Recorder:   recorder,
		Logger:     log.With("component", "accounts"),
	}, &service.AccountServiceConfig{
		Window:     cfg.Session.Window,
		LoginRate:  cfg.Security.LoginRate,
		LoginBurst: cfg.Security.LoginBurst,
	})

	if cfg.Admin.Username != "" {
		created, err := s.accounts.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.Info("admin account created", "username", cfg.Admin.Username)
		}
	}

	httpCfg := cfg.Server.HTTP
	if httpCfg.RateLimit > 0 {
		s.limiters = service.NewRateLimiterRegistry(rate.Limit(httpCfg.RateLimit), httpCfg.RateBurst, 10*time.Minute)
	}

	s.handler = httpserver.NewRouter(&httpserver.RouterConfig{
		Accounts: s.accounts,
		Sessions: s.sessions,
		Gate:     service.NewAuthGate(s.identities, recorder),
		Refresher: service.NewExpiryRefresher(s.sessions, service.ExpiryRefresherConfig{
			Window:   cfg.Session.Window,
			Recorder: recorder,
			Logger:   log.With("component", "refresher"),
		}),
		Limiters:           s.limiters,
		Observer:           observer,
		Metrics:            metricsHandler,
		Ready:              s.ready,
		Logger:             log,
		PublicPaths:        httpserver.DefaultPublicPaths(),
		CORSAllowedOrigins: httpCfg.CORSAllowedOrigins,
		TrustProxy:         httpCfg.TrustProxy,
		CookieName:         cfg.Session.CookieName,
		CookieSecure:       cfg.Session.CookieSecure,
	})

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Addr = httpCfg.Addr
	if httpCfg.TLSCertFile != "" && httpCfg.TLSKeyFile != "" {
		certs, err := tlscert.New(httpCfg.TLSCertFile, httpCfg.TLSKeyFile,
			tlscert.WithLogger(log.With("component", "tls")))
		if err != nil {
			return nil, err
		}
		if err := certs.Start(); err != nil {
			log.Warn("certificate hot reload disabled", "error", err)
		}
		s.certs = certs
		serverCfg.GetCertificate = certs.GetCertificate
	}
	serverCfg.ReadTimeout = httpCfg.ReadTimeout
	serverCfg.WriteTimeout = httpCfg.WriteTimeout
	serverCfg.IdleTimeout = httpCfg.IdleTimeout
	s.http = httpserver.New(serverCfg, s.handler)

	s.sessions.Start()
	pruneCtx, cancel := context.WithCancel(context.Background())
	s.stopPrune = cancel
	go s.pruneLoop(pruneCtx)

	return s, nil
}

// ready fails once shutdown has begun so load balancers stop routing here.
func (s *server) ready(context.Context) error {
	if s.draining.Load() {
		return domain.ErrUnavailable.WithDetails("shutting down")
	}
	return nil
}

// registerHooks adds shutdown hooks. Hooks run in reverse order, so the
// HTTP server drains before storage closes.
func (s *server) registerHooks(sh *shutdown.Handler) {
	sh.OnShutdown("session-store", func(context.Context) error {
		return s.sessions.Close()
	})
	if s.certs != nil {
		sh.OnShutdown("tls-reloader", func(context.Context) error {
			return s.certs.Stop()
		})
	}
	sh.OnShutdown("limiter-prune", func(context.Context) error {
		s.stopPrune()
		return nil
	})
	sh.OnShutdown("http", func(ctx context.Context) error {
		s.draining.Store(true)
		return s.http.Shutdown(ctx)
	})
}

// close stops background work without going through a shutdown handler.
func (s *server) close() error {
	s.stopPrune()
	if s.certs != nil {
		_ = s.certs.Stop()
	}
	return s.sessions.Close()
}

func (s *server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.accounts.Limiter().Prune()
			if s.limiters != nil {
				n += s.limiters.Prune()
			}
			if n > 0 {
				s.logger.Debug("pruned idle rate limiters", "count", n)
			}
		}
	}
}

// watchLogLevel reloads the configuration whenever path changes and applies
// a changed log level. Other settings need a restart.
func watchLogLevel(path string, opts []confloader.Option, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		cfg, err := loadConfigWith(opts)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		prev := logger.Level()
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if cur := logger.Level(); cur != prev {
			log.Info("log level changed", "level", cur)
		}
	})
	w.StartAsync()

	return w.Stop, nil
}
