package tlscert

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the reloader waits after the last change
// before reading the key pair again.
const DefaultDebounce = 500 * time.Millisecond

// Reloader serves a TLS certificate and swaps it when the certificate or
// key file changes on disk. A failed reload keeps the previous pair.
type Reloader struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]

	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending *time.Timer
	started bool
	done    chan struct{}
	once    sync.Once
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the logger for the reloader.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reloader) {
		r.logger = logger
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		r.debounce = d
	}
}

// New loads the key pair and returns a Reloader serving it.
func New(certFile, keyFile string, opts ...Option) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlscert: initial load: %w", err)
	}
	return r, nil
}

// GetCertificate returns the current certificate.
// It implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}

// Reload reads the key pair from disk and makes it current.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.cert.Store(&cert)
	return nil
}

// Start watches the directories holding the certificate and key, so that
// renames done by renewal tools are seen too. It returns once watching
// has begun.
func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("tlscert: already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlscert: create watcher: %w", err)
	}

	certDir, keyDir := filepath.Dir(r.certFile), filepath.Dir(r.keyFile)
	if err := watcher.Add(certDir); err != nil {
		watcher.Close()
		return fmt.Errorf("tlscert: watch %s: %w", certDir, err)
	}
	if keyDir != certDir {
		if err := watcher.Add(keyDir); err != nil {
			watcher.Close()
			return fmt.Errorf("tlscert: watch %s: %w", keyDir, err)
		}
	}

	r.watcher = watcher
	r.started = true
	go r.loop()

	r.logger.Info("certificate watcher started", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

func (r *Reloader) loop() {
	certAbs, _ := filepath.Abs(r.certFile)
	keyAbs, _ := filepath.Abs(r.keyFile)

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(event.Name)
			if name != certAbs && name != keyAbs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			r.schedule()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)

		case <-r.done:
			return
		}
	}
}

// schedule coalesces bursts of events into a single reload.
func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = time.AfterFunc(r.debounce, func() {
		if err := r.Reload(); err != nil {
			r.logger.Error("certificate reload failed", "error", err, "cert_file", r.certFile)
			return
		}
		r.logger.Info("certificate reloaded", "cert_file", r.certFile)
	})
}

// Stop ends watching. It is safe to call more than once.
func (r *Reloader) Stop() error {
	var err error
	r.once.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.pending != nil {
			r.pending.Stop()
		}
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})
	return err
}
