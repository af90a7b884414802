package httpserver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/internal/core/identity"
	"github.com/yndnr/sessionguard/internal/core/service"
	"github.com/yndnr/sessionguard/internal/server/httpserver/handler"
	"github.com/yndnr/sessionguard/internal/storage/memory"
)

const testWindow = 300 * time.Second

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock      *testClock
	sessions   *memory.SessionStore
	identities *identity.Store
	handler    http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	log := discardLogger()
	sessions := memory.New(memory.WithClock(clock.Now), memory.WithLogger(log))
	identities := identity.NewStore(sessions, identity.WithStrictChecks(), identity.WithLogger(log))

	reaper := service.NewLifecycleReaper(identities, nil, log)
	reaper.Attach(sessions)

	accounts := service.NewAccountService(service.AccountServiceDeps{
		Accounts:   memory.NewAccountStore(),
		Sessions:   sessions,
		Identities: identities,
		Hasher: service.NewPasswordHasher(&service.PasswordHasherConfig{
			Memory:      1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		}),
		Logger: log,
	}, &service.AccountServiceConfig{
		Window:     testWindow,
		LoginRate:  100,
		LoginBurst: 100,
		Now:        clock.Now,
	})

	cfg := DefaultRouterConfig()
	cfg.Accounts = accounts
	cfg.Sessions = sessions
	cfg.Gate = service.NewAuthGate(identities, nil)
	cfg.Refresher = service.NewExpiryRefresher(sessions, service.ExpiryRefresherConfig{
		Window: testWindow,
		Now:    clock.Now,
		Logger: log,
	})
	cfg.Logger = log
	cfg.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "# metrics\n")
	})

	return &testEnv{
		clock:      clock,
		sessions:   sessions,
		identities: identities,
		handler:    NewRouter(cfg),
	}
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

type credentials struct {
	token     string
	sessionID string
}

func (e *testEnv) do(t *testing.T, method, path string, body any, creds *credentials) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil {
		if creds.token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.token)
		}
		if creds.sessionID != "" {
			req.Header.Set(HeaderSessionID, creds.sessionID)
		}
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec, env
}

func (e *testEnv) register(t *testing.T, username string) {
	t.Helper()
	rec, env := e.do(t, "POST", "/auth/register", handler.RegisterRequest{
		Username: username,
		Password: "secret123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, code %s", username, rec.Code, env.Code)
	}
}

func (e *testEnv) login(t *testing.T, username string) *credentials {
	t.Helper()
	rec, env := e.do(t, "POST", "/auth/login", handler.LoginRequest{
		Username: username,
		Password: "secret123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d, code %s", username, rec.Code, env.Code)
	}
	var resp handler.LoginResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	return &credentials{token: resp.Token, sessionID: resp.SessionID}
}

func assertGenericRejection(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if body["code"] != domain.ErrUnauthenticated.Code || body["message"] != "please log in again" {
		t.Errorf("rejection body = %v", body)
	}
}

func TestRouter_LoginAndInfo(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	rec, env := e.do(t, "POST", "/auth/login", handler.LoginRequest{Username: "alice", Password: "secret123"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultSessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v, want HttpOnly %s", cookie, DefaultSessionCookie)
	}

	var login handler.LoginResponse
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if cookie.Value != login.SessionID {
		t.Errorf("cookie value = %q, want session id %q", cookie.Value, login.SessionID)
	}
	if !domain.ValidateTokenFormat(login.Token) {
		t.Errorf("token %q is malformed", domain.MaskToken(login.Token))
	}

	// Session via cookie, token via bearer header.
	req := httptest.NewRequest("GET", "/auth/info", nil)
	req.AddCookie(cookie)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d, body %s", rec.Code, rec.Body.String())
	}

	var info envelope
	json.Unmarshal(rec.Body.Bytes(), &info)
	var account handler.AccountResponse
	if err := json.Unmarshal(info.Data, &account); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if account.Username != "alice" || account.Role != "user" {
		t.Errorf("info = %+v", account)
	}
}

func TestRouter_LoginFailures(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"wrong password", handler.LoginRequest{Username: "alice", Password: "wrong1234"}, http.StatusUnauthorized},
		{"unknown user", handler.LoginRequest{Username: "nobody", Password: "secret123"}, http.StatusUnauthorized},
		{"unknown field", map[string]string{"username": "alice", "pass": "x"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := e.do(t, "POST", "/auth/login", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_RegisterConflict(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	rec, env := e.do(t, "POST", "/auth/register", handler.RegisterRequest{Username: "alice", Password: "secret123"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if env.Code != domain.ErrAccountConflict.Code {
		t.Errorf("code = %s, want %s", env.Code, domain.ErrAccountConflict.Code)
	}
}

// A second login evicts the first; the first device is told to log in again.
func TestRouter_SecondLoginEvictsFirst(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")

	first := e.login(t, "alice")
	second := e.login(t, "alice")

	rec, _ := e.do(t, "GET", "/auth/info", nil, first)
	assertGenericRejection(t, rec)

	rec, _ = e.do(t, "GET", "/auth/info", nil, second)
	if rec.Code != http.StatusOK {
		t.Errorf("second device status = %d, want 200", rec.Code)
	}

	if _, err := e.sessions.Get(context.Background(), first.sessionID); err == nil {
		t.Error("evicted session still in storage")
	}
	if e.identities.Count() != 1 {
		t.Errorf("bindings = %d, want 1", e.identities.Count())
	}
}

func TestRouter_RejectionsLookAlike(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	e.register(t, "bob")
	alice := e.login(t, "alice")
	bob := e.login(t, "bob")

	tests := []struct {
		name  string
		creds *credentials
	}{
		{"no credentials", nil},
		{"session without token", &credentials{sessionID: alice.sessionID}},
		{"token without session", &credentials{token: alice.token}},
		{"unknown token", &credentials{token: "sgtk_" + "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", sessionID: alice.sessionID}},
		{"foreign token", &credentials{token: bob.token, sessionID: alice.sessionID}},
		{"unknown session", &credentials{token: alice.token, sessionID: "sgss-01hzzzzzzzzzzzzzzzzzzzzzzz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := e.do(t, "GET", "/auth/info", nil, tt.creds)
			assertGenericRejection(t, rec)
		})
	}
}

func TestRouter_PublicPaths(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec, _ := e.do(t, "GET", path, nil, nil)
			if rec.Code != http.StatusOK {
				t.Errorf("GET %s = %d, want 200", path, rec.Code)
			}
		})
	}

	t.Run("prefix does not match", func(t *testing.T) {
		rec, _ := e.do(t, "GET", "/health/deep", nil, nil)
		assertGenericRejection(t, rec)
	})
}

func TestRouter_Logout(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	creds := e.login(t, "alice")

	rec, _ := e.do(t, "POST", "/auth/logout", nil, creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if e.identities.Count() != 0 {
		t.Errorf("bindings after logout = %d, want 0", e.identities.Count())
	}
	if e.sessions.Count() != 0 {
		t.Errorf("sessions after logout = %d, want 0", e.sessions.Count())
	}

	rec, _ = e.do(t, "GET", "/auth/info", nil, creds)
	assertGenericRejection(t, rec)
}

func TestRouter_ChangePasswordEndsSession(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	creds := e.login(t, "alice")

	rec, env := e.do(t, "POST", "/auth/password", handler.ChangePasswordRequest{
		OldPassword: "wrong1234",
		NewPassword: "newpass456",
	}, creds)
	if rec.Code != http.StatusBadRequest || env.Code != domain.ErrPasswordMismatch.Code {
		t.Fatalf("wrong old password: status %d code %s", rec.Code, env.Code)
	}

	rec, _ = e.do(t, "POST", "/auth/password", handler.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newpass456",
	}, creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d", rec.Code)
	}

	rec, _ = e.do(t, "GET", "/auth/info", nil, creds)
	assertGenericRejection(t, rec)

	rec, _ = e.do(t, "POST", "/auth/login", handler.LoginRequest{Username: "alice", Password: "newpass456"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password = %d", rec.Code)
	}
}

func TestRouter_SlidingExpiry(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	creds := e.login(t, "alice")

	// 250s in, 50s remain: below a third of the window.
	e.clock.Advance(250 * time.Second)
	rec, _ := e.do(t, "GET", "/auth/info", nil, creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}

	session, err := e.sessions.Get(context.Background(), creds.sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := e.clock.Now().Add(testWindow).UnixMilli()
	if session.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", session.ExpiresAt, want)
	}

	// Still alive well past the original deadline.
	e.clock.Advance(200 * time.Second)
	rec, _ = e.do(t, "GET", "/auth/info", nil, creds)
	if rec.Code != http.StatusOK {
		t.Errorf("info after refresh = %d, want 200", rec.Code)
	}
}

func TestRouter_PublicPathRefreshesSession(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	creds := e.login(t, "alice")

	e.clock.Advance(250 * time.Second)
	rec, _ := e.do(t, "GET", "/health", nil, &credentials{sessionID: creds.sessionID})
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	session, err := e.sessions.Get(context.Background(), creds.sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := session.Remaining(e.clock.Now()); got != testWindow {
		t.Errorf("remaining = %v, want %v", got, testWindow)
	}
}

// Storage expiry unbinds the account; the stale token no longer works.
func TestRouter_ExpiredSessionIsReaped(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "alice")
	creds := e.login(t, "alice")

	e.clock.Advance(testWindow + time.Second)
	if n := e.sessions.SweepExpired(); n != 1 {
		t.Fatalf("SweepExpired = %d, want 1", n)
	}
	if e.identities.Count() != 0 {
		t.Errorf("bindings after expiry = %d, want 0", e.identities.Count())
	}
	if _, ok := e.identities.ResolveSessionIDByToken(creds.token); ok {
		t.Error("expired token still resolves")
	}

	rec, _ := e.do(t, "GET", "/auth/info", nil, creds)
	assertGenericRejection(t, rec)
}

func TestRouter_ConcurrentRequestsAreIsolated(t *testing.T) {
	e := newTestEnv(t)
	users := []string{"alice", "bob", "carol", "dave"}
	creds := make(map[string]*credentials, len(users))
	for _, u := range users {
		e.register(t, u)
		creds[u] = e.login(t, u)
	}

	var wg sync.WaitGroup
	errs := make(chan string, len(users)*20)
	for _, u := range users {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				req := httptest.NewRequest("GET", "/auth/info", nil)
				req.Header.Set("Authorization", "Bearer "+creds[u].token)
				req.Header.Set(HeaderSessionID, creds[u].sessionID)
				rec := httptest.NewRecorder()
				e.handler.ServeHTTP(rec, req)

				var env envelope
				json.Unmarshal(rec.Body.Bytes(), &env)
				var account handler.AccountResponse
				json.Unmarshal(env.Data, &account)
				if account.Username != u {
					errs <- u + " saw " + account.Username
				}
			}(u)
		}
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := New(nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	if s.TLSEnabled() {
		t.Error("TLS enabled without certificates")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve returned %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestServer_TLSEnabled(t *testing.T) {
	getCert := func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return nil, nil }
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"plain", Config{}, false},
		{"files", Config{TLSCertFile: "a.crt", TLSKeyFile: "a.key"}, true},
		{"cert only", Config{TLSCertFile: "a.crt"}, false},
		{"callback", Config{GetCertificate: getCert}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(&tt.cfg, http.NotFoundHandler()).TLSEnabled(); got != tt.want {
				t.Errorf("TLSEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServer_ServeTLSWithGetCertificate(t *testing.T) {
	// Borrow httptest's certificate and a client that trusts it.
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	defer ts.Close()
	cert := ts.TLS.Certificates[0]

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(&Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return &cert, nil },
	}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(ln)
	}()

	resp, err := ts.Client().Get("https://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	if err := <-errChan; err != nil {
		t.Errorf("Serve returned %v", err)
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg.CookieName != DefaultSessionCookie {
		t.Errorf("CookieName = %q", cfg.CookieName)
	}
	public := make(map[string]bool)
	for _, p := range cfg.PublicPaths {
		public[p] = true
	}
	for _, p := range []string{"/auth/login", "/auth/register", "/health"} {
		if !public[p] {
			t.Errorf("%s should be public", p)
		}
	}
	if public["/auth/info"] || public["/auth/logout"] {
		t.Error("authenticated routes must not be public")
	}
}
