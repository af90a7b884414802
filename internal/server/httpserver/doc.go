// Package httpserver provides the HTTP/HTTPS server for sessionguard.
//
// Routes:
//
//   - Auth endpoints: /auth/register, /auth/login, /auth/logout, /auth/info, /auth/password
//   - Health endpoints: /health, /ready, /metrics
//
// Every request passes through the same middleware chain. The session is
// looked up from the SGSESSION cookie or the X-Session-ID header, its
// deadline is refreshed, and unless the path is public the auth gate
// checks the bearer token against it. Any rejection is answered with the
// same 401 body; the reason is only logged and counted.
package httpserver
