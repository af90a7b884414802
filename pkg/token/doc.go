// Package token provides random credential generation and constant-time comparison.
package token
