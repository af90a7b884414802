package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasherConfig holds argon2id parameters.
type PasswordHasherConfig struct {
	// Memory in KiB (default: 16384).
	Memory uint32

	// Iterations (default: 2).
	Iterations uint32

	// Parallelism (default: 2).
	Parallelism uint8

	// SaltLength in bytes (default: 16).
	SaltLength uint32

	// KeyLength in bytes (default: 32).
	KeyLength uint32

	// Pepper, when set, is mixed into every password with HMAC-SHA256
	// before hashing. Changing it invalidates all stored hashes.
	Pepper string
}

// DefaultPasswordHasherConfig returns the default hashing parameters.
func DefaultPasswordHasherConfig() *PasswordHasherConfig {
	return &PasswordHasherConfig{
		Memory:      16384,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher hashes passwords as argon2id PHC strings and verifies
// both argon2id and legacy bcrypt hashes.
type PasswordHasher struct {
	config *PasswordHasherConfig
}

// NewPasswordHasher creates a PasswordHasher. A nil config uses defaults.
func NewPasswordHasher(config *PasswordHasherConfig) *PasswordHasher {
	if config == nil {
		config = DefaultPasswordHasherConfig()
	}
	return &PasswordHasher{config: config}
}

// Hash returns an encoded hash of the form
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(h.pepper(password), salt, h.config.Iterations, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.config.Memory, h.config.Iterations, h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return h.verifyArgon2(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	default:
		return false
	}
}

// NeedsRehash reports whether encoded was produced with other parameters
// or another algorithm.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	p, ok := parseArgon2(encoded)
	if !ok {
		return true
	}
	return p.memory != h.config.Memory || p.iterations != h.config.Iterations ||
		p.parallelism != h.config.Parallelism || uint32(len(p.key)) != h.config.KeyLength
}

func (h *PasswordHasher) verifyArgon2(password, encoded string) bool {
	p, ok := parseArgon2(encoded)
	if !ok {
		return false
	}
	computed := argon2.IDKey(h.pepper(password), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1
}

func (h *PasswordHasher) pepper(password string) []byte {
	if h.config.Pepper == "" {
		return []byte(password)
	}
	mac := hmac.New(sha256.New, []byte(h.config.Pepper))
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parseArgon2(encoded string) (argon2Params, bool) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, false
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, false
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return p, false
	}
	return p, true
}
