package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Account field constraints.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 32
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// Account is a registered user.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAccount creates an account with a fresh UUID.
func NewAccount(username, passwordHash string, role Role, now time.Time) *Account {
	return &Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Principal returns the identity snapshot for this account.
func (a *Account) Principal() Principal {
	return Principal{
		AccountID: a.ID,
		Username:  a.Username,
		Role:      a.Role,
	}
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	clone := *a
	return &clone
}

// ValidateUsername checks the username rules: 3 to 20 letters, digits or underscores.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrAccountValidation.WithDetails("username must be 3-20 letters, digits or underscores")
	}
	return nil
}

// ValidatePassword checks the password rules: 6 to 32 characters with at least
// one letter and one digit.
func ValidatePassword(password string) error {
	if n := len(password); n < MinPasswordLength || n > MaxPasswordLength {
		return ErrAccountValidation.WithDetails("password must be 6-32 characters")
	}

	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrAccountValidation.WithDetails("password must contain a letter and a digit")
	}
	return nil
}

// ValidateContact checks the optional email and phone fields.
func ValidateContact(email, phone string) error {
	var violations []string
	if email != "" && !emailPattern.MatchString(email) {
		violations = append(violations, "email is malformed")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		violations = append(violations, "phone is malformed")
	}
	if len(violations) > 0 {
		return ErrAccountValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}
