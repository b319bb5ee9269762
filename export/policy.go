package export

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrPasswordTooWeak is returned when a password does not satisfy the
// configured policy. The check runs before any cryptographic work.
var ErrPasswordTooWeak = errors.New("password too weak")

// Policy describes the minimum requirements for export and backup passwords.
type Policy struct {
	MinLength        int  `yaml:"min_length" json:"minLength"`
	RequireUppercase bool `yaml:"require_uppercase" json:"requireUppercase"`
	RequireLowercase bool `yaml:"require_lowercase" json:"requireLowercase"`
	RequireDigit     bool `yaml:"require_digit" json:"requireDigit"`
}

// DefaultPolicy returns the policy applied when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        10,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
	}
}

// Validate reports ErrPasswordTooWeak, naming the first unmet requirement,
// when password does not satisfy the policy.
func (p Policy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters: %w", p.MinLength, ErrPasswordTooWeak)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		return fmt.Errorf("password must contain an uppercase letter: %w", ErrPasswordTooWeak)
	}
	if p.RequireLowercase && !hasLower {
		return fmt.Errorf("password must contain a lowercase letter: %w", ErrPasswordTooWeak)
	}
	if p.RequireDigit && !hasDigit {
		return fmt.Errorf("password must contain a digit: %w", ErrPasswordTooWeak)
	}
	return nil
}
