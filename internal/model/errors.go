package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Credentials and users
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")

	// Request authentication
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrExpiredToken     = errors.New("session token expired")
	ErrInvalidToken     = errors.New("invalid session token")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrForbidden        = errors.New("insufficient permissions")
	ErrRateLimited      = errors.New("too many failed login attempts")

	// Bootstrap
	ErrBootstrapAlreadyDone = errors.New("bootstrap already completed")
	ErrBootstrapRequired    = errors.New("no users exist; bootstrap required")

	// Infrastructure
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrServiceMisconfigured  = errors.New("service misconfigured for authentication")

	ErrInvalidInput         = errors.New("invalid input")
	ErrInstallationNotFound = errors.New("installation not found")
)

// PasswordRule names one clause of the password policy.
type PasswordRule string

const (
	RuleMinLength PasswordRule = "min_length"
	RuleUppercase PasswordRule = "uppercase"
	RuleLowercase PasswordRule = "lowercase"
	RuleDigit     PasswordRule = "digit"
	RuleSymbol    PasswordRule = "symbol"
)

// WeakPasswordError reports the first violated rule; Rules holds every violation.
type WeakPasswordError struct {
	Rule  PasswordRule
	Rules []PasswordRule
}

func (e *WeakPasswordError) Error() string {
	if len(e.Rules) <= 1 {
		return fmt.Sprintf("weak password: %s", e.Rule)
	}
	names := make([]string, 0, len(e.Rules))
	for _, rule := range e.Rules {
		names = append(names, string(rule))
	}
	return fmt.Sprintf("weak password: %s", strings.Join(names, ", "))
}

// DependencyError marks a store failure while keeping the cause for logs.
func DependencyError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependencyUnavailable, op, err)
}
