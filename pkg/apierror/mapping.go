package apierror

import (
	"errors"
	"net/http"

	"printer-fieldops/internal/model"
)

type mapping struct {
	target  error
	status  int
	code    string
	message string
	details bool
}

// Order matters only for wrapped chains carrying more than one sentinel.
var mappings = []mapping{
	{model.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid request signature", false},
	{model.ErrExpiredToken, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session token expired", false},
	{model.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid session token", false},
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", false},
	{model.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required", false},
	{model.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", false},
	{model.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many failed login attempts", false},
	{model.ErrBootstrapAlreadyDone, http.StatusConflict, "BOOTSTRAP_ALREADY_DONE", "Bootstrap already completed", false},
	{model.ErrBootstrapRequired, http.StatusConflict, "BOOTSTRAP_REQUIRED", "No users exist; bootstrap required", false},
	{model.ErrUserAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "User already exists", false},
	{model.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found", false},
	{model.ErrInstallationNotFound, http.StatusNotFound, "NOT_FOUND", "Installation not found", false},
	{model.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST", "Invalid input", true},
	{model.ErrServiceMisconfigured, http.StatusServiceUnavailable, "SERVICE_MISCONFIGURED", "Authentication is not configured on this server", false},
	{model.ErrDependencyUnavailable, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "A required backend is unavailable", false},
}

// FromError maps a domain error onto its response. ok is false for errors
// that carry no known sentinel; callers log those and answer INTERNAL_ERROR.
func FromError(err error) (apiErr *APIError, ok bool) {
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var weak *model.WeakPasswordError
	if errors.As(err, &weak) {
		return New("WEAK_PASSWORD", "Password does not meet the policy", string(weak.Rule), http.StatusBadRequest), true
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			details := ""
			if m.details {
				details = err.Error()
			}
			return New(m.code, m.message, details, m.status), true
		}
	}

	return Internal(), false
}

func Internal() *APIError {
	return New("INTERNAL_ERROR", "Unexpected server error", "", http.StatusInternalServerError)
}

func BadRequest(message string, details string) *APIError {
	return New("BAD_REQUEST", message, details, http.StatusBadRequest)
}
