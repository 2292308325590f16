package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/model"
	"printer-fieldops/pkg/apierror"
)

const maxSignedBodyBytes = 1 << 20

type sessionAuthenticator interface {
	SessionsConfigured() bool
	AuthenticateBearer(ctx context.Context, token string) (model.Identity, error)
}

type deviceAuthenticator interface {
	DeviceAuthConfigured() bool
	AuthenticateDevice(method string, path string, timestamp string, body []byte, signature string, deviceID string) (model.Identity, error)
}

type contextKey string

const identityContextKey contextKey = "identity"

// AuthMiddleware resolves the caller for each request. The decision whether a
// mode is usable is made once at construction; without its secret every
// request on that mode answers SERVICE_MISCONFIGURED.
type AuthMiddleware struct {
	sessions sessionAuthenticator
	devices  deviceAuthenticator
	gate     *auth.Gate

	RequireSession         func(http.Handler) http.Handler
	RequireDeviceSignature func(http.Handler) http.Handler
}

func NewAuthMiddleware(sessions sessionAuthenticator, devices deviceAuthenticator, gate *auth.Gate) *AuthMiddleware {
	m := &AuthMiddleware{sessions: sessions, devices: devices, gate: gate}

	m.RequireSession = m.requireSession
	if sessions == nil || !sessions.SessionsConfigured() {
		slog.Error("session authentication disabled: SESSION_SECRET is not set")
		m.RequireSession = misconfigured
	}

	m.RequireDeviceSignature = m.requireDeviceSignature
	if devices == nil || !devices.DeviceAuthConfigured() {
		slog.Error("device authentication disabled: DEVICE_HMAC_SECRET is not set")
		m.RequireDeviceSignature = misconfigured
	}

	return m
}

func (m *AuthMiddleware) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			writeAuthError(w, model.ErrUnauthenticated)
			return
		}

		identity, err := m.sessions.AuthenticateBearer(r.Context(), strings.TrimSpace(header[7:]))
		if err != nil {
			writeAuthError(w, err)
			return
		}
		annotate(r.Context(), identity)

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// requireDeviceSignature verifies the HMAC over method, path, timestamp and
// body, then restores the body for the handler.
func (m *AuthMiddleware) requireDeviceSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes+1))
		_ = r.Body.Close()
		if err != nil {
			writeAuthError(w, apierror.BadRequest("could not read request body", ""))
			return
		}
		if len(body) > maxSignedBodyBytes {
			writeAuthError(w, apierror.New("PAYLOAD_TOO_LARGE", "request body too large", "", http.StatusRequestEntityTooLarge))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		identity, err := m.devices.AuthenticateDevice(
			r.Method,
			signedPath(r),
			r.Header.Get(auth.HeaderTimestamp),
			body,
			r.Header.Get(auth.HeaderSignature),
			r.Header.Get(auth.HeaderDeviceID),
		)
		if err != nil {
			slog.Warn("device signature rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"device_id", r.Header.Get(auth.HeaderDeviceID),
				"reason", err.Error(),
			)
			writeAuthError(w, err)
			return
		}
		annotate(r.Context(), identity)

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// Require rejects callers whose identity lacks action.
func (m *AuthMiddleware) Require(action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var identity *model.Identity
			if found, ok := IdentityFromContext(r.Context()); ok {
				identity = &found
			}
			if err := m.gate.Require(identity, action); err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// signedPath is the path plus query exactly as the client sent it.
func signedPath(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

func misconfigured(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeAuthError(w, model.ErrServiceMisconfigured)
	})
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.FromError(err)
	if !ok {
		slog.Error("unhandled error in auth middleware", "error", err.Error())
	}
	writeAPIError(w, apiErr)
}

func writeAPIError(w http.ResponseWriter, apiErr *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
