package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/metrics"
	"printer-fieldops/internal/model"
)

const tokenTypeBearer = "Bearer"

// AuthOptions carries the secrets read once at startup. An empty secret
// disables the flows that need it with ErrServiceMisconfigured.
type AuthOptions struct {
	SessionSecret   string
	DeviceSecret    string
	BootstrapSecret string
	Now             func() time.Time
}

type AuthService struct {
	users           UserStore
	hasher          *auth.Hasher
	limiter         LoginLimiter
	audit           *AuditService
	sessions        *auth.SessionCodec
	deviceSecret    []byte
	bootstrapSecret []byte
	now             func() time.Time
}

func NewAuthService(users UserStore, hasher *auth.Hasher, limiter LoginLimiter, audit *AuditService, opts AuthOptions) *AuthService {
	s := &AuthService{
		users:   users,
		hasher:  hasher,
		limiter: limiter,
		audit:   audit,
		now:     opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	if codec, err := auth.NewSessionCodec(opts.SessionSecret); err == nil {
		s.sessions = codec
	}
	if opts.DeviceSecret != "" {
		s.deviceSecret = []byte(opts.DeviceSecret)
	}
	if opts.BootstrapSecret != "" {
		s.bootstrapSecret = []byte(opts.BootstrapSecret)
	}

	return s
}

func (s *AuthService) SessionsConfigured() bool {
	return s.sessions != nil
}

func (s *AuthService) DeviceAuthConfigured() bool {
	return len(s.deviceSecret) > 0
}

// Bootstrap creates the first super_admin. Once any user exists it fails with
// ErrBootstrapAlreadyDone whatever secret is presented.
func (s *AuthService) Bootstrap(ctx context.Context, req model.BootstrapRequest, meta model.RequestMeta) (model.SessionResponse, error) {
	if s.sessions == nil || len(s.bootstrapSecret) == 0 {
		return model.SessionResponse{}, model.ErrServiceMisconfigured
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return model.SessionResponse{}, storeError("count users", err)
	}
	if count > 0 {
		s.recordBootstrap(ctx, meta, model.AuditStatusDenied, "", "already_done")
		return model.SessionResponse{}, model.ErrBootstrapAlreadyDone
	}

	if !secretsEqual([]byte(req.BootstrapSecret), s.bootstrapSecret) {
		s.recordBootstrap(ctx, meta, model.AuditStatusDenied, "", "bad_secret")
		return model.SessionResponse{}, model.ErrUnauthenticated
	}

	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return model.SessionResponse{}, err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return model.SessionResponse{}, err
	}

	digest, algorithm, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.SessionResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.WebUser{
		ID:            uuid.NewString(),
		Username:      username,
		PasswordHash:  digest,
		HashAlgorithm: algorithm,
		Role:          model.RoleSuperAdmin,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.CreateFirst(ctx, user); err != nil {
		return model.SessionResponse{}, storeError("create first user", err, model.ErrBootstrapAlreadyDone, model.ErrUserAlreadyExists)
	}

	s.recordBootstrap(ctx, meta, model.AuditStatusSuccess, user.ID, "")
	slog.Info("bootstrap completed", "user_id", user.ID, "username", user.Username)

	return s.issueSession(user, now)
}

func (s *AuthService) recordBootstrap(ctx context.Context, meta model.RequestMeta, status string, userID string, reason string) {
	entry := model.AuditEntry{
		Action:       model.AuditBootstrap,
		Status:       status,
		Actor:        model.AuditActor{UserID: userID, IP: meta.ClientIP},
		TargetUserID: userID,
	}
	if reason != "" {
		entry.Details = map[string]any{"reason": reason}
	}
	s.audit.Record(ctx, entry)
}

// Login walks the login state machine. Unknown, inactive and wrong-password
// outcomes are indistinguishable to the caller and all cost one hash verify.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, meta model.RequestMeta) (resp model.SessionResponse, err error) {
	state := LoginAwaitingCredentials
	username := strings.TrimSpace(req.Username)

	defer func() {
		if !state.Terminal() {
			state = LoginFailed
		}
		metrics.LoginOutcomes.WithLabelValues(state.String()).Inc()
		logAttrs := []any{"state", state.String(), "username", username, "client_ip", meta.ClientIP}
		if err != nil && state == LoginFailed {
			slog.Warn("login aborted", append(logAttrs, "error", err)...)
			return
		}
		slog.Info("login finished", logAttrs...)
	}()

	if username == "" || req.Password == "" {
		return resp, fmt.Errorf("%w: username and password are required", model.ErrInvalidInput)
	}
	if s.sessions == nil {
		return resp, model.ErrServiceMisconfigured
	}

	now := s.now().UTC()

	state = LoginCheckingRateLimit
	if s.limiter != nil {
		locked, err := s.limiter.IsLocked(ctx, meta.ClientIP, username, now)
		if err != nil {
			return resp, storeError("check login attempts", err)
		}
		if locked {
			state = LoginLocked
			s.audit.Record(ctx, model.AuditEntry{
				Action: model.AuditLoginLocked,
				Status: model.AuditStatusDenied,
				Actor:  model.AuditActor{Username: username, IP: meta.ClientIP},
			})
			return resp, model.ErrRateLimited
		}
	}

	state = LoginVerifyingPassword
	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		count, countErr := s.users.Count(ctx)
		if countErr != nil {
			return resp, storeError("count users", countErr)
		}
		if count == 0 {
			state = LoginBootstrapRequired
			return resp, model.ErrBootstrapRequired
		}
		s.hasher.VerifyDummy(req.Password)
		state = LoginRejected
		return resp, s.rejectLogin(ctx, username, "", meta, now)
	case err != nil:
		return resp, storeError("find user", err)
	}

	if !user.Active {
		s.hasher.VerifyDummy(req.Password)
		state = LoginRejected
		return resp, s.rejectLogin(ctx, username, user.ID, meta, now)
	}
	if !s.hasher.VerifyLogin(req.Password, user.PasswordHash, user.HashAlgorithm) {
		state = LoginRejected
		return resp, s.rejectLogin(ctx, username, user.ID, meta, now)
	}

	var rehash *model.PasswordUpdate
	if s.hasher.NeedsRehash(user.HashAlgorithm) {
		state = LoginRehashing
		digest, algorithm, err := s.hasher.Hash(req.Password)
		if err != nil {
			return resp, fmt.Errorf("rehash password: %w", err)
		}
		rehash = &model.PasswordUpdate{Hash: digest, Algorithm: algorithm}
	}

	state = LoginIssuingToken
	if s.limiter != nil {
		if err := s.limiter.RecordSuccess(ctx, meta.ClientIP, username); err != nil {
			return resp, storeError("reset login attempts", err)
		}
	}

	if err := s.users.CompleteLogin(ctx, user.ID, now, rehash); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			state = LoginRejected
			return resp, s.rejectLogin(ctx, username, user.ID, meta, now)
		}
		return resp, storeError("complete login", err)
	}

	details := map[string]any{}
	if rehash != nil {
		details["rehashed_from"] = user.HashAlgorithm.String()
		metrics.PasswordRehashes.WithLabelValues(user.HashAlgorithm.String()).Inc()
		s.audit.Record(ctx, model.AuditEntry{
			Action:       model.AuditPasswordRehash,
			Status:       model.AuditStatusSuccess,
			Actor:        model.AuditActor{UserID: user.ID, Username: user.Username, Role: user.Role.String(), IP: meta.ClientIP},
			TargetUserID: user.ID,
			Details:      map[string]any{"from": user.HashAlgorithm.String(), "to": rehash.Algorithm.String()},
		})
		user.PasswordHash, user.HashAlgorithm = rehash.Hash, rehash.Algorithm
	}
	s.audit.Record(ctx, model.AuditEntry{
		Action:       model.AuditLoginSucceeded,
		Status:       model.AuditStatusSuccess,
		Actor:        model.AuditActor{UserID: user.ID, Username: user.Username, Role: user.Role.String(), IP: meta.ClientIP},
		TargetUserID: user.ID,
		Details:      details,
	})

	resp, err = s.issueSession(user, now)
	if err != nil {
		return resp, err
	}
	state = LoginAuthenticated
	return resp, nil
}

// rejectLogin charges the failure to the (ip, username) pair and always
// answers ErrInvalidCredentials unless the attempt store itself fails.
func (s *AuthService) rejectLogin(ctx context.Context, username string, userID string, meta model.RequestMeta, now time.Time) error {
	failures := 0
	if s.limiter != nil {
		count, err := s.limiter.RecordFailure(ctx, meta.ClientIP, username, now)
		if err != nil {
			return storeError("record login failure", err)
		}
		failures = count
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:       model.AuditLoginFailed,
		Status:       model.AuditStatusFailure,
		Actor:        model.AuditActor{Username: username, IP: meta.ClientIP},
		TargetUserID: userID,
		Details:      map[string]any{"failures_in_window": failures},
	})
	return model.ErrInvalidCredentials
}

// Refresh issues a fresh 8-hour token for a still-active user.
func (s *AuthService) Refresh(ctx context.Context, identity model.Identity) (model.SessionResponse, error) {
	if s.sessions == nil {
		return model.SessionResponse{}, model.ErrServiceMisconfigured
	}
	if identity.Kind != model.PrincipalWebUser {
		return model.SessionResponse{}, model.ErrUnauthenticated
	}

	user, err := s.activeUser(ctx, identity.UserID)
	if err != nil {
		return model.SessionResponse{}, err
	}
	return s.issueSession(user, s.now().UTC())
}

// AuthenticateBearer resolves a session token to the current user record, so
// role changes and deactivation apply to tokens already issued.
func (s *AuthService) AuthenticateBearer(ctx context.Context, token string) (model.Identity, error) {
	if s.sessions == nil {
		return model.Identity{}, model.ErrServiceMisconfigured
	}

	session, err := s.sessions.Verify(token, s.now())
	if err != nil {
		return model.Identity{}, err
	}

	user, err := s.activeUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			return model.Identity{}, model.ErrInvalidToken
		}
		return model.Identity{}, err
	}

	return model.Identity{
		Kind:      model.PrincipalWebUser,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: session.TokenID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// AuthenticateDevice checks a signed device request.
func (s *AuthService) AuthenticateDevice(method string, path string, timestamp string, body []byte, signature string, deviceID string) (model.Identity, error) {
	if len(s.deviceSecret) == 0 {
		return model.Identity{}, model.ErrServiceMisconfigured
	}

	if err := auth.VerifyRequest(s.deviceSecret, method, path, timestamp, body, signature, s.now()); err != nil {
		metrics.DeviceAuthFailures.WithLabelValues("signature").Inc()
		return model.Identity{}, err
	}

	return model.Identity{Kind: model.PrincipalDevice, DeviceID: strings.TrimSpace(deviceID)}, nil
}

func (s *AuthService) Me(ctx context.Context, identity model.Identity) (model.AuthUser, error) {
	user, err := s.activeUser(ctx, identity.UserID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) activeUser(ctx context.Context, userID string) (model.WebUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.WebUser{}, model.ErrUnauthenticated
	}
	if err != nil {
		return model.WebUser{}, storeError("find user", err)
	}
	if !user.Active {
		return model.WebUser{}, model.ErrUnauthenticated
	}
	return user, nil
}

func (s *AuthService) issueSession(user model.WebUser, now time.Time) (model.SessionResponse, error) {
	token, session, err := s.sessions.Issue(user.ID, now)
	if err != nil {
		return model.SessionResponse{}, err
	}

	return model.SessionResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
		User:        user.Public(),
	}, nil
}

// secretsEqual compares digests so neither length nor content leaks through timing.
func secretsEqual(supplied []byte, expected []byte) bool {
	a := sha256.Sum256(supplied)
	b := sha256.Sum256(expected)
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

const maxUsernameLength = 64

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", model.ErrInvalidInput)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username exceeds %d characters", model.ErrInvalidInput, maxUsernameLength)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return fmt.Errorf("%w: username must not contain whitespace", model.ErrInvalidInput)
	}
	return nil
}
