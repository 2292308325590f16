package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/model"
)

const maxImportBatch = 1000

// UserService administers web accounts. Every write checks its action at the
// Gate, then the rules that depend on the target and the requested role.
type UserService struct {
	users  UserStore
	hasher *auth.Hasher
	gate   *auth.Gate
	audit  *AuditService
	now    func() time.Time
}

func NewUserService(users UserStore, hasher *auth.Hasher, gate *auth.Gate, audit *AuditService) *UserService {
	return &UserService{users: users, hasher: hasher, gate: gate, audit: audit, now: time.Now}
}

func (s *UserService) List(ctx context.Context) (model.AuthUserList, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return model.AuthUserList{}, storeError("list users", err)
	}

	out := model.AuthUserList{Users: make([]model.AuthUser, 0, len(users))}
	for _, u := range users {
		out.Users = append(out.Users, u.Public())
	}
	return out, nil
}

func (s *UserService) Create(ctx context.Context, actor model.Identity, req model.CreateUserRequest, meta model.RequestMeta) (model.AuthUser, error) {
	if err := s.gate.Require(&actor, auth.ActionUsersCreate); err != nil {
		return model.AuthUser{}, err
	}

	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return model.AuthUser{}, err
	}

	role, err := parseRoleOrDefault(req.Role)
	if err != nil {
		return model.AuthUser{}, err
	}
	if !s.gate.CanAssignRole(actor, role) {
		return model.AuthUser{}, fmt.Errorf("%w: cannot create a %s", model.ErrForbidden, role)
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		return model.AuthUser{}, err
	}

	digest, algorithm, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.WebUser{
		ID:            uuid.NewString(),
		Username:      username,
		PasswordHash:  digest,
		HashAlgorithm: algorithm,
		Role:          role,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.AuthUser{}, storeError("create user", err, model.ErrUserAlreadyExists)
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:       model.AuditUserCreated,
		Status:       model.AuditStatusSuccess,
		Actor:        actorFrom(actor, meta),
		TargetUserID: user.ID,
		Details:      map[string]any{"username": user.Username, "role": role.String()},
	})

	return user.Public(), nil
}

// Update toggles activation and, for super_admins, changes the role. Nobody
// may patch their own account or touch an account that outranks them.
func (s *UserService) Update(ctx context.Context, actor model.Identity, id string, req model.UpdateUserRequest, meta model.RequestMeta) (model.AuthUser, error) {
	if err := s.gate.Require(&actor, auth.ActionUsersActivate); err != nil {
		return model.AuthUser{}, err
	}
	if req.Role == nil && req.Active == nil {
		return model.AuthUser{}, fmt.Errorf("%w: nothing to update", model.ErrInvalidInput)
	}
	if id == actor.UserID {
		return model.AuthUser{}, fmt.Errorf("%w: cannot modify your own account", model.ErrForbidden)
	}

	patch := model.UserPatch{Active: req.Active}
	if req.Role != nil {
		if err := s.gate.Require(&actor, auth.ActionUsersChangeRole); err != nil {
			return model.AuthUser{}, err
		}
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			return model.AuthUser{}, err
		}
		if !s.gate.CanAssignRole(actor, role) {
			return model.AuthUser{}, fmt.Errorf("%w: cannot assign %s", model.ErrForbidden, role)
		}
		patch.Role = &role
	}

	target, err := s.manageableUser(ctx, actor, id)
	if err != nil {
		return model.AuthUser{}, err
	}

	updated, err := s.users.Update(ctx, id, patch, s.now().UTC())
	if err != nil {
		return model.AuthUser{}, storeError("update user", err, model.ErrUserNotFound)
	}

	if patch.Role != nil && *patch.Role != target.Role {
		s.audit.Record(ctx, model.AuditEntry{
			Action:       model.AuditUserRoleChanged,
			Status:       model.AuditStatusSuccess,
			Actor:        actorFrom(actor, meta),
			TargetUserID: id,
			Details:      map[string]any{"from": target.Role.String(), "to": patch.Role.String()},
		})
	}
	if patch.Active != nil && *patch.Active != target.Active {
		s.audit.Record(ctx, model.AuditEntry{
			Action:       model.AuditUserActivation,
			Status:       model.AuditStatusSuccess,
			Actor:        actorFrom(actor, meta),
			TargetUserID: id,
			Details:      map[string]any{"active": *patch.Active},
		})
	}

	return updated.Public(), nil
}

func (s *UserService) ForcePassword(ctx context.Context, actor model.Identity, id string, req model.ForcePasswordRequest, meta model.RequestMeta) error {
	if err := s.gate.Require(&actor, auth.ActionUsersForcePassword); err != nil {
		return err
	}
	if _, err := s.manageableUser(ctx, actor, id); err != nil {
		return err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return err
	}

	digest, algorithm, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	update := model.PasswordUpdate{Hash: digest, Algorithm: algorithm}
	if err := s.users.UpdatePassword(ctx, id, update, s.now().UTC()); err != nil {
		return storeError("update password", err, model.ErrUserNotFound)
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:       model.AuditPasswordForced,
		Status:       model.AuditStatusSuccess,
		Actor:        actorFrom(actor, meta),
		TargetUserID: id,
	})
	return nil
}

// Import bulk-loads externally hashed accounts. Digests are checked for shape
// against their tag but never re-hashed; they migrate on first login.
func (s *UserService) Import(ctx context.Context, actor model.Identity, req model.ImportUsersRequest, meta model.RequestMeta) (model.ImportUsersResponse, error) {
	if err := s.gate.Require(&actor, auth.ActionUsersImport); err != nil {
		return model.ImportUsersResponse{}, err
	}
	if len(req.Users) == 0 {
		return model.ImportUsersResponse{}, fmt.Errorf("%w: users list is empty", model.ErrInvalidInput)
	}
	if len(req.Users) > maxImportBatch {
		return model.ImportUsersResponse{}, fmt.Errorf("%w: at most %d users per import", model.ErrInvalidInput, maxImportBatch)
	}

	resp := model.ImportUsersResponse{
		Imported: make([]model.AuthUser, 0, len(req.Users)),
		Skipped:  make([]model.ImportFailure, 0),
	}
	skip := func(username string, reason string) {
		resp.Skipped = append(resp.Skipped, model.ImportFailure{Username: username, Reason: reason})
	}

	now := s.now().UTC()
	seen := make(map[string]struct{}, len(req.Users))
	batch := make([]model.WebUser, 0, len(req.Users))

	for _, item := range req.Users {
		username := strings.TrimSpace(item.Username)
		if err := validateUsername(username); err != nil {
			skip(username, "invalid username")
			continue
		}
		key := strings.ToLower(username)
		if _, dup := seen[key]; dup {
			skip(username, "duplicate username in request")
			continue
		}

		algorithm, err := model.ParseHashAlgorithm(item.HashAlgorithm)
		if err != nil {
			skip(username, "unknown hash algorithm")
			continue
		}
		if err := auth.ValidateDigest(item.PasswordHash, algorithm); err != nil {
			skip(username, "malformed password hash")
			continue
		}

		role, err := parseRoleOrDefault(item.Role)
		if err != nil {
			skip(username, "unknown role")
			continue
		}
		if !s.gate.CanAssignRole(actor, role) {
			skip(username, "role above actor")
			continue
		}

		active := true
		if item.Active != nil {
			active = *item.Active
		}

		seen[key] = struct{}{}
		batch = append(batch, model.WebUser{
			ID:            uuid.NewString(),
			Username:      username,
			PasswordHash:  item.PasswordHash,
			HashAlgorithm: algorithm,
			Role:          role,
			Active:        active,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if len(batch) > 0 {
		inserted, duplicates, err := s.users.ImportBatch(ctx, batch)
		if err != nil {
			return model.ImportUsersResponse{}, storeError("import users", err)
		}
		for _, u := range inserted {
			resp.Imported = append(resp.Imported, u.Public())
		}
		for _, username := range duplicates {
			skip(username, "username already exists")
		}
	}

	s.audit.Record(ctx, model.AuditEntry{
		Action:  model.AuditUsersImported,
		Status:  model.AuditStatusSuccess,
		Actor:   actorFrom(actor, meta),
		Details: map[string]any{"imported": len(resp.Imported), "skipped": len(resp.Skipped)},
	})

	return resp, nil
}

// manageableUser loads id and rejects targets ranked above the actor.
func (s *UserService) manageableUser(ctx context.Context, actor model.Identity, id string) (model.WebUser, error) {
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.WebUser{}, err
		}
		return model.WebUser{}, storeError("find user", err)
	}
	if target.Role.Outranks(actor.Role) {
		return model.WebUser{}, fmt.Errorf("%w: target outranks actor", model.ErrForbidden)
	}
	return target, nil
}

func parseRoleOrDefault(raw string) (model.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return model.RoleViewer, nil
	}
	return model.ParseRole(raw)
}
