package service

import (
	"context"
	"errors"
	"time"

	"printer-fieldops/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.WebUser, error)
	FindByUsername(ctx context.Context, username string) (model.WebUser, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u model.WebUser) error
	CreateFirst(ctx context.Context, u model.WebUser) error
	List(ctx context.Context) ([]model.WebUser, error)
	Update(ctx context.Context, id string, patch model.UserPatch, at time.Time) (model.WebUser, error)
	UpdatePassword(ctx context.Context, id string, update model.PasswordUpdate, at time.Time) error
	CompleteLogin(ctx context.Context, id string, at time.Time, rehash *model.PasswordUpdate) error
	ImportBatch(ctx context.Context, users []model.WebUser) ([]model.WebUser, []string, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type DeviceTokenStore interface {
	Upsert(ctx context.Context, token model.DeviceToken) (model.DeviceToken, error)
}

type InstallationStore interface {
	Create(ctx context.Context, in model.Installation) error
	List(ctx context.Context, limit int) ([]model.Installation, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type IncidentStore interface {
	Create(ctx context.Context, inc model.Incident) error
}

// LoginLimiter is satisfied by *auth.LoginLimiter. A nil limiter means the
// operator explicitly set LOGIN_ATTEMPT_STORE=disabled.
type LoginLimiter interface {
	IsLocked(ctx context.Context, clientIP string, username string, now time.Time) (bool, error)
	RecordFailure(ctx context.Context, clientIP string, username string, now time.Time) (int, error)
	RecordSuccess(ctx context.Context, clientIP string, username string) error
}

// storeError passes domain sentinels through and marks everything else as a
// dependency failure.
func storeError(op string, err error, passthrough ...error) error {
	for _, sentinel := range passthrough {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return model.DependencyError(op, err)
}
