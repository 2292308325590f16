package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"printer-fieldops/internal/model"
)

// AuditService records auth events. Recording is best-effort: a store failure
// is logged and never changes the outcome of the request that caused it.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) Record(ctx context.Context, entry model.AuditEntry) {
	if s == nil || s.store == nil {
		return
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}

	// Detached so a client hanging up still leaves a trail.
	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit entry not recorded",
			"action", entry.Action,
			"status", entry.Status,
			"actor_user_id", entry.Actor.UserID,
			"error", err,
		)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if _, err := parseOptionalAuditTime(query.From); err != nil {
		return nil, model.Meta{}, fmt.Errorf("%w: invalid 'from' datetime %q", model.ErrInvalidInput, query.From)
	}
	if _, err := parseOptionalAuditTime(query.To); err != nil {
		return nil, model.Meta{}, fmt.Errorf("%w: invalid 'to' datetime %q", model.ErrInvalidInput, query.To)
	}

	entries, meta, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, storeError("query audit log", err)
	}
	return entries, meta, nil
}

func actorFrom(identity model.Identity, meta model.RequestMeta) model.AuditActor {
	actor := model.AuditActor{
		UserID:   identity.UserID,
		Username: identity.Username,
		IP:       meta.ClientIP,
	}
	if identity.Role.Valid() {
		actor.Role = identity.Role.String()
	}
	return actor
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	value, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
