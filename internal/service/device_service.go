package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"printer-fieldops/internal/model"
)

const maxFCMTokenLength = 4096

type DeviceService struct {
	tokens DeviceTokenStore
	now    func() time.Time
}

func NewDeviceService(tokens DeviceTokenStore) *DeviceService {
	return &DeviceService{tokens: tokens, now: time.Now}
}

// Register upserts the caller's push token; the owner is always the caller.
func (s *DeviceService) Register(ctx context.Context, actor model.Identity, req model.RegisterDeviceRequest) (model.DeviceToken, error) {
	token := strings.TrimSpace(req.FCMToken)
	if token == "" {
		return model.DeviceToken{}, fmt.Errorf("%w: fcm_token is required", model.ErrInvalidInput)
	}
	if len(token) > maxFCMTokenLength {
		return model.DeviceToken{}, fmt.Errorf("%w: fcm_token too long", model.ErrInvalidInput)
	}

	stored, err := s.tokens.Upsert(ctx, model.DeviceToken{
		UserID:      actor.UserID,
		FCMToken:    token,
		DeviceModel: trimOptional(req.DeviceModel),
		AppVersion:  trimOptional(req.AppVersion),
		Platform:    trimOptional(req.Platform),
		UpdatedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.DeviceToken{}, storeError("register device token", err)
	}
	return stored, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
