package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"printer-fieldops/internal/model"
)

type fakeDeviceTokenStore struct {
	tokens map[string]model.DeviceToken
	err    error
}

func (s *fakeDeviceTokenStore) Upsert(_ context.Context, token model.DeviceToken) (model.DeviceToken, error) {
	if s.err != nil {
		return model.DeviceToken{}, s.err
	}
	if s.tokens == nil {
		s.tokens = map[string]model.DeviceToken{}
	}
	s.tokens[token.UserID+"/"+token.FCMToken] = token
	return token, nil
}

func TestDeviceRegisterUpsertsForCaller(t *testing.T) {
	t.Parallel()

	store := &fakeDeviceTokenStore{}
	svc := NewDeviceService(store)
	ctx := context.Background()
	caller := model.Identity{Kind: model.PrincipalWebUser, UserID: "id-tech", Role: model.RoleViewer}
	modelName := "  Pixel 9 "
	blank := "   "

	stored, err := svc.Register(ctx, caller, model.RegisterDeviceRequest{FCMToken: " fcm-abc ", DeviceModel: &modelName, Platform: &blank})
	require.NoError(t, err)
	require.Equal(t, "id-tech", stored.UserID)
	require.Equal(t, "fcm-abc", stored.FCMToken)
	require.Equal(t, "Pixel 9", *stored.DeviceModel)
	require.Nil(t, stored.Platform)

	version := "2.4.0"
	_, err = svc.Register(ctx, caller, model.RegisterDeviceRequest{FCMToken: "fcm-abc", AppVersion: &version})
	require.NoError(t, err)
	require.Len(t, store.tokens, 1)
	require.Equal(t, "2.4.0", *store.tokens["id-tech/fcm-abc"].AppVersion)
}

func TestDeviceRegisterRejections(t *testing.T) {
	t.Parallel()

	store := &fakeDeviceTokenStore{}
	svc := NewDeviceService(store)
	caller := model.Identity{Kind: model.PrincipalWebUser, UserID: "id-tech"}

	_, err := svc.Register(context.Background(), caller, model.RegisterDeviceRequest{FCMToken: "  "})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Register(context.Background(), caller, model.RegisterDeviceRequest{FCMToken: strings.Repeat("a", maxFCMTokenLength+1)})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	store.err = errConnRefused
	_, err = svc.Register(context.Background(), caller, model.RegisterDeviceRequest{FCMToken: "fcm"})
	require.ErrorIs(t, err, model.ErrDependencyUnavailable)
}
