package repository

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"printer-fieldops/internal/model"
)

func TestDeviceTokenRepositoryUpsert(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewDeviceTokenRepository(mock)
	at := time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC)
	token := model.DeviceToken{
		UserID:      aliceID,
		FCMToken:    "fcm-abc",
		DeviceModel: strPtr("TC52"),
		Platform:    strPtr("android"),
		UpdatedAt:   at,
	}

	mock.ExpectQuery(`INSERT INTO device_tokens .+ ON CONFLICT \(user_id, fcm_token\) DO UPDATE`).
		WithArgs(aliceID, "fcm-abc", strPtr("TC52"), pgxmock.AnyArg(), strPtr("android"), at).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "fcm_token", "device_model", "app_version", "platform", "updated_at"}).
			AddRow(aliceID, "fcm-abc", strPtr("TC52"), (*string)(nil), strPtr("android"), at))

	out, err := repo.Upsert(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "fcm-abc", out.FCMToken)
	require.Equal(t, "TC52", *out.DeviceModel)
	require.Nil(t, out.AppVersion)
}

func TestDeviceTokenRepositoryTokensForRoles(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewDeviceTokenRepository(mock)

	mock.ExpectQuery(`SELECT DISTINCT t.fcm_token`).
		WithArgs([]string{"admin", "super_admin"}).
		WillReturnRows(pgxmock.NewRows([]string{"fcm_token"}).AddRow("a").AddRow("b"))

	tokens, err := repo.TokensForRoles(context.Background(), []model.Role{model.RoleAdmin, model.RoleSuperAdmin})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, tokens)
}
