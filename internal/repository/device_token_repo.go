package repository

import (
	"context"
	"fmt"

	"printer-fieldops/internal/model"
)

type DeviceTokenRepository struct {
	db DBTX
}

func NewDeviceTokenRepository(db DBTX) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert keys on (user_id, fcm_token); re-registering refreshes the metadata.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token model.DeviceToken) (model.DeviceToken, error) {
	var out model.DeviceToken
	err := r.db.QueryRow(ctx,
		`INSERT INTO device_tokens (user_id, fcm_token, device_model, app_version, platform, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, fcm_token) DO UPDATE
		 SET device_model = EXCLUDED.device_model,
		     app_version = EXCLUDED.app_version,
		     platform = EXCLUDED.platform,
		     updated_at = EXCLUDED.updated_at
		 RETURNING user_id, fcm_token, device_model, app_version, platform, updated_at`,
		token.UserID, token.FCMToken, token.DeviceModel, token.AppVersion, token.Platform, token.UpdatedAt).
		Scan(&out.UserID, &out.FCMToken, &out.DeviceModel, &out.AppVersion, &out.Platform, &out.UpdatedAt)
	if err != nil {
		return model.DeviceToken{}, fmt.Errorf("upsert device token: %w", err)
	}
	return out, nil
}

// TokensForRoles lists push tokens of active users holding one of roles.
func (r *DeviceTokenRepository) TokensForRoles(ctx context.Context, roles []model.Role) ([]string, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}

	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT t.fcm_token
		 FROM device_tokens t
		 JOIN web_users u ON u.id = t.user_id
		 WHERE u.active AND u.role = ANY($1)
		 ORDER BY t.fcm_token`, names)
	if err != nil {
		return nil, fmt.Errorf("list device tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}
