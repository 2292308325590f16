package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreGooseAnnotated(t *testing.T) {
	t.Parallel()

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		raw, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err)

		body := string(raw)
		require.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		require.Contains(t, body, "-- +goose Down", name)
	}
}

func TestAuthMigrationCreatesTables(t *testing.T) {
	t.Parallel()

	raw, err := fs.ReadFile(migrationsFS, "migrations/00001_auth.sql")
	require.NoError(t, err)

	for _, table := range []string{"web_users", "device_tokens", "login_attempts", "audit_logs"} {
		require.Contains(t, string(raw), "CREATE TABLE IF NOT EXISTS "+table)
	}
	require.Contains(t, string(raw), "PRIMARY KEY (user_id, fcm_token)")
	require.Contains(t, string(raw), "lower(username)")
}

func TestMigrateRejectsNilPool(t *testing.T) {
	t.Parallel()

	var db *DB
	require.Error(t, db.Migrate(t.Context()))
	require.Error(t, (&DB{}).Migrate(t.Context()))
}
