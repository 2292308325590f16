package repository

import (
	"context"
	"fmt"
	"time"

	"printer-fieldops/internal/auth"
)

// LoginAttemptRepository is the Postgres auth.AttemptStore.
type LoginAttemptRepository struct {
	db DBTX
}

func NewLoginAttemptRepository(db DBTX) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

var _ auth.AttemptStore = (*LoginAttemptRepository)(nil)

// RecordFailure prunes, inserts and counts in one statement. All CTEs share a
// snapshot, so the count is the rows already in the window plus the new one.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, key auth.AttemptKey, at time.Time, window time.Duration) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`WITH pruned AS (
		     DELETE FROM login_attempts
		     WHERE client_ip = $1 AND username = $2 AND attempted_at <= $4
		 ), inserted AS (
		     INSERT INTO login_attempts (client_ip, username, attempted_at)
		     VALUES ($1, $2, $3)
		     RETURNING attempted_at
		 )
		 SELECT (SELECT COUNT(*) FROM login_attempts
		         WHERE client_ip = $1 AND username = $2 AND attempted_at > $4 AND attempted_at <= $3)
		      + (SELECT COUNT(*) FROM inserted)`,
		key.ClientIP, key.Username, at, at.Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return count, nil
}

func (r *LoginAttemptRepository) Failures(ctx context.Context, key auth.AttemptKey, since time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT attempted_at FROM login_attempts
		 WHERE client_ip = $1 AND username = $2 AND attempted_at > $3
		 ORDER BY attempted_at`,
		key.ClientIP, key.Username, since)
	if err != nil {
		return nil, fmt.Errorf("list login failures: %w", err)
	}
	defer rows.Close()

	history := make([]time.Time, 0)
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan login failure: %w", err)
		}
		history = append(history, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list login failures: %w", err)
	}
	return history, nil
}

func (r *LoginAttemptRepository) Reset(ctx context.Context, key auth.AttemptKey) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM login_attempts WHERE client_ip = $1 AND username = $2`,
		key.ClientIP, key.Username); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// PurgeBefore drops rows for keys that never failed again; the app runs it on a ticker.
func (r *LoginAttemptRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge login failures: %w", err)
	}
	return tag.RowsAffected(), nil
}
