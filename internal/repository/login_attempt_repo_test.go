package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"printer-fieldops/internal/auth"
)

func TestLoginAttemptRepositoryRecordFailure(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewLoginAttemptRepository(mock)
	key := auth.NewAttemptKey("10.1.2.3", "Alice")
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WITH pruned AS \(\s+DELETE FROM login_attempts`).
		WithArgs("10.1.2.3", "alice", at, at.Add(-auth.LoginWindow)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.RecordFailure(context.Background(), key, at, auth.LoginWindow)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestLoginAttemptRepositoryFailures(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewLoginAttemptRepository(mock)
	key := auth.NewAttemptKey("10.1.2.3", "alice")
	since := time.Date(2026, 4, 1, 11, 45, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT attempted_at FROM login_attempts`).
		WithArgs("10.1.2.3", "alice", since).
		WillReturnRows(pgxmock.NewRows([]string{"attempted_at"}).
			AddRow(since.Add(time.Minute)).
			AddRow(since.Add(2 * time.Minute)))

	history, err := repo.Failures(context.Background(), key, since)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestLoginAttemptRepositoryReset(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewLoginAttemptRepository(mock)

	mock.ExpectExec(`DELETE FROM login_attempts WHERE client_ip = \$1 AND username = \$2`).
		WithArgs("10.1.2.3", "alice").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, repo.Reset(context.Background(), auth.NewAttemptKey("10.1.2.3", "ALICE")))
}

func TestLoginAttemptRepositoryErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	repo := NewLoginAttemptRepository(mock)
	down := errors.New("db down")

	mock.ExpectQuery(`WITH pruned AS`).WillReturnError(down)

	_, err := repo.RecordFailure(context.Background(), auth.NewAttemptKey("ip", "u"), time.Now(), auth.LoginWindow)
	require.ErrorIs(t, err, down)
	require.ErrorContains(t, err, "record login failure")
}

func TestLoginAttemptRepositoryDrivesLimiter(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	limiter := auth.NewLoginLimiter(NewLoginAttemptRepository(mock))
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"attempted_at"})
	for i := 0; i < auth.LoginThreshold; i++ {
		rows.AddRow(now.Add(-time.Duration(i) * time.Minute))
	}
	mock.ExpectQuery(`SELECT attempted_at FROM login_attempts`).
		WithArgs("10.1.2.3", "alice", now.Add(-auth.LoginWindow)).
		WillReturnRows(rows)

	locked, err := limiter.IsLocked(context.Background(), "10.1.2.3", "alice", now)
	require.NoError(t, err)
	require.True(t, locked)
}
