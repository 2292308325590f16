package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/model"
)

const (
	testIterations      = 1000
	testSessionSecret   = "session-secret-for-tests"
	testDeviceSecret    = "device-secret-for-tests"
	testBootstrapSecret = "bootstrap-secret-for-tests"
	strongPassword      = "Correct-Horse-9battery"
)

var errConnRefused = errors.New("dial tcp 10.0.0.5:5432: connection refused")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeUserStore struct {
	mu          sync.Mutex
	users       map[string]model.WebUser
	err         error
	lookups     int
	completions int
}

func newFakeUserStore(users ...model.WebUser) *fakeUserStore {
	s := &fakeUserStore{users: map[string]model.WebUser{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) get(id string) model.WebUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *fakeUserStore) byName(username string) (model.WebUser, bool) {
	for _, u := range s.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return u, true
		}
	}
	return model.WebUser{}, false
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.WebUser{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) FindByUsername(_ context.Context, username string) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return model.WebUser{}, s.err
	}
	u, ok := s.byName(username)
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return len(s.users), nil
}

func (s *fakeUserStore) Create(_ context.Context, u model.WebUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, taken := s.byName(u.Username); taken {
		return model.ErrUserAlreadyExists
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) CreateFirst(_ context.Context, u model.WebUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if len(s.users) > 0 {
		return model.ErrBootstrapAlreadyDone
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) List(context.Context) ([]model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.WebUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeUserStore) Update(_ context.Context, id string, patch model.UserPatch, at time.Time) (model.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.WebUser{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return model.WebUser{}, model.ErrUserNotFound
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	u.UpdatedAt = at
	s.users[id] = u
	return u, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id string, update model.PasswordUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash, u.HashAlgorithm, u.UpdatedAt = update.Hash, update.Algorithm, at
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) CompleteLogin(_ context.Context, id string, at time.Time, rehash *model.PasswordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions++
	if s.err != nil {
		return s.err
	}
	u, ok := s.users[id]
	if !ok || !u.Active {
		return model.ErrUserNotFound
	}
	u.LastLoginAt = &at
	if rehash != nil {
		u.PasswordHash, u.HashAlgorithm = rehash.Hash, rehash.Algorithm
	}
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) ImportBatch(_ context.Context, users []model.WebUser) ([]model.WebUser, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, nil, s.err
	}
	inserted := make([]model.WebUser, 0, len(users))
	duplicates := make([]string, 0)
	for _, u := range users {
		if _, taken := s.byName(u.Username); taken {
			duplicates = append(duplicates, u.Username)
			continue
		}
		s.users[u.ID] = u
		inserted = append(inserted, u)
	}
	return inserted, duplicates, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
}

func (s *fakeAuditStore) Log(_ context.Context, entry model.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) Query(context.Context, model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, model.Meta{}, s.err
	}
	return append([]model.AuditEntry(nil), s.entries...), model.Meta{Page: 1, Limit: 50, Total: len(s.entries), TotalPages: 1}, nil
}

func (s *fakeAuditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type failingAttemptStore struct{}

func (failingAttemptStore) RecordFailure(context.Context, auth.AttemptKey, time.Time, time.Duration) (int, error) {
	return 0, errConnRefused
}

func (failingAttemptStore) Failures(context.Context, auth.AttemptKey, time.Time) ([]time.Time, error) {
	return nil, errConnRefused
}

func (failingAttemptStore) Reset(context.Context, auth.AttemptKey) error {
	return errConnRefused
}

func testHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	h, err := auth.NewHasher(testIterations)
	require.NoError(t, err)
	return h
}

func newUser(t *testing.T, h *auth.Hasher, username string, role model.Role) model.WebUser {
	t.Helper()
	digest, alg, err := h.Hash(strongPassword)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return model.WebUser{
		ID:            "id-" + username,
		Username:      username,
		PasswordHash:  digest,
		HashAlgorithm: alg,
		Role:          role,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func webIdentity(u model.WebUser) model.Identity {
	return model.Identity{Kind: model.PrincipalWebUser, UserID: u.ID, Username: u.Username, Role: u.Role}
}
