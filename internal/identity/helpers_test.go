// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/assetdesk/internal/security"
	"github.com/jeranaias/assetdesk/internal/store"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type auditRecord struct {
	Event   string
	Actor   string
	Success bool
	Meta    map[string]string
}

type recordingAuditor struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *recordingAuditor) Record(_ context.Context, event, actor string, success bool, meta map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{event, actor, success, meta})
}

func (a *recordingAuditor) events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.Event
	}
	return out
}

// faultyStore fails every operation once broken is set.
type faultyStore struct {
	store.Store
	broken bool
}

func (f *faultyStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	if f.broken {
		return false, fmt.Errorf("%w: disk unreadable", store.ErrStorage)
	}
	return f.Store.Get(ctx, key, dest)
}

func (f *faultyStore) Set(ctx context.Context, key string, value any) error {
	if f.broken {
		return fmt.Errorf("%w: disk full", store.ErrStorage)
	}
	return f.Store.Set(ctx, key, value)
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

type testEnv struct {
	m     *Manager
	st    *faultyStore
	clock *fakeClock
	audit *recordingAuditor
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		st:    &faultyStore{Store: store.NewMemoryStore()},
		clock: &fakeClock{now: time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)},
		audit: &recordingAuditor{},
	}
	env.m = env.newManager(opts...)
	require.NoError(t, env.m.Bootstrap(context.Background()))
	return env
}

// newManager builds another manager over the same store and clock, as a
// second process start would.
func (e *testEnv) newManager(opts ...Option) *Manager {
	base := []Option{
		WithHasher(security.NewPasswordHasher(bcrypt.MinCost)),
		WithClock(e.clock.Now),
		WithAuditor(e.audit),
	}
	return New(e.st, append(base, opts...)...)
}

func (e *testEnv) login(t *testing.T, username, password string) LoginData {
	t.Helper()
	res, err := e.m.Login(context.Background(), Credentials{Username: username, Password: password})
	require.NoError(t, err)
	require.True(t, res.Success, "login %s: %+v", username, res.Failure)
	return res.Data
}

func (e *testEnv) loginAdmin(t *testing.T) LoginData {
	t.Helper()
	return e.login(t, DefaultAdminUsername, DefaultAdminPassword)
}

// createUser signs in as admin, creates the user, and signs out again.
func (e *testEnv) createUser(t *testing.T, username, password string, role Role, clients ...string) PublicUser {
	t.Helper()
	ctx := context.Background()
	e.loginAdmin(t)
	res, err := e.m.CreateUser(ctx, NewUser{
		Username:        username,
		Password:        password,
		Role:            role,
		AssignedClients: clients,
	})
	require.NoError(t, err)
	require.True(t, res.Success, "create %s: %+v", username, res.Failure)
	require.NoError(t, e.m.Logout(ctx))
	return res.Data
}

func (e *testEnv) storedUsers(t *testing.T) []User {
	t.Helper()
	var users []User
	_, err := e.st.Get(context.Background(), KeyUsers, &users)
	require.NoError(t, err)
	return users
}

func (e *testEnv) storedUser(t *testing.T, id int) User {
	t.Helper()
	u := findUserByID(e.storedUsers(t), id)
	require.NotNil(t, u, "user %d", id)
	return *u
}

func (e *testEnv) storedSessions(t *testing.T) []Session {
	t.Helper()
	var sessions []Session
	_, err := e.st.Get(context.Background(), KeySessions, &sessions)
	require.NoError(t, err)
	return sessions
}
