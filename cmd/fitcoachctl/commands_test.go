package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

type fakeStore struct {
	users    map[uuid.UUID]*user.User
	setCalls int
	closed   bool
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) SetFreeOverride(_ context.Context, id uuid.UUID, free bool) error {
	s.setCalls++
	s.users[id].FreeOverride = free
	return nil
}

func (s *fakeStore) StartTrial(_ context.Context, id uuid.UUID, endsAt time.Time) error {
	u := s.users[id]
	if u.TrialEndsAt != nil {
		return user.ErrTrialAlreadyUsed
	}
	u.TrialEndsAt = &endsAt
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, confirm func(string) (bool, error)) (*fakeStore, *user.User, func(args ...string) (string, error)) {
	t.Helper()
	u := &user.User{ID: uuid.New(), Email: "ana@example.com"}
	store := &fakeStore{users: map[uuid.UUID]*user.User{u.ID: u}}

	e := &env{
		openStore: func(context.Context) (userStore, func(), error) {
			return store, func() { store.closed = true }, nil
		},
		migrate:       func(context.Context) error { return nil },
		confirm:       confirm,
		trialDuration: 7 * 24 * time.Hour,
		now:           func() time.Time { return fixedNow },
	}

	run := func(args ...string) (string, error) {
		cmd := newRootCmd(e)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}
	return store, u, run
}

func TestUserShow(t *testing.T) {
	store, u, run := setup(t, nil)

	out, err := run("user", "show", "  ANA@example.com ")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")
	assert.True(t, store.closed)

	out, err = run("user", "show", u.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")

	_, err = run("user", "show", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user matches")
}

func TestCompGrant_WithYesFlag(t *testing.T) {
	store, u, run := setup(t, func(string) (bool, error) {
		t.Fatal("confirm should not be called with --yes")
		return false, nil
	})

	_, err := run("comp", "grant", "--yes", u.Email)
	require.NoError(t, err)
	assert.True(t, store.users[u.ID].FreeOverride)
	assert.Equal(t, 1, store.setCalls)

	// already granted
	out, err := run("comp", "grant", "-y", u.Email)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to do")
	assert.Equal(t, 1, store.setCalls)
}

func TestCompRevoke_Confirmation(t *testing.T) {
	var asked string
	answer := false
	store, u, run := setup(t, func(title string) (bool, error) {
		asked = title
		return answer, nil
	})
	store.users[u.ID].FreeOverride = true

	out, err := run("comp", "revoke", u.Email)
	require.NoError(t, err)
	assert.Equal(t, "Remove free access from ana@example.com?", asked)
	assert.Contains(t, out, "Aborted.")
	assert.True(t, store.users[u.ID].FreeOverride)

	answer = true
	_, err = run("comp", "revoke", u.Email)
	require.NoError(t, err)
	assert.False(t, store.users[u.ID].FreeOverride)
}

func TestCompGrant_ConfirmError(t *testing.T) {
	boom := errors.New("no tty")
	store, u, run := setup(t, func(string) (bool, error) { return false, boom })

	_, err := run("comp", "grant", u.Email)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, store.setCalls)
}

func TestTrialStart(t *testing.T) {
	store, u, run := setup(t, nil)

	out, err := run("trial", "start", u.Email)
	require.NoError(t, err)
	assert.Contains(t, out, "2026-03-08T12:00:00Z")
	require.NotNil(t, store.users[u.ID].TrialEndsAt)

	_, err = run("trial", "start", u.Email)
	require.ErrorIs(t, err, user.ErrTrialAlreadyUsed)
}

func TestMigrate(t *testing.T) {
	_, _, run := setup(t, nil)

	out, err := run("migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations applied")
}
