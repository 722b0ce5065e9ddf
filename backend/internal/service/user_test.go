package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("creates onboarded user with normalized username", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		inv := &spyInvalidator{}
		svc := NewUser(store, &MockUserValidator{}, inv, testPublicConfig)

		// Act
		user, err := svc.Upsert(ctx, domain.UserProfileData{Id: "u1", Username: "  Alice ", Name: "Alice", Path: "/onboarding"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.True(t, user.Onboarded)
		assert.Empty(t, inv.paths)
	})

	t.Run("update keeps threads and invalidates profile page", func(t *testing.T) {
		// Arrange
		store := newMemStore()
		store.addUser("u1", "alice", "Alice")
		threads, _ := newThreadService(store)
		thread := mustCreate(t, threads, "u1", "hello", nil)
		inv := &spyInvalidator{}
		svc := NewUser(store, &MockUserValidator{}, inv, testPublicConfig)

		// Act
		user, err := svc.Upsert(ctx, domain.UserProfileData{Id: "u1", Username: "alice2", Name: "Alice B", Bio: "hi", Path: "/profile/edit"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "Alice B", user.Name)
		assert.Equal(t, []domain.ThreadId{thread.Id}, user.Threads)
		assert.Equal(t, []string{"/profile/edit"}, inv.paths)
	})

	t.Run("invalid username", func(t *testing.T) {
		store := newMemStore()
		svc := NewUser(store, &MockUserValidator{
			usernameFunc: func(username domain.Username) error { return internal_errors.Validation("bad username") },
		}, &spyInvalidator{}, testPublicConfig)

		_, err := svc.Upsert(ctx, domain.UserProfileData{Id: "u1", Username: "!"})

		assert.True(t, internal_errors.IsValidation(err))
		assert.Equal(t, 0, store.callCount("UpsertUser"))
	})

	t.Run("storage error", func(t *testing.T) {
		store := newMemStore()
		dbErr := errors.New("boom")
		store.errs["UpsertUser"] = dbErr
		inv := &spyInvalidator{}
		svc := NewUser(store, &MockUserValidator{}, inv, testPublicConfig)

		_, err := svc.Upsert(ctx, domain.UserProfileData{Id: "u1", Username: "alice", Path: "/profile/edit"})

		require.ErrorIs(t, err, dbErr)
		assert.Empty(t, inv.paths)
	})
}

func TestUserGet(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", "alice", "Alice")
	svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

	user, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	_, err = svc.Get(context.Background(), "ghost")
	assert.True(t, internal_errors.IsNotFound(err))
}

func TestUserSearch(t *testing.T) {
	ctx := context.Background()

	seed := func() *memStore {
		store := newMemStore()
		for i := range 5 {
			store.addUser(fmt.Sprintf("u%d", i), fmt.Sprintf("user%d", i), fmt.Sprintf("Name %d", i))
		}
		store.addUser("x", "xavier", "Xavier")
		return store
	}

	t.Run("excludes caller and pages", func(t *testing.T) {
		// Arrange
		store := seed()
		svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

		// Act
		users, hasMore, err := svc.Search(ctx, domain.UserSearch{ExcludeId: "x", PageNumber: 1, PageSize: 3})

		// Assert
		require.NoError(t, err)
		assert.Len(t, users, 3)
		assert.True(t, hasMore)
		for _, u := range users {
			assert.NotEqual(t, domain.UserId("x"), u.Id)
		}
		assert.Equal(t, domain.UserId("u4"), users[0].Id, "newest first by default")

		rest, hasMore, err := svc.Search(ctx, domain.UserSearch{ExcludeId: "x", PageNumber: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Len(t, rest, 2)
		assert.False(t, hasMore)
	})

	t.Run("filters by username or name", func(t *testing.T) {
		store := seed()
		svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

		users, hasMore, err := svc.Search(ctx, domain.UserSearch{Search: "  XAV ", PageNumber: 1, PageSize: 10})

		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, domain.UserId("x"), users[0].Id)
		assert.False(t, hasMore)
	})

	t.Run("ascending sort", func(t *testing.T) {
		store := seed()
		svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

		users, _, err := svc.Search(ctx, domain.UserSearch{Sort: domain.SortAsc, PageNumber: 1, PageSize: 2})

		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, domain.UserId("u0"), users[0].Id)
	})

	t.Run("page number too large for an offset", func(t *testing.T) {
		// Arrange
		store := seed()
		svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

		// Act
		users, hasMore, err := svc.Search(ctx, domain.UserSearch{PageNumber: math.MaxInt / 10, PageSize: 20})

		// Assert
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.False(t, hasMore)
		assert.Zero(t, store.callCount("SearchUsers"))
		assert.Zero(t, store.callCount("CountUsers"))
	})

	t.Run("storage error", func(t *testing.T) {
		store := seed()
		dbErr := errors.New("boom")
		store.errs["SearchUsers"] = dbErr
		svc := NewUser(store, &MockUserValidator{}, &spyInvalidator{}, testPublicConfig)

		_, _, err := svc.Search(ctx, domain.UserSearch{})

		require.ErrorIs(t, err, dbErr)
	})
}
