package pg

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateThread(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		author := setupUser(t)
		start := time.Now()

		thread, err := storage.CreateThread(ctx, domain.ThreadCreationData{Text: "hello world", Author: author.Id})
		require.NoError(t, err)

		_, err = uuid.Parse(thread.Id)
		assert.NoError(t, err, "thread id should be a uuid")
		assert.Equal(t, "hello world", thread.Text)
		assert.Equal(t, author.Id, thread.Author)
		assert.Nil(t, thread.ParentId)
		assert.NotNil(t, thread.Children)
		assert.Empty(t, thread.Children)
		assert.WithinDuration(t, start, thread.CreatedAt, 5*time.Second)

		user, err := storage.GetUser(ctx, author.Id)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{thread.Id}, user.Threads)

		fetched, err := storage.GetThread(ctx, thread.Id)
		require.NoError(t, err)
		assert.Equal(t, thread.Text, fetched.Text)
		assert.Equal(t, thread.Author, fetched.Author)
	})

	t.Run("Reply", func(t *testing.T) {
		op := setupUser(t)
		replier := setupUser(t)
		parent := createThread(t, op.Id, "parent", nil)

		reply := createThread(t, replier.Id, "reply", &parent.Id)

		require.NotNil(t, reply.ParentId)
		assert.Equal(t, parent.Id, *reply.ParentId)
		stored, err := storage.GetThread(ctx, parent.Id)
		require.NoError(t, err)
		assert.Equal(t, []domain.ThreadId{reply.Id}, stored.Children)
	})

	t.Run("ConcurrentRepliesAreAllKept", func(t *testing.T) {
		op := setupUser(t)
		parent := createThread(t, op.Id, "busy parent", nil)

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := storage.CreateThread(ctx, domain.ThreadCreationData{
					Text: fmt.Sprintf("reply %d", i), Author: op.Id, ParentId: &parent.Id,
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		stored, err := storage.GetThread(ctx, parent.Id)
		require.NoError(t, err)
		assert.Len(t, stored.Children, n)
		user, err := storage.GetUser(ctx, op.Id)
		require.NoError(t, err)
		assert.Len(t, user.Threads, n+1)
	})

	t.Run("ParentNotFound", func(t *testing.T) {
		author := setupUser(t)
		for _, missing := range []string{uuid.NewString(), "not-a-uuid"} {
			_, err := storage.CreateThread(ctx, domain.ThreadCreationData{Text: "orphan", Author: author.Id, ParentId: &missing})
			require.Error(t, err)
			assert.True(t, internal_errors.IsNotFound(err), "expected not found for %q, got %v", missing, err)
		}

		user, err := storage.GetUser(ctx, author.Id)
		require.NoError(t, err)
		assert.Empty(t, user.Threads, "nothing should be persisted")
	})

	t.Run("AuthorNotFound", func(t *testing.T) {
		_, err := storage.CreateThread(ctx, domain.ThreadCreationData{Text: "ghost", Author: "ghost_" + uuid.NewString()})
		require.Error(t, err)
		assert.True(t, internal_errors.IsNotFound(err))
	})
}

func TestGetThread(t *testing.T) {
	ctx := context.Background()

	for _, id := range []string{uuid.NewString(), "garbage"} {
		_, err := storage.GetThread(ctx, id)
		require.Error(t, err)
		assert.True(t, internal_errors.IsNotFound(err))
		assert.Contains(t, err.Error(), id)
	}
}

func TestGetThreads(t *testing.T) {
	ctx := context.Background()
	author := setupUser(t)
	a := createThread(t, author.Id, "a", nil)
	b := createThread(t, author.Id, "b", nil)

	threads, err := storage.GetThreads(ctx, []domain.ThreadId{a.Id, "garbage", uuid.NewString(), b.Id})
	require.NoError(t, err)
	require.Len(t, threads, 2)
	ids := []domain.ThreadId{threads[0].Id, threads[1].Id}
	assert.ElementsMatch(t, []domain.ThreadId{a.Id, b.Id}, ids)

	empty, err := storage.GetThreads(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTopLevelThreads(t *testing.T) {
	ctx := context.Background()
	author := setupUser(t)

	before, err := storage.CountTopLevelThreads(ctx)
	require.NoError(t, err)

	var created []domain.Thread
	for i := range 5 {
		created = append(created, createThread(t, author.Id, fmt.Sprintf("top %d", i), nil))
		time.Sleep(2 * time.Millisecond)
	}
	createThread(t, author.Id, "reply", &created[0].Id)

	after, err := storage.CountTopLevelThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+5, after, "replies must not be counted")

	page, err := storage.GetTopLevelThreads(ctx, domain.Page{Number: 1, Size: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, created[4].Id, page[0].Id)
	assert.Equal(t, created[3].Id, page[1].Id)
	assert.Equal(t, created[2].Id, page[2].Id)
	for i := 1; i < len(page); i++ {
		assert.False(t, page[i].CreatedAt.After(page[i-1].CreatedAt))
	}

	next, err := storage.GetTopLevelThreads(ctx, domain.Page{Number: 2, Size: 3})
	require.NoError(t, err)
	require.NotEmpty(t, next)
	assert.Equal(t, created[1].Id, next[0].Id)
}

func TestGetThreadsByAuthor(t *testing.T) {
	ctx := context.Background()
	author := setupUser(t)
	other := setupUser(t)
	first := createThread(t, author.Id, "first", nil)
	createThread(t, other.Id, "not mine", &first.Id)
	second := createThread(t, author.Id, "second", &first.Id)

	threads, err := storage.GetThreadsByAuthor(ctx, author.Id)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, first.Id, threads[0].Id)
	assert.Equal(t, second.Id, threads[1].Id)
	assert.Len(t, threads[0].Children, 2)
}
