package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	sharedpg "github.com/itchan-dev/threads/shared/storage/pg"
	"github.com/lib/pq"
)

const threadColumns = "id, text, author_id, parent_id, children, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (domain.Thread, error) {
	var (
		t        domain.Thread
		parentId sql.NullString
		children pq.StringArray
	)
	if err := row.Scan(&t.Id, &t.Text, &t.Author, &parentId, &children, &t.CreatedAt); err != nil {
		return domain.Thread{}, err
	}
	if parentId.Valid {
		t.ParentId = &parentId.String
	}
	t.Children = []domain.ThreadId(children)
	if t.Children == nil {
		t.Children = []domain.ThreadId{}
	}
	return t, nil
}

// queryThreads runs query on the pool or inside a transaction and scans every row
func queryThreads(ctx context.Context, q sharedpg.Querier, query string, args ...any) ([]domain.Thread, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	threads := []domain.Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	return threads, nil
}

// CreateThread inserts the thread and appends its id to the author's threads
// and the parent's children in one transaction. Appends are done with array_append
// so concurrent replies to the same parent never overwrite each other.
func (s *Storage) CreateThread(ctx context.Context, data domain.ThreadCreationData) (domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var thread domain.Thread
	err := sharedpg.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		thread, err = insertThread(ctx, tx, data)
		return err
	})
	if err != nil {
		return domain.Thread{}, err
	}
	return thread, nil
}

func insertThread(ctx context.Context, q sharedpg.Querier, data domain.ThreadCreationData) (domain.Thread, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", data.Author).Scan(&exists); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to validate author: %w", err)
	}
	if !exists {
		return domain.Thread{}, internal_errors.NotFound("User %s not found", data.Author)
	}

	var parentId sql.NullString
	if data.ParentId != nil {
		if _, err := uuid.Parse(*data.ParentId); err != nil {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", *data.ParentId)
		}
		parentId = sql.NullString{String: *data.ParentId, Valid: true}
	}

	thread, err := scanThread(q.QueryRowContext(ctx, `
		INSERT INTO threads (text, author_id, parent_id)
		VALUES ($1, $2, $3)
		RETURNING `+threadColumns,
		data.Text, data.Author, parentId,
	))
	if err != nil {
		if pqCode(err) == foreignKeyViolation {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", parentId.String)
		}
		return domain.Thread{}, fmt.Errorf("failed to insert thread: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE users SET threads = array_append(threads, $1::uuid) WHERE id = $2",
		thread.Id, data.Author,
	); err != nil {
		return domain.Thread{}, fmt.Errorf("failed to append thread to author: %w", err)
	}

	if parentId.Valid {
		res, err := q.ExecContext(ctx,
			"UPDATE threads SET children = array_append(children, $1::uuid) WHERE id = $2",
			thread.Id, parentId.String,
		)
		if err != nil {
			return domain.Thread{}, fmt.Errorf("failed to append reply to parent: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return domain.Thread{}, fmt.Errorf("failed to append reply to parent: %w", err)
		} else if n == 0 {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", parentId.String)
		}
	}
	return thread, nil
}

func (s *Storage) GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return domain.Thread{}, internal_errors.NotFound("Thread %s not found", id)
	}
	thread, err := scanThread(s.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM threads WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", id)
		}
		return domain.Thread{}, fmt.Errorf("failed to fetch thread: %w", err)
	}
	return thread, nil
}

func (s *Storage) GetThreads(ctx context.Context, ids []domain.ThreadId) ([]domain.Thread, error) {
	ids = validThreadIds(ids)
	if len(ids) == 0 {
		return []domain.Thread{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	threads, err := queryThreads(ctx, s.db,
		"SELECT "+threadColumns+" FROM threads WHERE id = ANY($1::uuid[])", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch threads: %w", err)
	}
	return threads, nil
}

func (s *Storage) GetTopLevelThreads(ctx context.Context, page domain.Page) ([]domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	threads, err := queryThreads(ctx, s.db, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE parent_id IS NULL
		ORDER BY created_at DESC, seq ASC
		LIMIT $1 OFFSET $2
	`, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top level threads: %w", err)
	}
	return threads, nil
}

func (s *Storage) CountTopLevelThreads(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM threads WHERE parent_id IS NULL").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count top level threads: %w", err)
	}
	return count, nil
}

func (s *Storage) GetThreadsByAuthor(ctx context.Context, userId domain.UserId) ([]domain.Thread, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	threads, err := queryThreads(ctx, s.db,
		"SELECT "+threadColumns+" FROM threads WHERE author_id = $1 ORDER BY seq", userId)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch threads of user: %w", err)
	}
	return threads, nil
}
