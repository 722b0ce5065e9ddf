package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
	sharedpg "github.com/itchan-dev/threads/shared/storage/pg"
	"github.com/lib/pq"
)

const userColumns = "id, username, name, bio, image, onboarded, threads, created_at"

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u       domain.User
		threads pq.StringArray
	)
	if err := row.Scan(&u.Id, &u.Username, &u.Name, &u.Bio, &u.Image, &u.Onboarded, &threads, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.Threads = []domain.ThreadId(threads)
	if u.Threads == nil {
		u.Threads = []domain.ThreadId{}
	}
	return u, nil
}

// queryUsers runs query on the pool or inside a transaction and scans every row
func queryUsers(ctx context.Context, q sharedpg.Querier, query string, args ...any) ([]domain.User, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *Storage) UpsertUser(ctx context.Context, p domain.UserProfileData) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, name, bio, image, onboarded)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			name = EXCLUDED.name,
			bio = EXCLUDED.bio,
			image = EXCLUDED.image,
			onboarded = TRUE
		RETURNING `+userColumns,
		p.Id, p.Username, p.Name, p.Bio, p.Image,
	))
	if err != nil {
		if pqCode(err) == uniqueViolation {
			return domain.User{}, internal_errors.Validation("Username %s is already taken", p.Username)
		}
		return domain.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, internal_errors.NotFound("User %s not found", id)
		}
		return domain.User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

func (s *Storage) GetUsers(ctx context.Context, ids []domain.UserId) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	users, err := queryUsers(ctx, s.db, "SELECT "+userColumns+" FROM users WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// userFilter is shared by SearchUsers and CountUsers so count and page never disagree
func userFilter(search domain.UserSearch) (string, []any) {
	where := "id <> $1"
	args := []any{search.ExcludeId}
	if search.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(search.Search)+"%")
		where += ` AND (username ILIKE $2 ESCAPE '\' OR name ILIKE $2 ESCAPE '\')`
	}
	return where, args
}

func (s *Storage) SearchUsers(ctx context.Context, search domain.UserSearch) ([]domain.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	direction := "DESC"
	if search.Sort == domain.SortAsc {
		direction = "ASC"
	}
	where, args := userFilter(search)
	page := domain.Page{Number: search.PageNumber, Size: search.PageSize}
	args = append(args, page.Size, page.Offset())
	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE %s
		ORDER BY created_at %s, id %s
		LIMIT $%d OFFSET $%d
	`, userColumns, where, direction, direction, len(args)-1, len(args))

	users, err := queryUsers(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (s *Storage) CountUsers(ctx context.Context, search domain.UserSearch) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := userFilter(search)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM users WHERE "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
