package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/domain"
	"github.com/itchan-dev/threads/shared/revalidate"
	"golang.org/x/sync/errgroup"
)

// only the profile editor page is cached per user
const profileEditPath = "/profile/edit"

type UserService interface {
	Upsert(ctx context.Context, profile domain.UserProfileData) (domain.User, error)
	Get(ctx context.Context, id domain.UserId) (domain.User, error)
	Search(ctx context.Context, search domain.UserSearch) ([]domain.User, bool, error)
}

type User struct {
	storage     UserStorage
	validator   UserValidator
	invalidator revalidate.Invalidator
	cfg         config.Public
}

type UserStorage interface {
	// UpsertUser creates or updates the profile keyed by external id and marks it onboarded.
	// Threads and CreatedAt of an existing user are kept.
	UpsertUser(ctx context.Context, profile domain.UserProfileData) (domain.User, error)
	GetUser(ctx context.Context, id domain.UserId) (domain.User, error)
	// SearchUsers and CountUsers must apply the same filter
	SearchUsers(ctx context.Context, search domain.UserSearch) ([]domain.User, error)
	CountUsers(ctx context.Context, search domain.UserSearch) (int, error)
}

type UserValidator interface {
	Username(username domain.Username) error
}

func NewUser(storage UserStorage, validator UserValidator, invalidator revalidate.Invalidator, cfg config.Public) UserService {
	return &User{storage: storage, validator: validator, invalidator: invalidator, cfg: cfg}
}

func (s *User) Upsert(ctx context.Context, profile domain.UserProfileData) (domain.User, error) {
	profile.Username = strings.ToLower(strings.TrimSpace(profile.Username))
	if err := s.validator.Username(profile.Username); err != nil {
		return domain.User{}, err
	}

	user, err := s.storage.UpsertUser(ctx, profile)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create/update user: %w", err)
	}

	if profile.Path == profileEditPath {
		s.invalidator.Invalidate(ctx, profile.Path)
	}
	return user, nil
}

func (s *User) Get(ctx context.Context, id domain.UserId) (domain.User, error) {
	user, err := s.storage.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

func (s *User) Search(ctx context.Context, search domain.UserSearch) ([]domain.User, bool, error) {
	page, ok := normalizePage(search.PageNumber, search.PageSize, s.cfg.UsersPageSize, s.cfg.MaxPageSize)
	if !ok {
		return []domain.User{}, false, nil
	}
	search.PageNumber, search.PageSize = page.Number, page.Size
	search.Search = strings.TrimSpace(search.Search)
	if search.Sort != domain.SortAsc {
		search.Sort = domain.SortDesc
	}

	var (
		total int
		users []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.storage.CountUsers(gctx, search)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.storage.SearchUsers(gctx, search)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("failed to search users: %w", err)
	}

	return users, total > page.Offset()+len(users), nil
}
