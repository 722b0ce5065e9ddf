package service

import (
	"context"
	"fmt"
	"math"

	"github.com/itchan-dev/threads/backend/internal/service/utils"
	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/domain"
	"github.com/itchan-dev/threads/shared/revalidate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var threadsCreated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "threads",
		Name:      "threads_created_total",
		Help:      "Threads created, by kind (top_level or reply)",
	},
	[]string{"kind"},
)

type ThreadService interface {
	Create(ctx context.Context, creationData domain.ThreadCreationData) (domain.Thread, error)
	AddComment(ctx context.Context, threadId domain.ThreadId, text domain.ThreadText, author domain.UserId, path string) (domain.Thread, error)
	Feed(ctx context.Context, pageNumber, pageSize int) ([]*domain.ThreadNode, bool, error)
	Tree(ctx context.Context, id domain.ThreadId) (*domain.ThreadNode, error)
	UserThreads(ctx context.Context, userId domain.UserId) (domain.User, []*domain.ThreadNode, error)
}

type Thread struct {
	storage     ThreadStorage
	validator   ThreadValidator
	invalidator revalidate.Invalidator
	resolver    *Resolver
	cfg         config.Public
}

type ThreadStorage interface {
	GraphStorage
	// CreateThread persists the thread and appends its id to the author's threads
	// and to the parent's children as one unit. Missing author or parent is NotFound.
	CreateThread(ctx context.Context, creationData domain.ThreadCreationData) (domain.Thread, error)
	GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error)
	// GetTopLevelThreads returns threads without parent, newest first, ties in insertion order
	GetTopLevelThreads(ctx context.Context, page domain.Page) ([]domain.Thread, error)
	CountTopLevelThreads(ctx context.Context) (int, error)
	GetUser(ctx context.Context, id domain.UserId) (domain.User, error)
}

type ThreadValidator interface {
	Text(text domain.ThreadText) error
}

func NewThread(storage ThreadStorage, validator ThreadValidator, invalidator revalidate.Invalidator, cfg config.Public) ThreadService {
	return &Thread{
		storage:     storage,
		validator:   validator,
		invalidator: invalidator,
		resolver:    NewResolver(storage),
		cfg:         cfg,
	}
}

func (b *Thread) Create(ctx context.Context, creationData domain.ThreadCreationData) (domain.Thread, error) {
	creationData.Text = utils.SanitizeText(creationData.Text)
	if err := b.validator.Text(creationData.Text); err != nil {
		return domain.Thread{}, err
	}

	thread, err := b.storage.CreateThread(ctx, creationData)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}

	kind := "top_level"
	if !thread.IsTopLevel() {
		kind = "reply"
	}
	threadsCreated.WithLabelValues(kind).Inc()

	if creationData.Path != "" {
		b.invalidator.Invalidate(ctx, creationData.Path)
	}
	return thread, nil
}

func (b *Thread) AddComment(ctx context.Context, threadId domain.ThreadId, text domain.ThreadText, author domain.UserId, path string) (domain.Thread, error) {
	return b.Create(ctx, domain.ThreadCreationData{
		Text:     text,
		Author:   author,
		ParentId: &threadId,
		Path:     path,
	})
}

// normalizePage clamps page number to 1 and page size to (0, MaxPageSize].
// ok is false when the window starts beyond any representable offset, such a page is empty.
func normalizePage(pageNumber, pageSize, defaultSize, maxSize int) (page domain.Page, ok bool) {
	if pageSize < 1 {
		pageSize = max(1, defaultSize)
	}
	if maxSize > 0 {
		pageSize = min(pageSize, maxSize)
	}
	page = domain.Page{Number: max(1, pageNumber), Size: pageSize}
	return page, page.Number-1 <= (math.MaxInt-page.Size)/page.Size
}

func (b *Thread) Feed(ctx context.Context, pageNumber, pageSize int) ([]*domain.ThreadNode, bool, error) {
	page, ok := normalizePage(pageNumber, pageSize, b.cfg.FeedPageSize, b.cfg.MaxPageSize)
	if !ok {
		return []*domain.ThreadNode{}, false, nil
	}

	var (
		total   int
		threads []domain.Thread
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = b.storage.CountTopLevelThreads(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		threads, err = b.storage.GetTopLevelThreads(gctx, page)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("failed to fetch feed: %w", err)
	}

	nodes, err := b.resolver.Expand(ctx, threads, FeedDepth)
	if err != nil {
		return nil, false, err
	}
	hasMore := total > page.Offset()+len(nodes)
	return nodes, hasMore, nil
}

func (b *Thread) Tree(ctx context.Context, id domain.ThreadId) (*domain.ThreadNode, error) {
	thread, err := b.storage.GetThread(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", id, err)
	}
	nodes, err := b.resolver.Expand(ctx, []domain.Thread{thread}, TreeDepth)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

func (b *Thread) UserThreads(ctx context.Context, userId domain.UserId) (domain.User, []*domain.ThreadNode, error) {
	user, err := b.storage.GetUser(ctx, userId)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("failed to fetch user %s: %w", userId, err)
	}
	if len(user.Threads) == 0 {
		return user, []*domain.ThreadNode{}, nil
	}

	threads, err := b.storage.GetThreads(ctx, user.Threads)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("failed to fetch threads of user %s: %w", userId, err)
	}
	nodes, err := b.resolver.Expand(ctx, orderByIds(user.Threads, threads), FeedDepth)
	if err != nil {
		return domain.User{}, nil, err
	}
	return user, nodes, nil
}
