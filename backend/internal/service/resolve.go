package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/itchan-dev/threads/shared/domain"
)

const (
	FeedDepth = 2 // thread, its replies
	TreeDepth = 3 // thread, replies, replies to replies
)

// GraphStorage is everything the resolver needs from a store
type GraphStorage interface {
	// GetThreads returns the threads that exist among ids, in any order
	GetThreads(ctx context.Context, ids []domain.ThreadId) ([]domain.Thread, error)
	// GetUsers returns the users that exist among ids, in any order
	GetUsers(ctx context.Context, ids []domain.UserId) ([]domain.User, error)
}

// Resolver expands threads into trees of bounded depth.
// Every level costs one batched thread query and one batched user query.
type Resolver struct {
	storage GraphStorage
}

func NewResolver(storage GraphStorage) *Resolver {
	return &Resolver{storage: storage}
}

// frontier entry: a node waiting for its author and replies
type pending struct {
	node      *domain.ThreadNode
	ancestors []domain.ThreadId
}

// Expand resolves roots down to depth levels (1 = roots and their authors only).
// Replies below depth are left nil, their ids stay in Children.
// A reply that points back to one of its ancestors is not expanded.
func (r *Resolver) Expand(ctx context.Context, roots []domain.Thread, depth int) ([]*domain.ThreadNode, error) {
	nodes := make([]*domain.ThreadNode, len(roots))
	level := make([]pending, len(roots))
	for i, t := range roots {
		nodes[i] = &domain.ThreadNode{Thread: t}
		level[i] = pending{node: nodes[i]}
	}

	for d := 1; d <= depth && len(level) > 0; d++ {
		if err := r.attachAuthors(ctx, level); err != nil {
			return nil, err
		}
		if d == depth {
			break
		}
		next, err := r.attachReplies(ctx, level)
		if err != nil {
			return nil, err
		}
		level = next
	}
	return nodes, nil
}

func (r *Resolver) attachAuthors(ctx context.Context, level []pending) error {
	ids := make([]domain.UserId, 0, len(level))
	for _, p := range level {
		ids = append(ids, p.node.Author)
	}
	users, err := r.storage.GetUsers(ctx, unique(ids))
	if err != nil {
		return fmt.Errorf("failed to resolve authors: %w", err)
	}
	profiles := make(map[domain.UserId]domain.AuthorProfile, len(users))
	for _, u := range users {
		profiles[u.Id] = u.Profile()
	}
	for _, p := range level {
		if profile, ok := profiles[p.node.Author]; ok {
			p.node.AuthorProfile = &profile
		}
	}
	return nil
}

func (r *Resolver) attachReplies(ctx context.Context, level []pending) ([]pending, error) {
	var ids []domain.ThreadId
	for _, p := range level {
		ids = append(ids, p.node.Children...)
	}
	byId := map[domain.ThreadId]domain.Thread{}
	if len(ids) > 0 {
		children, err := r.storage.GetThreads(ctx, unique(ids))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve replies: %w", err)
		}
		for _, c := range children {
			byId[c.Id] = c
		}
	}

	var next []pending
	for _, p := range level {
		path := append(slices.Clone(p.ancestors), p.node.Id)
		p.node.Replies = make([]*domain.ThreadNode, 0, len(p.node.Children))
		for _, id := range p.node.Children {
			child, ok := byId[id]
			if !ok || slices.Contains(path, id) {
				continue
			}
			cn := &domain.ThreadNode{Thread: child}
			p.node.Replies = append(p.node.Replies, cn)
			next = append(next, pending{node: cn, ancestors: path})
		}
	}
	return next, nil
}

// orderByIds lays threads out in ids order, repeating duplicates and skipping missing ones
func orderByIds(ids []domain.ThreadId, threads []domain.Thread) []domain.Thread {
	byId := make(map[domain.ThreadId]domain.Thread, len(threads))
	for _, t := range threads {
		byId[t.Id] = t
	}
	ordered := make([]domain.Thread, 0, len(ids))
	for _, id := range ids {
		if t, ok := byId[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

func unique[T comparable](ids []T) []T {
	seen := make(map[T]struct{}, len(ids))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
