package service

import (
	"context"
	"fmt"

	"github.com/itchan-dev/threads/shared/domain"
)

// ActivityService lists replies other users left on someone's threads
type ActivityService interface {
	GetActivity(ctx context.Context, userId domain.UserId) ([]domain.ActivityItem, error)
}

type Activity struct {
	storage ActivityStorage
}

type ActivityStorage interface {
	GraphStorage
	// GetThreadsByAuthor returns every thread written by userId in creation order
	GetThreadsByAuthor(ctx context.Context, userId domain.UserId) ([]domain.Thread, error)
}

func NewActivity(storage ActivityStorage) ActivityService {
	return &Activity{storage: storage}
}

// GetActivity returns replies by others to any thread of userId,
// ordered by the user's threads and then by reply order inside each thread.
// Self-replies are excluded, authors carry only id, name and image.
func (s *Activity) GetActivity(ctx context.Context, userId domain.UserId) ([]domain.ActivityItem, error) {
	own, err := s.storage.GetThreadsByAuthor(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to get user threads: %w", err)
	}

	var childIds []domain.ThreadId
	for _, t := range own {
		childIds = append(childIds, t.Children...)
	}
	if len(childIds) == 0 {
		return []domain.ActivityItem{}, nil
	}

	children, err := s.storage.GetThreads(ctx, unique(childIds))
	if err != nil {
		return nil, fmt.Errorf("failed to get replies: %w", err)
	}

	var replies []domain.Thread
	for _, c := range orderByIds(childIds, children) {
		if c.Author != userId {
			replies = append(replies, c)
		}
	}
	if len(replies) == 0 {
		return []domain.ActivityItem{}, nil
	}

	authorIds := make([]domain.UserId, 0, len(replies))
	for _, r := range replies {
		authorIds = append(authorIds, r.Author)
	}
	users, err := s.storage.GetUsers(ctx, unique(authorIds))
	if err != nil {
		return nil, fmt.Errorf("failed to get reply authors: %w", err)
	}
	authors := make(map[domain.UserId]domain.AuthorProfile, len(users))
	for _, u := range users {
		authors[u.Id] = domain.AuthorProfile{Id: u.Id, Name: u.Name, Image: u.Image}
	}

	items := make([]domain.ActivityItem, 0, len(replies))
	for _, r := range replies {
		author, ok := authors[r.Author]
		if !ok {
			author = domain.AuthorProfile{Id: r.Author}
		}
		items = append(items, domain.ActivityItem{Reply: r, Author: author})
	}
	return items, nil
}
