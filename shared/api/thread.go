package api

import (
	"github.com/itchan-dev/threads/shared/domain"
)

// Request DTOs

type CreateThreadRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
	Path string `json:"path,omitempty"` // rendered path to invalidate
}

// Response DTOs

// ThreadResponse is a resolved thread with its text rendered to HTML
type ThreadResponse struct {
	domain.Thread
	TextHTML      string                `json:"text_html"`
	AuthorProfile *domain.AuthorProfile `json:"author_profile,omitempty"`
	Replies       []*ThreadResponse     `json:"replies,omitempty"`
}

type CreateThreadResponse struct {
	Id domain.ThreadId `json:"id"`
}

type FeedResponse struct {
	Threads []*ThreadResponse `json:"threads"`
	Page    int               `json:"page"`
	HasMore bool              `json:"has_more"`
}

type ActivityResponse struct {
	Replies []domain.ActivityItem `json:"replies"`
}
