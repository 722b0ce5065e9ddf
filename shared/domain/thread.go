package domain

import (
	"time"
)

// to iterate thru layers: handler -> service -> storage
type ThreadCreationData struct {
	Text     ThreadText
	Author   UserId
	ParentId *ThreadId
	Path     string // rendering path to invalidate after the write, may be empty
}

type Thread struct {
	Id        ThreadId   `json:"id"`
	Text      ThreadText `json:"text"`
	Author    UserId     `json:"author"`
	ParentId  *ThreadId  `json:"parent_id,omitempty"`
	Children  []ThreadId `json:"children"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t *Thread) IsTopLevel() bool {
	return t.ParentId == nil
}

// ThreadNode is a thread with its author and replies resolved.
// Replies is nil when the level was not expanded, Children always holds the raw ids.
type ThreadNode struct {
	Thread
	AuthorProfile *AuthorProfile `json:"author_profile,omitempty"`
	Replies       []*ThreadNode  `json:"replies,omitempty"`
}

type ActivityItem struct {
	Reply  Thread        `json:"reply"`
	Author AuthorProfile `json:"author"`
}
