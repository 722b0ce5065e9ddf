package domain

import "time"

type User struct {
	Id        UserId     `json:"id"`
	Username  Username   `json:"username"`
	Name      string     `json:"name"`
	Bio       string     `json:"bio"`
	Image     string     `json:"image"`
	Onboarded bool       `json:"onboarded"`
	Threads   []ThreadId `json:"threads"`
	CreatedAt time.Time  `json:"created_at"`
}

// AuthorProfile is the part of a user shown next to a post
type AuthorProfile struct {
	Id       UserId   `json:"id"`
	Username Username `json:"username,omitempty"`
	Name     string   `json:"name"`
	Image    string   `json:"image"`
}

func (u *User) Profile() AuthorProfile {
	return AuthorProfile{Id: u.Id, Username: u.Username, Name: u.Name, Image: u.Image}
}

type UserProfileData struct {
	Id       UserId
	Username Username
	Name     string
	Bio      string
	Image    string
	Path     string
}

type UserSearch struct {
	ExcludeId  UserId
	Search     string
	PageNumber int
	PageSize   int
	Sort       SortOrder
}

// Page is an offset window over an ordered result set
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
