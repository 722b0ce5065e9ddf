package api

import "github.com/itchan-dev/threads/shared/domain"

// Request DTOs

type UpdateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Name     string `json:"name" validate:"required,max=50"`
	Bio      string `json:"bio" validate:"max=1000"`
	Image    string `json:"image" validate:"omitempty,url"`
	Path     string `json:"path,omitempty"`
}

// Response DTOs

type UsersResponse struct {
	Users   []domain.User `json:"users"`
	Page    int           `json:"page"`
	HasMore bool          `json:"has_more"`
}

type UserThreadsResponse struct {
	User    domain.User       `json:"user"`
	Threads []*ThreadResponse `json:"threads"`
}
