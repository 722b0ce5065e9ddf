package domain

type (
	UserId   = string
	ThreadId = string

	Username   = string
	ThreadText = string

	SortOrder string
)

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)
