package models

import "time"

// User is a REST API user allowed to obtain bearer tokens.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Post statuses.
const (
	PostStatusPublish = "publish"
	PostStatusDraft   = "draft"
	PostStatusPrivate = "private"
)

// Post is a single entry served under /wp/v2/posts.
type Post struct {
	ID        int64
	GUID      string
	Slug      string
	Title     string
	Content   string
	Excerpt   string
	Status    string
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostQuery filters and paginates a post listing.
type PostQuery struct {
	Search string
	Status string
	Limit  int
	Offset int
}
