package models

import "time"

type MediaType string

const (
	MediaNone  MediaType = ""
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Media is a stored attachment reference.
type Media struct {
	URL  string
	Type MediaType
}

type Post struct {
	ID        int64     `db:"id" json:"id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	MediaURL  string    `db:"media_url" json:"media_url,omitempty"`
	MediaType MediaType `db:"media_type" json:"media_type,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Like struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Comment struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// LikeResult is the outcome of a toggle.
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// PostStats aggregates the like state of one post for one viewer.
type PostStats struct {
	PostID     int64 `db:"post_id"`
	LikesCount int   `db:"likes_count"`
	LikedByMe  bool  `db:"liked_by_me"`
}
