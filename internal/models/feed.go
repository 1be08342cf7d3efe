package models

// Author is the public slice of a user attached to content.
type Author struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type CommentView struct {
	Comment
	Author Author `json:"author"`
}

// FeedItem is a post annotated for one viewer.
type FeedItem struct {
	Post
	Author     Author        `json:"author"`
	LikesCount int           `json:"likes_count"`
	LikedByMe  bool          `json:"liked_by_me"`
	Comments   []CommentView `json:"comments"`
}
