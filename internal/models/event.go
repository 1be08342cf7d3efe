package models

import "time"

const (
	EventFriendRequestSent     = "friend.request.sent"
	EventFriendRequestAccepted = "friend.request.accepted"
	EventFriendRequestRejected = "friend.request.rejected"
	EventPostCreated           = "post.created"
	EventPostDeleted           = "post.deleted"
	EventPostLiked             = "post.liked"
	EventPostUnliked           = "post.unliked"
	EventCommentCreated        = "comment.created"
)

// Event is an immutable record of a committed mutation. Recipients lists the
// users a realtime channel should deliver it to; brokers ignore it.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    int64     `json:"actor_id"`
	Recipients []int64   `json:"-"`
	Payload    any       `json:"payload"`
}

type RequestSentPayload struct {
	RequestID  int64 `json:"request_id"`
	FromUserID int64 `json:"from_user_id"`
	ToUserID   int64 `json:"to_user_id"`
}

type RequestDecisionPayload struct {
	RequestID  int64 `json:"request_id"`
	FromUserID int64 `json:"from_user_id"`
	ToUserID   int64 `json:"to_user_id"`
}

type PostPayload struct {
	PostID   int64 `json:"post_id"`
	AuthorID int64 `json:"author_id"`
}

type LikePayload struct {
	PostID int64 `json:"post_id"`
	UserID int64 `json:"user_id"`
}

type CommentPayload struct {
	CommentID int64 `json:"comment_id"`
	PostID    int64 `json:"post_id"`
	AuthorID  int64 `json:"author_id"`
}
