package models

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// CanTransition reports whether a request in status s may move to next.
// Only pending requests move, and only to a terminal status.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	return s == RequestPending && (next == RequestAccepted || next == RequestRejected)
}

type FriendRequest struct {
	ID         int64         `db:"id" json:"id"`
	FromUserID int64         `db:"from_user_id" json:"from_user_id"`
	ToUserID   int64         `db:"to_user_id" json:"to_user_id"`
	Status     RequestStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// Friendship is an undirected edge stored under its canonical pair.
type Friendship struct {
	ID         int64     `db:"id" json:"id"`
	UserLowID  int64     `db:"user_low_id" json:"user_low_id"`
	UserHighID int64     `db:"user_high_id" json:"user_high_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Pair is the canonical key of an unordered user pair.
type Pair struct {
	Low  int64
	High int64
}

func PairOf(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}
