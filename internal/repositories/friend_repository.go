package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/apperror"
	"social-service/internal/db"
	"social-service/internal/models"
)

type FriendRepository interface {
	CreateRequest(ctx context.Context, fromUserID, toUserID int64) (*models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID int64) (*models.FriendRequest, error)
	GetIncomingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error)
	GetOutgoingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error)
	ListFriends(ctx context.Context, userID int64) ([]int64, error)
	HasPendingRequest(ctx context.Context, userID, otherID int64) (bool, error)
	AreFriends(ctx context.Context, userID, otherID int64) (bool, error)
}

var (
	ErrSelfRequest      = apperror.InvalidRequest("cannot send a friend request to yourself")
	ErrAlreadyFriends   = apperror.DuplicateRequest("users are already friends")
	ErrPendingExists    = apperror.DuplicateRequest("a pending friend request already exists")
	ErrRequestNotFound  = apperror.NotFound("friend request not found")
	ErrRequestForbidden = apperror.Forbidden("only the recipient can answer a friend request")
	ErrRequestAnswered  = apperror.InvalidState("friend request is no longer pending")
)

const requestColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

type friendRepository struct {
	sqlStore
}

func NewFriendRepository(conn *sqlx.DB) FriendRepository {
	return &friendRepository{sqlStore{db: conn}}
}

func (r *friendRepository) CreateRequest(ctx context.Context, fromUserID, toUserID int64) (*models.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}
	pair := models.PairOf(fromUserID, toUserID)
	now := time.Now().UTC()

	var req models.FriendRequest
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lock(ctx, tx, pairKey("friend", pair.Low, pair.High)); err != nil {
			return err
		}

		friends, err := r.friendsTx(ctx, tx, pair)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		var pending bool
		if err := tx.GetContext(ctx, &pending, tx.Rebind(`
SELECT EXISTS(
SELECT 1 FROM friend_requests
WHERE user_low_id=? AND user_high_id=? AND status='pending'
)`), pair.Low, pair.High); err != nil {
			return err
		}
		if pending {
			return ErrPendingExists
		}

		err = tx.QueryRowxContext(ctx, tx.Rebind(`
INSERT INTO friend_requests (from_user_id, to_user_id, user_low_id, user_high_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, 'pending', ?, ?)
RETURNING id
`), fromUserID, toUserID, pair.Low, pair.High, now, now).Scan(&req.ID)
		if db.IsUniqueViolation(err) {
			return ErrPendingExists
		}
		if err != nil {
			return err
		}
		req.FromUserID = fromUserID
		req.ToUserID = toUserID
		req.Status = models.RequestPending
		req.CreatedAt = now
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, apperror.Storage("failed to create friend request", err)
	}

	return &req, nil
}

func (r *friendRepository) GetRequest(ctx context.Context, requestID int64) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, r.db.Rebind(`SELECT `+requestColumns+` FROM friend_requests WHERE id=?`), requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, apperror.Storage("failed to load friend request", err)
	}
	return &req, nil
}

func (r *friendRepository) GetIncomingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error) {
	return r.pendingRequests(ctx, "to_user_id", userID)
}

func (r *friendRepository) GetOutgoingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error) {
	return r.pendingRequests(ctx, "from_user_id", userID)
}

func (r *friendRepository) pendingRequests(ctx context.Context, column string, userID int64) ([]models.FriendRequest, error) {
	reqs := []models.FriendRequest{}
	err := r.db.SelectContext(ctx, &reqs, r.db.Rebind(`
SELECT `+requestColumns+`
FROM friend_requests
WHERE `+column+`=? AND status='pending'
ORDER BY created_at DESC, id DESC
`), userID)
	if err != nil {
		return nil, apperror.Storage("failed to list friend requests", err)
	}
	return reqs, nil
}

func (r *friendRepository) AcceptRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	return r.answer(ctx, requestID, userID, models.RequestAccepted)
}

func (r *friendRepository) RejectRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	return r.answer(ctx, requestID, userID, models.RequestRejected)
}

// answer moves a pending request to a terminal status. Accepting also creates
// the friendship in the same transaction.
func (r *friendRepository) answer(ctx context.Context, requestID, userID int64, next models.RequestStatus) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &req, tx.Rebind(`SELECT `+requestColumns+` FROM friend_requests WHERE id=?`), requestID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.ToUserID != userID {
			return ErrRequestForbidden
		}
		if !req.Status.CanTransition(next) {
			return ErrRequestAnswered
		}

		pair := models.PairOf(req.FromUserID, req.ToUserID)
		if err := r.lock(ctx, tx, pairKey("friend", pair.Low, pair.High)); err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE friend_requests SET status=?, updated_at=?
WHERE id=? AND status='pending'
`), next, now, requestID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrRequestAnswered
		}
		req.Status = next
		req.UpdatedAt = now

		if next != models.RequestAccepted {
			return nil
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO friendships (user_low_id, user_high_id, created_at) VALUES (?, ?, ?)
ON CONFLICT (user_low_id, user_high_id) DO NOTHING
`), pair.Low, pair.High, now)
		return err
	})
	if err != nil {
		return nil, apperror.Storage("failed to answer friend request", err)
	}
	return &req, nil
}

func (r *friendRepository) ListFriends(ctx context.Context, userID int64) ([]int64, error) {
	friends := []int64{}
	err := r.db.SelectContext(ctx, &friends, r.db.Rebind(`
SELECT user_high_id AS friend_id FROM friendships WHERE user_low_id=?
UNION
SELECT user_low_id AS friend_id FROM friendships WHERE user_high_id=?
ORDER BY friend_id
`), userID, userID)
	if err != nil {
		return nil, apperror.Storage("failed to list friends", err)
	}
	return friends, nil
}

func (r *friendRepository) HasPendingRequest(ctx context.Context, userID, otherID int64) (bool, error) {
	pair := models.PairOf(userID, otherID)
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`
SELECT EXISTS(
SELECT 1 FROM friend_requests
WHERE user_low_id=? AND user_high_id=? AND status='pending'
)`), pair.Low, pair.High)
	if err != nil {
		return false, apperror.Storage("failed to check pending request", err)
	}
	return exists, nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	if userID == otherID {
		return false, nil
	}
	pair := models.PairOf(userID, otherID)
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(`
SELECT EXISTS(
SELECT 1 FROM friendships WHERE user_low_id=? AND user_high_id=?
)`), pair.Low, pair.High)
	if err != nil {
		return false, apperror.Storage("failed to check friendship", err)
	}
	return exists, nil
}

func (r *friendRepository) friendsTx(ctx context.Context, tx *sqlx.Tx, pair models.Pair) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, tx.Rebind(`
SELECT EXISTS(
SELECT 1 FROM friendships WHERE user_low_id=? AND user_high_id=?
)`), pair.Low, pair.High)
	return exists, err
}
