package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/apperror"
	"social-service/internal/models"
)

type ContentRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID int64) (*models.Post, error)
	DeletePost(ctx context.Context, postID, userID int64) (*models.Post, error)
	ListPostsByAuthors(ctx context.Context, authorIDs []int64) ([]models.Post, error)
	ToggleLike(ctx context.Context, postID, userID int64) (models.LikeResult, error)
	PostStats(ctx context.Context, postIDs []int64, viewerID int64) (map[int64]models.PostStats, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postIDs []int64) (map[int64][]models.Comment, error)
}

var (
	ErrPostNotFound  = apperror.NotFound("post not found")
	ErrPostForbidden = apperror.Forbidden("only the author can delete a post")
)

const (
	postColumns    = `id, author_id, content, media_url, media_type, created_at`
	commentColumns = `id, post_id, author_id, content, created_at`
)

type contentRepository struct {
	sqlStore
}

func NewContentRepository(conn *sqlx.DB) ContentRepository {
	return &contentRepository{sqlStore{db: conn}}
}

func (r *contentRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
INSERT INTO posts (author_id, content, media_url, media_type, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`), post.AuthorID, post.Content, post.MediaURL, post.MediaType, post.CreatedAt).Scan(&post.ID)
	return apperror.Storage("failed to create post", err)
}

func (r *contentRepository) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	var post models.Post
	err := r.db.GetContext(ctx, &post, r.db.Rebind(`SELECT `+postColumns+` FROM posts WHERE id=?`), postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, apperror.Storage("failed to load post", err)
	}
	return &post, nil
}

// DeletePost removes the post with its likes and comments.
func (r *contentRepository) DeletePost(ctx context.Context, postID, userID int64) (*models.Post, error) {
	var post models.Post
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lock(ctx, tx, fmt.Sprintf("post:%d", postID)); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &post, tx.Rebind(`SELECT `+postColumns+` FROM posts WHERE id=?`), postID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPostNotFound
			}
			return err
		}
		if post.AuthorID != userID {
			return ErrPostForbidden
		}
		for _, q := range []string{
			`DELETE FROM likes WHERE post_id=?`,
			`DELETE FROM comments WHERE post_id=?`,
			`DELETE FROM posts WHERE id=?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(q), postID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperror.Storage("failed to delete post", err)
	}
	return &post, nil
}

func (r *contentRepository) ListPostsByAuthors(ctx context.Context, authorIDs []int64) ([]models.Post, error) {
	posts := []models.Post{}
	if len(authorIDs) == 0 {
		return posts, nil
	}
	query, args, err := sqlx.In(`
SELECT `+postColumns+`
FROM posts
WHERE author_id IN (?)
ORDER BY created_at DESC, id DESC
`, authorIDs)
	if err != nil {
		return nil, apperror.Storage("failed to build post query", err)
	}
	if err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...); err != nil {
		return nil, apperror.Storage("failed to list posts", err)
	}
	return posts, nil
}

// ToggleLike flips the like of userID on postID and reports the new state.
func (r *contentRepository) ToggleLike(ctx context.Context, postID, userID int64) (models.LikeResult, error) {
	var result models.LikeResult
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lock(ctx, tx, fmt.Sprintf("like:%d:%d", postID, userID)); err != nil {
			return err
		}
		if err := r.postExists(ctx, tx, postID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM likes WHERE post_id=? AND user_id=?`), postID, userID)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)
ON CONFLICT (post_id, user_id) DO NOTHING
`), postID, userID, time.Now().UTC()); err != nil {
				return err
			}
			result.Liked = true
		}

		return tx.GetContext(ctx, &result.LikesCount, tx.Rebind(`SELECT COUNT(*) FROM likes WHERE post_id=?`), postID)
	})
	if err != nil {
		return models.LikeResult{}, apperror.Storage("failed to toggle like", err)
	}
	return result, nil
}

type statsRow struct {
	PostID     int64 `db:"post_id"`
	LikesCount int   `db:"likes_count"`
	LikedByMe  int   `db:"liked_by_me"`
}

func (r *contentRepository) PostStats(ctx context.Context, postIDs []int64, viewerID int64) (map[int64]models.PostStats, error) {
	out := make(map[int64]models.PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
SELECT post_id, COUNT(*) AS likes_count, MAX(CASE WHEN user_id=? THEN 1 ELSE 0 END) AS liked_by_me
FROM likes
WHERE post_id IN (?)
GROUP BY post_id
`, viewerID, postIDs)
	if err != nil {
		return nil, apperror.Storage("failed to build stats query", err)
	}
	var rows []statsRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, apperror.Storage("failed to load post stats", err)
	}
	for _, row := range rows {
		out[row.PostID] = models.PostStats{PostID: row.PostID, LikesCount: row.LikesCount, LikedByMe: row.LikedByMe == 1}
	}
	return out, nil
}

func (r *contentRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	comment.CreatedAt = time.Now().UTC()
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.postExists(ctx, tx, comment.PostID); err != nil {
			return err
		}
		return tx.QueryRowxContext(ctx, tx.Rebind(`
INSERT INTO comments (post_id, author_id, content, created_at)
VALUES (?, ?, ?, ?)
RETURNING id
`), comment.PostID, comment.AuthorID, comment.Content, comment.CreatedAt).Scan(&comment.ID)
	})
	return apperror.Storage("failed to add comment", err)
}

func (r *contentRepository) ListComments(ctx context.Context, postIDs []int64) (map[int64][]models.Comment, error) {
	out := make(map[int64][]models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
SELECT `+commentColumns+`
FROM comments
WHERE post_id IN (?)
ORDER BY created_at, id
`, postIDs)
	if err != nil {
		return nil, apperror.Storage("failed to build comment query", err)
	}
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, r.db.Rebind(query), args...); err != nil {
		return nil, apperror.Storage("failed to list comments", err)
	}
	for _, c := range comments {
		out[c.PostID] = append(out[c.PostID], c)
	}
	return out, nil
}

func (r *contentRepository) postExists(ctx context.Context, tx *sqlx.Tx, postID int64) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT EXISTS(SELECT 1 FROM posts WHERE id=?)`), postID); err != nil {
		return err
	}
	if !exists {
		return ErrPostNotFound
	}
	return nil
}
