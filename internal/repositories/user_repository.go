package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/apperror"
	"social-service/internal/db"
	"social-service/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	List(ctx context.Context, excludeID int64, limit int) ([]models.User, error)
	UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error)
	SetAvatarURL(ctx context.Context, id int64, avatarURL string) error
}

var (
	ErrUserNotFound = apperror.NotFound("user not found")
	ErrUserTaken    = apperror.Conflict("username or email already taken")
)

const userColumns = `id, username, email, password_hash, display_name, bio, avatar_url, created_at`

type userRepository struct {
	sqlStore
}

func NewUserRepository(conn *sqlx.DB) UserRepository {
	return &userRepository{sqlStore{db: conn}}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
INSERT INTO users (username, email, password_hash, display_name, bio, avatar_url, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), user.Username, user.Email, user.PasswordHash, user.DisplayName, user.Bio, user.AvatarURL, user.CreatedAt).Scan(&user.ID)
	if db.IsUniqueViolation(err) {
		return ErrUserTaken
	}
	return apperror.Storage("failed to create user", err)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Storage("failed to load user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, apperror.Storage("failed to build user query", err)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, apperror.Storage("failed to load users", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username=? OR email=?`), login, login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Storage("failed to load user", err)
	}
	return &user, nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
SELECT `+userColumns+`
FROM users
WHERE LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?
ORDER BY username
LIMIT ?
`), pattern, pattern, limit)
	if err != nil {
		return nil, apperror.Storage("failed to search users", err)
	}
	return users, nil
}

func (r *userRepository) List(ctx context.Context, excludeID int64, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`
SELECT `+userColumns+`
FROM users
WHERE id<>?
ORDER BY id
LIMIT ?
`), excludeID, limit)
	if err != nil {
		return nil, apperror.Storage("failed to list users", err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &user, tx.Rebind(`SELECT `+userColumns+` FROM users WHERE id=?`), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		if update.DisplayName != nil {
			user.DisplayName = *update.DisplayName
		}
		if update.Bio != nil {
			user.Bio = *update.Bio
		}
		if update.AvatarURL != nil {
			user.AvatarURL = *update.AvatarURL
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`
UPDATE users SET display_name=?, bio=?, avatar_url=? WHERE id=?
`), user.DisplayName, user.Bio, user.AvatarURL, id)
		return err
	})
	if err != nil {
		return nil, apperror.Storage("failed to update profile", err)
	}
	return &user, nil
}

func (r *userRepository) SetAvatarURL(ctx context.Context, id int64, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET avatar_url=? WHERE id=?`), avatarURL, id)
	if err != nil {
		return apperror.Storage("failed to set avatar", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.Storage("failed to set avatar", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}
