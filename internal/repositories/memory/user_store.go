package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

var _ repositories.UserRepository = (*UserStore)(nil)

type UserStore struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]*models.User
	byUsername map[string]int64
	byEmail    map[string]int64
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[int64]*models.User),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
	}
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return repositories.ErrUserTaken
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return repositories.ErrUserTaken
	}

	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	stored := *user
	s.users[user.ID] = &stored
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *UserStore) GetByIDs(_ context.Context, ids []int64) (map[int64]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = *u
		}
	}
	return out, nil
}

func (s *UserStore) GetByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[login]
	if !ok {
		id, ok = s.byEmail[login]
	}
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	out := *s.users[id]
	return &out, nil
}

func (s *UserStore) Search(_ context.Context, query string, limit int) ([]models.User, error) {
	q := strings.ToLower(query)
	return s.collect(limit, func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.DisplayName), q)
	}, func(a, b models.User) bool { return a.Username < b.Username }), nil
}

func (s *UserStore) List(_ context.Context, excludeID int64, limit int) ([]models.User, error) {
	return s.collect(limit, func(u *models.User) bool {
		return u.ID != excludeID
	}, func(a, b models.User) bool { return a.ID < b.ID }), nil
}

func (s *UserStore) collect(limit int, match func(*models.User) bool, less func(a, b models.User) bool) []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.User{}
	for _, u := range s.users {
		if match(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *UserStore) UpdateProfile(_ context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	if update.DisplayName != nil {
		u.DisplayName = *update.DisplayName
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	out := *u
	return &out, nil
}

func (s *UserStore) SetAvatarURL(_ context.Context, id int64, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.AvatarURL = avatarURL
	return nil
}
