package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

var _ repositories.ContentRepository = (*ContentStore)(nil)

type ContentStore struct {
	mu            sync.RWMutex
	nextPostID    int64
	nextLikeID    int64
	nextCommentID int64
	posts         map[int64]*models.Post
	likes         map[int64]map[int64]models.Like
	comments      map[int64][]models.Comment
}

func NewContentStore() *ContentStore {
	return &ContentStore{
		posts:    make(map[int64]*models.Post),
		likes:    make(map[int64]map[int64]models.Like),
		comments: make(map[int64][]models.Comment),
	}
}

func (s *ContentStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPostID++
	post.ID = s.nextPostID
	post.CreatedAt = time.Now().UTC()
	stored := *post
	s.posts[post.ID] = &stored
	return nil
}

func (s *ContentStore) GetPost(_ context.Context, postID int64) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	out := *p
	return &out, nil
}

func (s *ContentStore) DeletePost(_ context.Context, postID, userID int64) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	if p.AuthorID != userID {
		return nil, repositories.ErrPostForbidden
	}
	delete(s.posts, postID)
	delete(s.likes, postID)
	delete(s.comments, postID)
	return p, nil
}

func (s *ContentStore) ListPostsByAuthors(_ context.Context, authorIDs []int64) ([]models.Post, error) {
	authors := make(map[int64]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := []models.Post{}
	for _, p := range s.posts {
		if _, ok := authors[p.AuthorID]; ok {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (s *ContentStore) ToggleLike(_ context.Context, postID, userID int64) (models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return models.LikeResult{}, repositories.ErrPostNotFound
	}

	set, ok := s.likes[postID]
	if !ok {
		set = make(map[int64]models.Like)
		s.likes[postID] = set
	}
	if _, liked := set[userID]; liked {
		delete(set, userID)
		return models.LikeResult{Liked: false, LikesCount: len(set)}, nil
	}

	s.nextLikeID++
	set[userID] = models.Like{ID: s.nextLikeID, PostID: postID, UserID: userID, CreatedAt: time.Now().UTC()}
	return models.LikeResult{Liked: true, LikesCount: len(set)}, nil
}

func (s *ContentStore) PostStats(_ context.Context, postIDs []int64, viewerID int64) (map[int64]models.PostStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]models.PostStats, len(postIDs))
	for _, id := range postIDs {
		set := s.likes[id]
		if len(set) == 0 {
			continue
		}
		_, mine := set[viewerID]
		out[id] = models.PostStats{PostID: id, LikesCount: len(set), LikedByMe: mine}
	}
	return out, nil
}

func (s *ContentStore) AddComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return repositories.ErrPostNotFound
	}
	s.nextCommentID++
	comment.ID = s.nextCommentID
	comment.CreatedAt = time.Now().UTC()
	s.comments[comment.PostID] = append(s.comments[comment.PostID], *comment)
	return nil
}

func (s *ContentStore) ListComments(_ context.Context, postIDs []int64) (map[int64][]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64][]models.Comment, len(postIDs))
	for _, id := range postIDs {
		if list := s.comments[id]; len(list) > 0 {
			out[id] = append([]models.Comment(nil), list...)
		}
	}
	return out, nil
}
