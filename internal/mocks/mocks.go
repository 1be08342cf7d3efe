package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

// MockFriendRepository mocks FriendRepository behavior for handlers and services.
type MockFriendRepository struct {
	mock.Mock
}

func (m *MockFriendRepository) CreateRequest(ctx context.Context, fromUserID, toUserID int64) (*models.FriendRequest, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) GetRequest(ctx context.Context, requestID int64) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) GetIncomingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.FriendRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.FriendRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockFriendRepository) GetOutgoingRequests(ctx context.Context, userID int64) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID)
	var reqs []models.FriendRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.FriendRequest)
	}
	return reqs, args.Error(1)
}

func (m *MockFriendRepository) AcceptRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID, userID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) RejectRequest(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error) {
	args := m.Called(ctx, requestID, userID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *MockFriendRepository) ListFriends(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var friends []int64
	if val := args.Get(0); val != nil {
		friends = val.([]int64)
	}
	return friends, args.Error(1)
}

func (m *MockFriendRepository) HasPendingRequest(ctx context.Context, userID, otherID int64) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFriendRepository) AreFriends(ctx context.Context, userID, otherID int64) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func friendRequest(val any) *models.FriendRequest {
	if val == nil {
		return nil
	}
	return val.(*models.FriendRequest)
}

// MockUserRepository mocks UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	args := m.Called(ctx, ids)
	var users map[int64]models.User
	if val := args.Get(0); val != nil {
		users = val.(map[int64]models.User)
	}
	return users, args.Error(1)
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	args := m.Called(ctx, login)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, limit)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, excludeID int64, limit int) ([]models.User, error) {
	args := m.Called(ctx, excludeID, limit)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, update)
	return user(args.Get(0)), args.Error(1)
}

func (m *MockUserRepository) SetAvatarURL(ctx context.Context, id int64, avatarURL string) error {
	args := m.Called(ctx, id, avatarURL)
	return args.Error(0)
}

func user(val any) *models.User {
	if val == nil {
		return nil
	}
	return val.(*models.User)
}

func users(val any) []models.User {
	if val == nil {
		return nil
	}
	return val.([]models.User)
}

// MockContentRepository mocks ContentRepository.
type MockContentRepository struct {
	mock.Mock
}

func (m *MockContentRepository) CreatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockContentRepository) GetPost(ctx context.Context, postID int64) (*models.Post, error) {
	args := m.Called(ctx, postID)
	var post *models.Post
	if val := args.Get(0); val != nil {
		post = val.(*models.Post)
	}
	return post, args.Error(1)
}

func (m *MockContentRepository) DeletePost(ctx context.Context, postID, userID int64) (*models.Post, error) {
	args := m.Called(ctx, postID, userID)
	var post *models.Post
	if val := args.Get(0); val != nil {
		post = val.(*models.Post)
	}
	return post, args.Error(1)
}

func (m *MockContentRepository) ListPostsByAuthors(ctx context.Context, authorIDs []int64) ([]models.Post, error) {
	args := m.Called(ctx, authorIDs)
	var posts []models.Post
	if val := args.Get(0); val != nil {
		posts = val.([]models.Post)
	}
	return posts, args.Error(1)
}

func (m *MockContentRepository) ToggleLike(ctx context.Context, postID, userID int64) (models.LikeResult, error) {
	args := m.Called(ctx, postID, userID)
	return args.Get(0).(models.LikeResult), args.Error(1)
}

func (m *MockContentRepository) PostStats(ctx context.Context, postIDs []int64, viewerID int64) (map[int64]models.PostStats, error) {
	args := m.Called(ctx, postIDs, viewerID)
	var stats map[int64]models.PostStats
	if val := args.Get(0); val != nil {
		stats = val.(map[int64]models.PostStats)
	}
	return stats, args.Error(1)
}

func (m *MockContentRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockContentRepository) ListComments(ctx context.Context, postIDs []int64) (map[int64][]models.Comment, error) {
	args := m.Called(ctx, postIDs)
	var comments map[int64][]models.Comment
	if val := args.Get(0); val != nil {
		comments = val.(map[int64][]models.Comment)
	}
	return comments, args.Error(1)
}

// Compile-time assertions
var (
	_ repositories.FriendRepository  = (*MockFriendRepository)(nil)
	_ repositories.UserRepository    = (*MockUserRepository)(nil)
	_ repositories.ContentRepository = (*MockContentRepository)(nil)
)
