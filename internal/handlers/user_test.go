package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/middleware"
	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/services"
	"social-service/internal/storage"
)

func setupUserRouter(userHandler *UserHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(1))
		c.Next()
	})
	r.GET("/users/:id", userHandler.GetUserByID)
	r.GET("/me", userHandler.GetMe)
	r.POST("/me/avatar", userHandler.UploadAvatar)
	r.DELETE("/me/avatar", userHandler.DeleteAvatar)
	return r
}

type userFixture struct {
	users   *mocks.MockUserRepository
	friends *mocks.MockFriendRepository
	blobs   *storage.LocalStore
	handler *UserHandler
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	users := new(mocks.MockUserRepository)
	friends := new(mocks.MockFriendRepository)
	userSvc := services.NewUserService(users, nil, nil, blobs, 1<<20)
	friendSvc := services.NewFriendService(friends, users, userSvc, nil)
	return &userFixture{
		users:   users,
		friends: friends,
		blobs:   blobs,
		handler: NewUserHandler(userSvc, friendSvc, nil),
	}
}

func TestGetUserByIDOK(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	f.users.On("GetByID", mock.Anything, int64(42)).
		Return(&models.User{ID: 42, Username: "alice", DisplayName: "Alice", AvatarURL: "/uploads/avatars/a.png"}, nil).Once()
	f.friends.On("AreFriends", mock.Anything, int64(1), int64(42)).Return(false, nil).Once()
	f.friends.On("HasPendingRequest", mock.Anything, int64(1), int64(42)).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, float64(42), resp["id"])
	require.Equal(t, "alice", resp["username"])
	require.Equal(t, "/uploads/avatars/a.png", resp["avatar_url"])
	require.Equal(t, "pending", resp["relationship"])
	require.NotContains(t, resp, "email")

	f.users.AssertExpectations(t)
	f.friends.AssertExpectations(t)
}

func TestGetUserByIDInvalidID(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserByIDNotFound(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	f.users.On("GetByID", mock.Anything, int64(9)).Return(nil, apperror.NotFound("user not found")).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "not_found", resp["code"])
	f.users.AssertExpectations(t)
}

func TestGetMeSuccess(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	f.users.On("GetByID", mock.Anything, int64(1)).Return(&models.User{ID: 1, Username: "me", Email: "me@example.com"}, nil).Once()
	f.friends.On("ListFriends", mock.Anything, int64(1)).Return([]int64{2}, nil).Once()
	f.friends.On("GetIncomingRequests", mock.Anything, int64(1)).
		Return([]models.FriendRequest{{ID: 7, FromUserID: 3, ToUserID: 1, Status: models.RequestPending}}, nil).Once()
	f.users.On("GetByIDs", mock.Anything, mock.Anything).Return(map[int64]models.User{
		1: {ID: 1, Username: "me"},
		2: {ID: 2, Username: "wersvet"},
		3: {ID: 3, Username: "alimzhan"},
	}, nil).Twice()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	user := resp["user"].(map[string]any)
	require.Equal(t, float64(1), user["id"])
	require.Equal(t, "me@example.com", user["email"])
	require.NotContains(t, user, "password_hash")

	friends := resp["friends"].([]any)
	require.Len(t, friends, 1)
	require.Equal(t, "wersvet", friends[0].(map[string]any)["username"])

	incoming := resp["incoming_requests"].([]any)
	require.Len(t, incoming, 1)
	incomingEntry := incoming[0].(map[string]any)
	require.Equal(t, float64(7), incomingEntry["id"])
	require.Equal(t, "alimzhan", incomingEntry["from_user"].(map[string]any)["username"])

	f.users.AssertExpectations(t)
	f.friends.AssertExpectations(t)
}

func TestGetMeDependencyError(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	f.users.On("GetByID", mock.Anything, int64(1)).Return(nil, apperror.Storage("failed to load user", errors.New("db down"))).Once()
	f.friends.On("ListFriends", mock.Anything, int64(1)).Return([]int64{}, nil).Maybe()
	f.friends.On("GetIncomingRequests", mock.Anything, int64(1)).Return([]models.FriendRequest{}, nil).Maybe()
	f.users.On("GetByIDs", mock.Anything, mock.Anything).Return(map[int64]models.User{}, nil).Maybe()

	req := httptest.NewRequest(http.MethodGet, "/me", bytes.NewReader([]byte{}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
	f.users.AssertExpectations(t)
}

func avatarBody(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar.png"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("avatar-content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadAvatar(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	f.users.On("GetByID", mock.Anything, int64(1)).Return(&models.User{ID: 1, Username: "me"}, nil).Once()
	f.users.On("SetAvatarURL", mock.Anything, int64(1), mock.MatchedBy(func(url string) bool {
		return strings.HasPrefix(url, "/uploads/avatars/")
	})).Return(nil).Once()

	body, contentType := avatarBody(t, "image/png")
	req := httptest.NewRequest(http.MethodPost, "/me/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	avatarURL := resp["avatar_url"]
	require.True(t, strings.HasSuffix(avatarURL, "-avatar.png"))

	relativePath := strings.TrimPrefix(avatarURL, "/uploads/")
	content, err := os.ReadFile(filepath.Join(f.blobs.Dir(), filepath.FromSlash(relativePath)))
	require.NoError(t, err)
	require.Equal(t, "avatar-content", string(content))

	f.users.AssertExpectations(t)
}

func TestUploadAvatarRejectsNonImage(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	body, contentType := avatarBody(t, "application/pdf")
	req := httptest.NewRequest(http.MethodPost, "/me/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "SetAvatarURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAvatar(t *testing.T) {
	f := newUserFixture(t)
	router := setupUserRouter(f.handler)

	filePath := filepath.Join(f.blobs.Dir(), "avatars", "to-delete.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte("content"), 0o644))

	f.users.On("GetByID", mock.Anything, int64(1)).
		Return(&models.User{ID: 1, AvatarURL: "/uploads/avatars/to-delete.png"}, nil).Once()
	f.users.On("SetAvatarURL", mock.Anything, int64(1), "").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/me/avatar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(filePath)
	require.True(t, os.IsNotExist(err))
	f.users.AssertExpectations(t)
}
