package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/services"
	"social-service/internal/storage"
)

type postFixture struct {
	content   *mocks.MockContentRepository
	friends   *mocks.MockFriendRepository
	published []models.Event
	router    *gin.Engine
}

func newPostFixture(t *testing.T, maxUpload int64) *postFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	blobs, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	f := &postFixture{
		content: new(mocks.MockContentRepository),
		friends: new(mocks.MockFriendRepository),
	}
	users := new(mocks.MockUserRepository)
	notifier := events.NotifierFunc(func(_ context.Context, ev models.Event) error {
		f.published = append(f.published, ev)
		return nil
	})
	userSvc := services.NewUserService(users, nil, nil, blobs, maxUpload)
	contentSvc := services.NewContentService(f.content, userSvc, services.NewVisibilityResolver(f.friends), blobs, notifier, maxUpload)
	handler := NewPostHandler(contentSvc, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, int64(1))
		c.Next()
	})
	r.POST("/posts", middleware.LimitUploadBody(maxUpload), handler.Create)
	r.DELETE("/posts/:id", handler.Delete)
	f.router = r
	return f
}

func (f *postFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestDeletePostNotifiesAudience(t *testing.T) {
	f := newPostFixture(t, 1<<20)
	f.content.On("DeletePost", mock.Anything, int64(5), int64(1)).
		Return(&models.Post{ID: 5, AuthorID: 1, Content: "bye"}, nil).Once()
	f.friends.On("ListFriends", mock.Anything, int64(1)).Return([]int64{2, 3}, nil).Once()

	rec := f.serve(httptest.NewRequest(http.MethodDelete, "/posts/5", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, f.published, 1)
	require.Equal(t, models.EventPostDeleted, f.published[0].Type)
	require.ElementsMatch(t, []int64{1, 2, 3}, f.published[0].Recipients)
	f.content.AssertExpectations(t)
	f.friends.AssertExpectations(t)
}

func TestDeletePostErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing", repositories.ErrPostNotFound, http.StatusNotFound, "not_found"},
		{"not the author", repositories.ErrPostForbidden, http.StatusForbidden, "forbidden"},
		{"storage down", apperror.Storage("failed to delete post", errors.New("connection refused")), http.StatusServiceUnavailable, "storage_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t, 1<<20)
			f.content.On("DeletePost", mock.Anything, int64(5), int64(1)).Return(nil, tt.err).Once()

			rec := f.serve(httptest.NewRequest(http.MethodDelete, "/posts/5", nil))

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.code, errorCode(t, rec))
			require.Empty(t, f.published)
		})
	}
}

func TestDeletePostInvalidID(t *testing.T) {
	f := newPostFixture(t, 1<<20)

	rec := f.serve(httptest.NewRequest(http.MethodDelete, "/posts/abc", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.content.AssertNotCalled(t, "DeletePost", mock.Anything, mock.Anything, mock.Anything)
}

func mediaBody(t *testing.T, size int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("content", "holiday"))

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="media"; filename="clip.mp4"`)
	header.Set("Content-Type", "video/mp4")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreatePostRejectsOversizedBody(t *testing.T) {
	f := newPostFixture(t, 1024)
	body, contentType := mediaBody(t, 2<<20)

	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.serve(req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "invalid_input", errorCode(t, rec))
	f.content.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}

func TestCreatePostRejectsFileOverLimit(t *testing.T) {
	f := newPostFixture(t, 1024)
	body, contentType := mediaBody(t, 4096)

	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.serve(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.content.AssertNotCalled(t, "CreatePost", mock.Anything, mock.Anything)
}
