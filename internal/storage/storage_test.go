package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestObjectKeySanitizesName(t *testing.T) {
	key := objectKey(FolderImages, "../../etc/pass wd.png")
	assert.True(t, strings.HasPrefix(key, "images/"))
	assert.True(t, strings.HasSuffix(key, "-pass_wd.png"))
	assert.NotContains(t, key, "..")

	assert.True(t, strings.HasSuffix(objectKey(FolderVideos, ""), "-file"))
}

func TestLocalStorePutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), FolderAvatars, "me.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"), 10)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/avatars/"))

	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.NoError(t, store.Delete(context.Background(), url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	require.NoError(t, store.Delete(context.Background(), url))
	assert.ErrorIs(t, store.Delete(context.Background(), "https://elsewhere/x.png"), ErrNotOwned)
	assert.ErrorIs(t, store.Delete(context.Background(), "/uploads/../secret"), ErrNotOwned)
}

type fakeS3 struct {
	mock.Mock
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := f.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := f.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3StorePut(t *testing.T) {
	client := new(fakeS3)
	store := NewS3StoreWithClient(client, "media", "eu-west-1", "")

	var key string
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		key = *in.Key
		return *in.Bucket == "media" && *in.ContentType == "video/mp4" && string(body) == "mp4" && *in.ContentLength == 3
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	url, err := store.Put(context.Background(), FolderVideos, "clip.mp4", "video/mp4", strings.NewReader("mp4"), 3)
	require.NoError(t, err)
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/"+key, url)
	assert.True(t, strings.HasPrefix(key, "videos/"))
	client.AssertExpectations(t)
}

func TestS3StoreErrorsAndDelete(t *testing.T) {
	client := new(fakeS3)
	store := NewS3StoreWithClient(client, "media", "us-east-1", "https://cdn.example.com/")

	client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied")).Once()
	_, err := store.Put(context.Background(), FolderImages, "a.png", "image/png", strings.NewReader("x"), 1)
	require.Error(t, err)

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "images/abc-a.png"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	require.NoError(t, store.Delete(context.Background(), "https://cdn.example.com/images/abc-a.png"))
	assert.ErrorIs(t, store.Delete(context.Background(), "/uploads/images/x.png"), ErrNotOwned)
	client.AssertExpectations(t)
}
