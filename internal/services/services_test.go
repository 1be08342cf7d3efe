package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"social-service/internal/apperror"
	"social-service/internal/auth"
	"social-service/internal/db"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/repositories/memory"
	"social-service/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Notify(_ context.Context, event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type env struct {
	users      *UserService
	friends    *FriendService
	visibility *VisibilityResolver
	content    *ContentService
	events     *recorder
	blobDir    string
}

type backend struct {
	name  string
	repos func(t *testing.T) (repositories.UserRepository, repositories.FriendRepository, repositories.ContentRepository)
}

var backends = []backend{
	{
		name: "memory",
		repos: func(t *testing.T) (repositories.UserRepository, repositories.FriendRepository, repositories.ContentRepository) {
			return memory.NewUserStore(), memory.NewFriendStore(), memory.NewContentStore()
		},
	},
	{
		name: "sqlite",
		repos: func(t *testing.T) (repositories.UserRepository, repositories.FriendRepository, repositories.ContentRepository) {
			conn, err := db.Connect(db.DriverSQLite, filepath.Join(t.TempDir(), "social.db"))
			require.NoError(t, err)
			t.Cleanup(func() { conn.Close() })
			return repositories.NewUserRepository(conn), repositories.NewFriendRepository(conn), repositories.NewContentRepository(conn)
		},
	},
}

func newEnv(t *testing.T, b backend) *env {
	t.Helper()
	userRepo, friendRepo, contentRepo := b.repos(t)

	blobDir := t.TempDir()
	blobs, err := storage.NewLocalStore(blobDir, "/uploads")
	require.NoError(t, err)

	rec := &recorder{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := NewUserService(userRepo, auth.BcryptHasher{Cost: bcrypt.MinCost}, tokens, blobs, 1<<20)
	visibility := NewVisibilityResolver(friendRepo)

	return &env{
		users:      users,
		friends:    NewFriendService(friendRepo, userRepo, users, rec),
		visibility: visibility,
		content:    NewContentService(contentRepo, users, visibility, blobs, rec, 1<<20),
		events:     rec,
		blobDir:    blobDir,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, e *env)) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) { fn(t, newEnv(t, b)) })
	}
}

func (e *env) register(t *testing.T, username string) int64 {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return res.User.ID
}

func (e *env) befriend(t *testing.T, a, b int64) {
	t.Helper()
	req, err := e.friends.SendRequest(context.Background(), a, b)
	require.NoError(t, err)
	_, err = e.friends.AcceptRequest(context.Background(), req.ID, b)
	require.NoError(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		res, err := e.users.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "secret123", DisplayName: "Alice A"})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "alice@example.com", res.User.Email)
		assert.Equal(t, "Alice A", res.User.DisplayName)

		byName, err := e.users.Login(ctx, "alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, byName.User.ID)

		byEmail, err := e.users.Login(ctx, "ALICE@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, res.User.ID, byEmail.User.ID)

		_, err = e.users.Login(ctx, "alice", "wrong")
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
		_, err = e.users.Login(ctx, "nobody", "secret123")
		assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

		_, err = e.users.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "secret123"})
		assert.True(t, apperror.Is(err, apperror.KindConflict))
	})
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, backends[0])
	ctx := context.Background()
	cases := []RegisterInput{
		{Username: "a", Email: "a@example.com", Password: "secret123"},
		{Username: "bad name", Email: "a@example.com", Password: "secret123"},
		{Username: "alice", Email: "not-an-email", Password: "secret123"},
		{Username: "alice", Email: "alice@example.com", Password: "123"},
		{Username: "alice", Email: "alice@example.com", Password: "secret123", DisplayName: strings.Repeat("x", 61)},
	}
	for _, in := range cases {
		_, err := e.users.Register(ctx, in)
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput), "input %+v: %v", in, err)
	}
}

func TestFriendRequestLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")

		req, err := e.friends.SendRequest(ctx, a, b)
		require.NoError(t, err)

		_, err = e.friends.SendRequest(ctx, a, b)
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))

		incoming, err := e.friends.IncomingRequests(ctx, b)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		require.NotNil(t, incoming[0].FromUser)
		assert.Equal(t, "alice", incoming[0].FromUser.Username)

		outgoing, err := e.friends.OutgoingRequests(ctx, a)
		require.NoError(t, err)
		require.Len(t, outgoing, 1)
		assert.Equal(t, "bob", outgoing[0].ToUser.Username)

		rel, err := e.friends.Relationship(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, "pending", rel)

		_, err = e.friends.AcceptRequest(ctx, req.ID, b)
		require.NoError(t, err)

		ab, err := e.friends.AreFriends(ctx, a, b)
		require.NoError(t, err)
		ba, err := e.friends.AreFriends(ctx, b, a)
		require.NoError(t, err)
		assert.True(t, ab && ba)

		_, err = e.friends.SendRequest(ctx, b, a)
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))

		friends, err := e.friends.ListFriends(ctx, a)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, "bob", friends[0].Username)

		rel, err = e.friends.Relationship(ctx, b, a)
		require.NoError(t, err)
		assert.Equal(t, "friends", rel)

		assert.Equal(t, []string{models.EventFriendRequestSent, models.EventFriendRequestAccepted}, e.events.types())
		assert.ElementsMatch(t, []int64{a, b}, e.events.last().Recipients)
	})
}

func TestRejectAllowsFreshRequest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")

		req, err := e.friends.SendRequest(ctx, a, b)
		require.NoError(t, err)
		rejected, err := e.friends.RejectRequest(ctx, req.ID, b)
		require.NoError(t, err)
		assert.Equal(t, models.RequestRejected, rejected.Status)

		_, err = e.friends.AcceptRequest(ctx, req.ID, b)
		assert.True(t, apperror.Is(err, apperror.KindInvalidState))

		_, err = e.friends.SendRequest(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, models.EventFriendRequestRejected, e.events.types()[1])
	})
}

func TestSendRequestPreconditions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")

		_, err := e.friends.SendRequest(ctx, a, a)
		assert.True(t, apperror.Is(err, apperror.KindInvalidRequest))

		_, err = e.friends.SendRequest(ctx, a, 999)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		assert.Empty(t, e.events.types())
	})
}

func TestParallelSendRequests(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")

		const n = 10
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.friends.SendRequest(ctx, a, b)
				if err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
					return
				}
				assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest), "unexpected error: %v", err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		incoming, err := e.friends.IncomingRequests(ctx, b)
		require.NoError(t, err)
		assert.Len(t, incoming, 1)
	})
}

func TestVisibility(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")
		c := e.register(t, "carol")
		e.befriend(t, a, b)

		authors, err := e.visibility.VisibleAuthors(ctx, a)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a, b}, authors)

		for _, tc := range []struct {
			viewer, author int64
			want           bool
		}{
			{a, a, true},
			{a, b, true},
			{b, a, true},
			{c, a, false},
			{a, c, false},
		} {
			got, err := e.visibility.IsVisible(ctx, tc.viewer, tc.author)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "viewer %d author %d", tc.viewer, tc.author)
		}

		audience, err := e.visibility.Audience(ctx, b)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a, b}, audience)
	})
}

func TestFeedVisibility(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")
		c := e.register(t, "carol")
		e.befriend(t, a, b)

		post, err := e.content.CreatePost(ctx, a, "hello friends", nil)
		require.NoError(t, err)
		assert.Equal(t, "alice", post.Author.Username)
		assert.ElementsMatch(t, []int64{a, b}, e.events.last().Recipients)

		feedB, err := e.content.FeedFor(ctx, b)
		require.NoError(t, err)
		require.Len(t, feedB, 1)
		assert.Equal(t, post.ID, feedB[0].ID)

		feedC, err := e.content.FeedFor(ctx, c)
		require.NoError(t, err)
		assert.Empty(t, feedC)

		_, err = e.content.ToggleLike(ctx, post.ID, c)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		_, err = e.content.AddComment(ctx, post.ID, c, "hi")
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		_, err = e.content.ListComments(ctx, post.ID, c)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))

		onProfile, err := e.content.PostsByAuthor(ctx, c, a)
		require.NoError(t, err)
		assert.Empty(t, onProfile)
		onProfile, err = e.content.PostsByAuthor(ctx, b, a)
		require.NoError(t, err)
		assert.Len(t, onProfile, 1)
		_, err = e.content.PostsByAuthor(ctx, b, 999)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

func TestFeedOrderingAndAnnotations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")
		e.befriend(t, a, b)

		first, err := e.content.CreatePost(ctx, a, "first", nil)
		require.NoError(t, err)
		second, err := e.content.CreatePost(ctx, b, "second", nil)
		require.NoError(t, err)

		_, err = e.content.ToggleLike(ctx, first.ID, b)
		require.NoError(t, err)
		_, err = e.content.AddComment(ctx, first.ID, b, "nice")
		require.NoError(t, err)
		_, err = e.content.AddComment(ctx, first.ID, a, "thanks")
		require.NoError(t, err)

		feed, err := e.content.FeedFor(ctx, b)
		require.NoError(t, err)
		require.Len(t, feed, 2)
		assert.Equal(t, second.ID, feed[0].ID)
		assert.Equal(t, first.ID, feed[1].ID)

		assert.Equal(t, 1, feed[1].LikesCount)
		assert.True(t, feed[1].LikedByMe)
		require.Len(t, feed[1].Comments, 2)
		assert.Equal(t, "nice", feed[1].Comments[0].Content)
		assert.Equal(t, "bob", feed[1].Comments[0].Author.Username)
		assert.Equal(t, "thanks", feed[1].Comments[1].Content)
		assert.NotNil(t, feed[0].Comments)
		assert.Empty(t, feed[0].Comments)

		feedA, err := e.content.FeedFor(ctx, a)
		require.NoError(t, err)
		assert.False(t, feedA[1].LikedByMe)
	})
}

func TestToggleLikeParity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		post, err := e.content.CreatePost(ctx, a, "solo", nil)
		require.NoError(t, err)

		res, err := e.content.ToggleLike(ctx, post.ID, a)
		require.NoError(t, err)
		assert.True(t, res.Liked)
		res, err = e.content.ToggleLike(ctx, post.ID, a)
		require.NoError(t, err)
		assert.False(t, res.Liked)

		const n = 7
		for i := 0; i < n; i++ {
			res, err = e.content.ToggleLike(ctx, post.ID, a)
			require.NoError(t, err)
		}
		assert.Equal(t, n%2, res.LikesCount)

		types := e.events.types()
		assert.Equal(t, models.EventPostLiked, types[1])
		assert.Equal(t, models.EventPostUnliked, types[2])
	})
}

func TestCreatePostValidation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")

		_, err := e.content.CreatePost(ctx, a, "   ", nil)
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
		_, err = e.content.CreatePost(ctx, a, strings.Repeat("x", maxPostLen+1), nil)
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))
		_, err = e.content.AddComment(ctx, 1, a, " ")
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

		mediaOnly, err := e.content.CreatePost(ctx, a, "", &models.Media{URL: "/uploads/images/x.png", Type: models.MediaImage})
		require.NoError(t, err)
		assert.Equal(t, models.MediaImage, mediaOnly.MediaType)
	})
}

func TestPublishPostWithUpload(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")

		item, err := e.content.PublishPost(ctx, a, "", &Upload{Filename: "clip.mp4", ContentType: "video/mp4", Size: 4, Body: strings.NewReader("mp4!")})
		require.NoError(t, err)
		assert.Equal(t, models.MediaVideo, item.MediaType)
		assert.True(t, strings.HasPrefix(item.MediaURL, "/uploads/videos/"))

		_, err = e.content.PublishPost(ctx, a, "doc", &Upload{Filename: "a.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x")})
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

		_, err = e.content.PublishPost(ctx, a, "big", &Upload{Filename: "a.png", ContentType: "image/png", Size: 2 << 20, Body: strings.NewReader("x")})
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

		require.NoError(t, e.content.DeletePost(ctx, item.ID, a))
		matches, err := filepath.Glob(filepath.Join(e.blobDir, "videos", "*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

func TestDeletePost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")
		e.befriend(t, a, b)

		post, err := e.content.CreatePost(ctx, a, "temporary", nil)
		require.NoError(t, err)
		_, err = e.content.ToggleLike(ctx, post.ID, b)
		require.NoError(t, err)

		err = e.content.DeletePost(ctx, post.ID, b)
		assert.True(t, apperror.Is(err, apperror.KindForbidden))

		require.NoError(t, e.content.DeletePost(ctx, post.ID, a))
		assert.Equal(t, models.EventPostDeleted, e.events.last().Type)

		err = e.content.DeletePost(ctx, post.ID, a)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))

		feed, err := e.content.FeedFor(ctx, b)
		require.NoError(t, err)
		assert.Empty(t, feed)
	})
}

func TestFullScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		b := e.register(t, "bob")

		req, err := e.friends.SendRequest(ctx, a, b)
		require.NoError(t, err)
		_, err = e.friends.AcceptRequest(ctx, req.ID, b)
		require.NoError(t, err)

		post, err := e.content.CreatePost(ctx, a, "hello", nil)
		require.NoError(t, err)

		feedB, err := e.content.FeedFor(ctx, b)
		require.NoError(t, err)
		require.Len(t, feedB, 1)
		assert.Equal(t, "hello", feedB[0].Content)
		assert.Equal(t, 0, feedB[0].LikesCount)

		res, err := e.content.ToggleLike(ctx, post.ID, b)
		require.NoError(t, err)
		assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, res)

		feedA, err := e.content.FeedFor(ctx, a)
		require.NoError(t, err)
		require.Len(t, feedA, 1)
		assert.Equal(t, 1, feedA[0].LikesCount)
	})
}

func TestProfileAndAvatar(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		a := e.register(t, "alice")
		e.register(t, "alfred")
		e.register(t, "bob")

		name, bio := "Alice Liddell", "down the rabbit hole"
		updated, err := e.users.UpdateProfile(ctx, a, &name, &bio)
		require.NoError(t, err)
		assert.Equal(t, "Alice Liddell", updated.DisplayName)
		assert.Equal(t, "down the rabbit hole", updated.Bio)

		empty := "  "
		_, err = e.users.UpdateProfile(ctx, a, &empty, nil)
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

		found, err := e.users.Search(ctx, "al")
		require.NoError(t, err)
		assert.Len(t, found, 2)
		none, err := e.users.Search(ctx, "  ")
		require.NoError(t, err)
		assert.Empty(t, none)

		others, err := e.users.ListOthers(ctx, a)
		require.NoError(t, err)
		assert.Len(t, others, 2)

		_, err = e.users.SetAvatar(ctx, a, Upload{Filename: "a.txt", ContentType: "text/plain", Size: 1, Body: strings.NewReader("x")})
		assert.True(t, apperror.Is(err, apperror.KindInvalidInput))

		withAvatar, err := e.users.SetAvatar(ctx, a, Upload{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(withAvatar.AvatarURL, "/uploads/avatars/"))

		author, err := e.users.GetUserByID(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, withAvatar.AvatarURL, author.AvatarURL)

		require.NoError(t, e.users.ClearAvatar(ctx, a))
		profile, err := e.users.GetProfile(ctx, a)
		require.NoError(t, err)
		assert.Empty(t, profile.AvatarURL)
		matches, err := filepath.Glob(filepath.Join(e.blobDir, "avatars", "*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}
