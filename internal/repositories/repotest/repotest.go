// Package repotest holds the behaviour every repository implementation must
// share. Memory and SQL stores run the same suites.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/apperror"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

type Repos struct {
	Users   repositories.UserRepository
	Friends repositories.FriendRepository
	Content repositories.ContentRepository
	// Close, when set, makes the backing store unreachable.
	Close func() error
}

// Factory returns a fresh, empty set of repositories for one test.
type Factory func(t *testing.T) Repos

func Run(t *testing.T, newRepos Factory) {
	t.Run("Users", func(t *testing.T) { RunUsers(t, newRepos) })
	t.Run("Friends", func(t *testing.T) { RunFriends(t, newRepos) })
	t.Run("Content", func(t *testing.T) { RunContent(t, newRepos) })
	t.Run("StorageUnavailable", func(t *testing.T) { RunStorageFailures(t, newRepos) })
}

// CreateUsers registers n users named user1..usern and returns their ids.
func CreateUsers(t *testing.T, users repositories.UserRepository, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		u := &models.User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: "hash",
			DisplayName:  fmt.Sprintf("User %d", i),
		}
		require.NoError(t, users.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func RunUsers(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		r := newRepos(t)
		u := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h", DisplayName: "Alice"}
		require.NoError(t, r.Users.Create(ctx, u))
		require.NotZero(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())

		got, err := r.Users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "h", got.PasswordHash)

		byName, err := r.Users.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)

		byEmail, err := r.Users.GetByLogin(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("duplicate username or email conflicts", func(t *testing.T) {
		r := newRepos(t)
		require.NoError(t, r.Users.Create(ctx, &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "h"}))

		err := r.Users.Create(ctx, &models.User{Username: "bob", Email: "other@example.com", PasswordHash: "h"})
		assert.True(t, apperror.Is(err, apperror.KindConflict))

		err = r.Users.Create(ctx, &models.User{Username: "bobby", Email: "bob@example.com", PasswordHash: "h"})
		assert.True(t, apperror.Is(err, apperror.KindConflict))
	})

	t.Run("missing user", func(t *testing.T) {
		r := newRepos(t)
		_, err := r.Users.GetByID(ctx, 999)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		_, err = r.Users.GetByLogin(ctx, "nobody")
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
		assert.True(t, apperror.Is(r.Users.SetAvatarURL(ctx, 999, "x"), apperror.KindNotFound))
	})

	t.Run("batch lookup skips unknown ids", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)

		got, err := r.Users.GetByIDs(ctx, []int64{ids[0], ids[2], 999})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "user1", got[ids[0]].Username)
		assert.Equal(t, "user3", got[ids[2]].Username)

		empty, err := r.Users.GetByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("search and list", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)
		u := &models.User{Username: "carol", Email: "carol@example.com", PasswordHash: "h", DisplayName: "Caroline Lee"}
		require.NoError(t, r.Users.Create(ctx, u))

		found, err := r.Users.Search(ctx, "LEE", 20)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "carol", found[0].Username)

		found, err = r.Users.Search(ctx, "user", 2)
		require.NoError(t, err)
		assert.Len(t, found, 2)

		others, err := r.Users.List(ctx, ids[0], 10)
		require.NoError(t, err)
		require.Len(t, others, 3)
		for _, o := range others {
			assert.NotEqual(t, ids[0], o.ID)
		}
	})

	t.Run("profile updates", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 1)

		bio := "hello there"
		updated, err := r.Users.UpdateProfile(ctx, ids[0], models.ProfileUpdate{Bio: &bio})
		require.NoError(t, err)
		assert.Equal(t, "hello there", updated.Bio)
		assert.Equal(t, "User 1", updated.DisplayName)

		require.NoError(t, r.Users.SetAvatarURL(ctx, ids[0], "/uploads/avatars/a.png"))
		got, err := r.Users.GetByID(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, "/uploads/avatars/a.png", got.AvatarURL)
		assert.Equal(t, "hello there", got.Bio)

		_, err = r.Users.UpdateProfile(ctx, 999, models.ProfileUpdate{Bio: &bio})
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

func RunFriends(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	t.Run("accept creates a symmetric friendship", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		a, b := ids[0], ids[1]

		req, err := r.Friends.CreateRequest(ctx, a, b)
		require.NoError(t, err)
		assert.Equal(t, models.RequestPending, req.Status)

		pending, err := r.Friends.HasPendingRequest(ctx, b, a)
		require.NoError(t, err)
		assert.True(t, pending)

		accepted, err := r.Friends.AcceptRequest(ctx, req.ID, b)
		require.NoError(t, err)
		assert.Equal(t, models.RequestAccepted, accepted.Status)

		ab, err := r.Friends.AreFriends(ctx, a, b)
		require.NoError(t, err)
		ba, err := r.Friends.AreFriends(ctx, b, a)
		require.NoError(t, err)
		assert.True(t, ab)
		assert.True(t, ba)

		friendsOfA, err := r.Friends.ListFriends(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, []int64{b}, friendsOfA)
		friendsOfB, err := r.Friends.ListFriends(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, []int64{a}, friendsOfB)

		pending, err = r.Friends.HasPendingRequest(ctx, a, b)
		require.NoError(t, err)
		assert.False(t, pending)

		stored, err := r.Friends.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestAccepted, stored.Status)
	})

	t.Run("duplicate pending request in either direction", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)

		_, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
		require.NoError(t, err)

		_, err = r.Friends.CreateRequest(ctx, ids[0], ids[1])
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))
		_, err = r.Friends.CreateRequest(ctx, ids[1], ids[0])
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))
	})

	t.Run("request between friends is a duplicate", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		req, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
		require.NoError(t, err)
		_, err = r.Friends.AcceptRequest(ctx, req.ID, ids[1])
		require.NoError(t, err)

		_, err = r.Friends.CreateRequest(ctx, ids[0], ids[1])
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))
		_, err = r.Friends.CreateRequest(ctx, ids[1], ids[0])
		assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest))
	})

	t.Run("self request is invalid", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 1)
		_, err := r.Friends.CreateRequest(ctx, ids[0], ids[0])
		assert.True(t, apperror.Is(err, apperror.KindInvalidRequest))
	})

	t.Run("reject keeps the record and allows a fresh request", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		req, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
		require.NoError(t, err)

		rejected, err := r.Friends.RejectRequest(ctx, req.ID, ids[1])
		require.NoError(t, err)
		assert.Equal(t, models.RequestRejected, rejected.Status)

		stored, err := r.Friends.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestRejected, stored.Status)

		friends, err := r.Friends.AreFriends(ctx, ids[0], ids[1])
		require.NoError(t, err)
		assert.False(t, friends)

		again, err := r.Friends.CreateRequest(ctx, ids[1], ids[0])
		require.NoError(t, err)
		assert.NotEqual(t, req.ID, again.ID)
	})

	t.Run("answer preconditions", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)
		req, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
		require.NoError(t, err)

		_, err = r.Friends.AcceptRequest(ctx, 999, ids[1])
		assert.True(t, apperror.Is(err, apperror.KindNotFound))

		_, err = r.Friends.AcceptRequest(ctx, req.ID, ids[0])
		assert.True(t, apperror.Is(err, apperror.KindForbidden))
		_, err = r.Friends.RejectRequest(ctx, req.ID, ids[2])
		assert.True(t, apperror.Is(err, apperror.KindForbidden))

		_, err = r.Friends.AcceptRequest(ctx, req.ID, ids[1])
		require.NoError(t, err)

		_, err = r.Friends.AcceptRequest(ctx, req.ID, ids[1])
		assert.True(t, apperror.Is(err, apperror.KindInvalidState))
		_, err = r.Friends.RejectRequest(ctx, req.ID, ids[1])
		assert.True(t, apperror.Is(err, apperror.KindInvalidState))

		_, err = r.Friends.GetRequest(ctx, 999)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("incoming and outgoing lists", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)
		first, err := r.Friends.CreateRequest(ctx, ids[1], ids[0])
		require.NoError(t, err)
		second, err := r.Friends.CreateRequest(ctx, ids[2], ids[0])
		require.NoError(t, err)

		incoming, err := r.Friends.GetIncomingRequests(ctx, ids[0])
		require.NoError(t, err)
		require.Len(t, incoming, 2)
		assert.Equal(t, second.ID, incoming[0].ID)
		assert.Equal(t, first.ID, incoming[1].ID)

		outgoing, err := r.Friends.GetOutgoingRequests(ctx, ids[1])
		require.NoError(t, err)
		require.Len(t, outgoing, 1)
		assert.Equal(t, first.ID, outgoing[0].ID)

		_, err = r.Friends.RejectRequest(ctx, first.ID, ids[0])
		require.NoError(t, err)
		incoming, err = r.Friends.GetIncomingRequests(ctx, ids[0])
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, second.ID, incoming[0].ID)

		none, err := r.Friends.GetIncomingRequests(ctx, ids[2])
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("parallel sends create exactly one pending request", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				from, to := ids[0], ids[1]
				if i%2 == 1 {
					from, to = to, from
				}
				_, errs[i] = r.Friends.CreateRequest(ctx, from, to)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, apperror.Is(err, apperror.KindDuplicateRequest), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		incomingA, err := r.Friends.GetIncomingRequests(ctx, ids[0])
		require.NoError(t, err)
		incomingB, err := r.Friends.GetIncomingRequests(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, 1, len(incomingA)+len(incomingB))
	})

	t.Run("parallel accept and reject resolve once", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		req, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = r.Friends.AcceptRequest(ctx, req.ID, ids[1])
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = r.Friends.RejectRequest(ctx, req.ID, ids[1])
		}()
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
				assert.True(t, apperror.Is(err, apperror.KindInvalidState), "unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, failed)

		stored, err := r.Friends.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		friends, err := r.Friends.AreFriends(ctx, ids[0], ids[1])
		require.NoError(t, err)
		assert.Equal(t, stored.Status == models.RequestAccepted, friends)
	})
}

func RunContent(t *testing.T, newRepos Factory) {
	ctx := context.Background()

	newPost := func(t *testing.T, r Repos, authorID int64, content string) *models.Post {
		t.Helper()
		p := &models.Post{AuthorID: authorID, Content: content}
		require.NoError(t, r.Content.CreatePost(ctx, p))
		return p
	}

	t.Run("create and get", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 1)
		p := &models.Post{AuthorID: ids[0], Content: "photo", MediaURL: "/uploads/images/x.png", MediaType: models.MediaImage}
		require.NoError(t, r.Content.CreatePost(ctx, p))
		require.NotZero(t, p.ID)

		got, err := r.Content.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "photo", got.Content)
		assert.Equal(t, models.MediaImage, got.MediaType)
		assert.Equal(t, "/uploads/images/x.png", got.MediaURL)

		_, err = r.Content.GetPost(ctx, 999)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("toggle like alternates", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		p := newPost(t, r, ids[0], "hello")

		first, err := r.Content.ToggleLike(ctx, p.ID, ids[1])
		require.NoError(t, err)
		assert.Equal(t, models.LikeResult{Liked: true, LikesCount: 1}, first)

		second, err := r.Content.ToggleLike(ctx, p.ID, ids[1])
		require.NoError(t, err)
		assert.Equal(t, models.LikeResult{Liked: false, LikesCount: 0}, second)

		for i := 0; i < 5; i++ {
			_, err := r.Content.ToggleLike(ctx, p.ID, ids[1])
			require.NoError(t, err)
		}
		stats, err := r.Content.PostStats(ctx, []int64{p.ID}, ids[1])
		require.NoError(t, err)
		assert.Equal(t, 1, stats[p.ID].LikesCount)
		assert.True(t, stats[p.ID].LikedByMe)

		_, err = r.Content.ToggleLike(ctx, 999, ids[1])
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("parallel toggles by different users all count", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 6)
		p := newPost(t, r, ids[0], "popular")

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := r.Content.ToggleLike(ctx, p.ID, id)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		stats, err := r.Content.PostStats(ctx, []int64{p.ID}, ids[0])
		require.NoError(t, err)
		assert.Equal(t, len(ids), stats[p.ID].LikesCount)
	})

	t.Run("stats for viewer", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)
		liked := newPost(t, r, ids[0], "a")
		quiet := newPost(t, r, ids[0], "b")

		_, err := r.Content.ToggleLike(ctx, liked.ID, ids[1])
		require.NoError(t, err)
		_, err = r.Content.ToggleLike(ctx, liked.ID, ids[2])
		require.NoError(t, err)

		stats, err := r.Content.PostStats(ctx, []int64{liked.ID, quiet.ID}, ids[1])
		require.NoError(t, err)
		assert.Equal(t, 2, stats[liked.ID].LikesCount)
		assert.True(t, stats[liked.ID].LikedByMe)
		assert.Equal(t, 0, stats[quiet.ID].LikesCount)

		stats, err = r.Content.PostStats(ctx, []int64{liked.ID}, ids[0])
		require.NoError(t, err)
		assert.False(t, stats[liked.ID].LikedByMe)
	})

	t.Run("comments are listed oldest first", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		p := newPost(t, r, ids[0], "discuss")

		for _, text := range []string{"first", "second", "third"} {
			c := &models.Comment{PostID: p.ID, AuthorID: ids[1], Content: text}
			require.NoError(t, r.Content.AddComment(ctx, c))
			require.NotZero(t, c.ID)
		}

		comments, err := r.Content.ListComments(ctx, []int64{p.ID})
		require.NoError(t, err)
		require.Len(t, comments[p.ID], 3)
		assert.Equal(t, "first", comments[p.ID][0].Content)
		assert.Equal(t, "third", comments[p.ID][2].Content)

		err = r.Content.AddComment(ctx, &models.Comment{PostID: 999, AuthorID: ids[1], Content: "x"})
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("posts by authors newest first", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 3)
		p1 := newPost(t, r, ids[0], "one")
		p2 := newPost(t, r, ids[1], "two")
		newPost(t, r, ids[2], "hidden")
		p3 := newPost(t, r, ids[0], "three")

		posts, err := r.Content.ListPostsByAuthors(ctx, []int64{ids[0], ids[1]})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, []int64{p3.ID, p2.ID, p1.ID}, []int64{posts[0].ID, posts[1].ID, posts[2].ID})

		none, err := r.Content.ListPostsByAuthors(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete removes likes and comments", func(t *testing.T) {
		r := newRepos(t)
		ids := CreateUsers(t, r.Users, 2)
		p := newPost(t, r, ids[0], "bye")
		_, err := r.Content.ToggleLike(ctx, p.ID, ids[1])
		require.NoError(t, err)
		require.NoError(t, r.Content.AddComment(ctx, &models.Comment{PostID: p.ID, AuthorID: ids[1], Content: "nice"}))

		_, err = r.Content.DeletePost(ctx, p.ID, ids[1])
		assert.True(t, apperror.Is(err, apperror.KindForbidden))

		deleted, err := r.Content.DeletePost(ctx, p.ID, ids[0])
		require.NoError(t, err)
		assert.Equal(t, p.ID, deleted.ID)

		_, err = r.Content.GetPost(ctx, p.ID)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))

		stats, err := r.Content.PostStats(ctx, []int64{p.ID}, ids[1])
		require.NoError(t, err)
		assert.Empty(t, stats)
		comments, err := r.Content.ListComments(ctx, []int64{p.ID})
		require.NoError(t, err)
		assert.Empty(t, comments)

		_, err = r.Content.DeletePost(ctx, p.ID, ids[0])
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

// RunStorageFailures checks that a lost store surfaces as StorageUnavailable
// rather than as a domain error.
func RunStorageFailures(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	r := newRepos(t)
	if r.Close == nil {
		t.Skip("store cannot be closed")
	}

	ids := CreateUsers(t, r.Users, 3)
	pending, err := r.Friends.CreateRequest(ctx, ids[0], ids[1])
	require.NoError(t, err)
	post := &models.Post{AuthorID: ids[0], Content: "hello"}
	require.NoError(t, r.Content.CreatePost(ctx, post))

	require.NoError(t, r.Close())

	checks := map[string]func() error{
		"CreateRequest": func() error {
			_, err := r.Friends.CreateRequest(ctx, ids[0], ids[2])
			return err
		},
		"AcceptRequest": func() error {
			_, err := r.Friends.AcceptRequest(ctx, pending.ID, ids[1])
			return err
		},
		"RejectRequest": func() error {
			_, err := r.Friends.RejectRequest(ctx, pending.ID, ids[1])
			return err
		},
		"AreFriends": func() error {
			_, err := r.Friends.AreFriends(ctx, ids[0], ids[1])
			return err
		},
		"ListFriends": func() error {
			_, err := r.Friends.ListFriends(ctx, ids[0])
			return err
		},
		"GetUser": func() error {
			_, err := r.Users.GetByID(ctx, ids[0])
			return err
		},
		"ToggleLike": func() error {
			_, err := r.Content.ToggleLike(ctx, post.ID, ids[1])
			return err
		},
		"ListPosts": func() error {
			_, err := r.Content.ListPostsByAuthors(ctx, []int64{ids[0]})
			return err
		},
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindStorageUnavailable), "got %v", err)
		})
	}
}
