package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-service/internal/apperror"
	"social-service/internal/events"
	"social-service/internal/logger"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/storage"
)

const (
	maxPostLen    = 5000
	maxCommentLen = 1000
)

type ContentService struct {
	content    repositories.ContentRepository
	directory  UserDirectory
	visibility *VisibilityResolver
	blobs      storage.BlobStore
	notifier   events.Notifier
	maxUpload  int64
}

func NewContentService(content repositories.ContentRepository, directory UserDirectory, visibility *VisibilityResolver, blobs storage.BlobStore, notifier events.Notifier, maxUpload int64) *ContentService {
	return &ContentService{
		content:    content,
		directory:  directory,
		visibility: visibility,
		blobs:      blobs,
		notifier:   notifier,
		maxUpload:  maxUpload,
	}
}

// CreatePost stores a post whose media, if any, is already uploaded.
func (s *ContentService) CreatePost(ctx context.Context, authorID int64, content string, media *models.Media) (*models.FeedItem, error) {
	content = strings.TrimSpace(content)
	hasMedia := media != nil && media.URL != ""
	if content == "" && !hasMedia {
		return nil, apperror.InvalidInput("post needs text or an attachment")
	}
	if utf8.RuneCountInString(content) > maxPostLen {
		return nil, apperror.InvalidInput("post is too long")
	}

	post := &models.Post{AuthorID: authorID, Content: content}
	if hasMedia {
		if media.Type != models.MediaImage && media.Type != models.MediaVideo {
			return nil, apperror.InvalidInput("attachment must be an image or a video")
		}
		post.MediaURL = media.URL
		post.MediaType = media.Type
	}
	if err := s.content.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.publishToAudience(ctx, models.EventPostCreated, authorID, authorID, models.PostPayload{PostID: post.ID, AuthorID: authorID})

	items, err := s.hydrate(ctx, authorID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// PublishPost uploads the optional attachment and then creates the post. The
// upload is removed again if the post cannot be stored.
func (s *ContentService) PublishPost(ctx context.Context, authorID int64, content string, upload *Upload) (*models.FeedItem, error) {
	if upload == nil {
		return s.CreatePost(ctx, authorID, content, nil)
	}

	mediaType, folder := classifyMedia(upload.ContentType)
	if mediaType == models.MediaNone {
		return nil, apperror.InvalidInput("attachment must be an image or a video")
	}
	if s.maxUpload > 0 && upload.Size > s.maxUpload {
		return nil, apperror.InvalidInput("file is too large")
	}

	url, err := s.blobs.Put(ctx, folder, upload.Filename, upload.ContentType, upload.Body, upload.Size)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageUnavailable, "failed to store attachment", err)
	}

	item, err := s.CreatePost(ctx, authorID, content, &models.Media{URL: url, Type: mediaType})
	if err != nil {
		s.removeBlob(ctx, url)
		return nil, err
	}
	return item, nil
}

func classifyMedia(contentType string) (models.MediaType, string) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage, storage.FolderImages
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo, storage.FolderVideos
	default:
		return models.MediaNone, ""
	}
}

// DeletePost removes a post with its likes and comments. Only the author may delete.
func (s *ContentService) DeletePost(ctx context.Context, postID, userID int64) error {
	post, err := s.content.DeletePost(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post.MediaURL != "" {
		s.removeBlob(ctx, post.MediaURL)
	}
	s.publishToAudience(ctx, models.EventPostDeleted, userID, post.AuthorID, models.PostPayload{PostID: post.ID, AuthorID: post.AuthorID})
	return nil
}

// ToggleLike flips userID's like on a post they can see. A post the user
// cannot see is reported as missing.
func (s *ContentService) ToggleLike(ctx context.Context, postID, userID int64) (models.LikeResult, error) {
	post, err := s.visiblePost(ctx, postID, userID)
	if err != nil {
		return models.LikeResult{}, err
	}

	result, err := s.content.ToggleLike(ctx, postID, userID)
	if err != nil {
		return models.LikeResult{}, err
	}

	eventType := models.EventPostUnliked
	if result.Liked {
		eventType = models.EventPostLiked
	}
	s.publishToAudience(ctx, eventType, userID, post.AuthorID, models.LikePayload{PostID: postID, UserID: userID})
	return result, nil
}

func (s *ContentService) AddComment(ctx context.Context, postID, authorID int64, content string) (*models.CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.InvalidInput("comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return nil, apperror.InvalidInput("comment is too long")
	}

	post, err := s.visiblePost(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: postID, AuthorID: authorID, Content: content}
	if err := s.content.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	s.publishToAudience(ctx, models.EventCommentCreated, authorID, post.AuthorID,
		models.CommentPayload{CommentID: comment.ID, PostID: postID, AuthorID: authorID})

	authors, err := s.directory.GetUsers(ctx, []int64{authorID})
	if err != nil {
		return nil, err
	}
	return &models.CommentView{Comment: *comment, Author: authors[authorID]}, nil
}

func (s *ContentService) ListComments(ctx context.Context, postID, viewerID int64) ([]models.CommentView, error) {
	if _, err := s.visiblePost(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	byPost, err := s.content.ListComments(ctx, []int64{postID})
	if err != nil {
		return nil, err
	}
	comments := byPost[postID]

	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := s.directory.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	return commentViews(comments, authors), nil
}

// FeedFor returns every post the viewer can see, newest first.
func (s *ContentService) FeedFor(ctx context.Context, viewerID int64) ([]models.FeedItem, error) {
	authors, err := s.visibility.VisibleAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.content.ListPostsByAuthors(ctx, authors)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, viewerID, posts)
}

// PostsByAuthor lists authorID's posts for a profile page; it is empty unless
// the viewer can see the author.
func (s *ContentService) PostsByAuthor(ctx context.Context, viewerID, authorID int64) ([]models.FeedItem, error) {
	users, err := s.directory.GetUsers(ctx, []int64{authorID})
	if err != nil {
		return nil, err
	}
	if _, ok := users[authorID]; !ok {
		return nil, repositories.ErrUserNotFound
	}

	visible, err := s.visibility.IsVisible(ctx, viewerID, authorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []models.FeedItem{}, nil
	}

	posts, err := s.content.ListPostsByAuthors(ctx, []int64{authorID})
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, viewerID, posts)
}

func (s *ContentService) visiblePost(ctx context.Context, postID, viewerID int64) (*models.Post, error) {
	post, err := s.content.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	visible, err := s.visibility.IsVisible(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, repositories.ErrPostNotFound
	}
	return post, nil
}

// hydrate annotates posts with like state, comments and author profiles.
func (s *ContentService) hydrate(ctx context.Context, viewerID int64, posts []models.Post) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
	}

	var (
		stats    map[int64]models.PostStats
		comments map[int64][]models.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.content.PostStats(gctx, postIDs, viewerID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = s.content.ListComments(gctx, postIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		userIDs = append(userIDs, p.AuthorID)
		for _, c := range comments[p.ID] {
			userIDs = append(userIDs, c.AuthorID)
		}
	}
	users, err := s.directory.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, p := range posts {
		st := stats[p.ID]
		items = append(items, models.FeedItem{
			Post:       p,
			Author:     authorOf(users, p.AuthorID),
			LikesCount: st.LikesCount,
			LikedByMe:  st.LikedByMe,
			Comments:   commentViews(comments[p.ID], users),
		})
	}
	return items, nil
}

func commentViews(comments []models.Comment, users map[int64]models.Author) []models.CommentView {
	out := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, models.CommentView{Comment: c, Author: authorOf(users, c.AuthorID)})
	}
	return out
}

func authorOf(users map[int64]models.Author, id int64) models.Author {
	if u, ok := users[id]; ok {
		return u
	}
	return models.Author{ID: id}
}

func (s *ContentService) publishToAudience(ctx context.Context, eventType string, actorID, authorID int64, payload any) {
	audience, err := s.visibility.Audience(ctx, authorID)
	if err != nil {
		logger.Get().Warn("failed to resolve event audience", zap.String("event_type", eventType), zap.Error(err))
		audience = []int64{authorID}
	}
	publish(ctx, s.notifier, events.New(eventType, actorID, audience, payload))
}

func (s *ContentService) removeBlob(ctx context.Context, url string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		logger.Get().Warn("failed to remove stored file", zap.String("url", url), zap.Error(err))
	}
}
