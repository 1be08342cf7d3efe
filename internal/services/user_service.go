package services

import (
	"context"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/auth"
	"social-service/internal/logger"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/storage"
)

const (
	searchLimit    = 20
	directoryLimit = 100
	minPasswordLen = 6
	maxDisplayName = 60
	maxBioLen      = 500
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

// UserDirectory resolves public user summaries; content and friend views use it
// to attach authors.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []int64) (map[int64]models.Author, error)
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Upload is a file received from a client, not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UserService struct {
	users     repositories.UserRepository
	hasher    auth.PasswordHasher
	tokens    *auth.TokenManager
	blobs     storage.BlobStore
	maxUpload int64
}

func NewUserService(users repositories.UserRepository, hasher auth.PasswordHasher, tokens *auth.TokenManager, blobs storage.BlobStore, maxUpload int64) *UserService {
	return &UserService{users: users, hasher: hasher, tokens: tokens, blobs: blobs, maxUpload: maxUpload}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if !usernamePattern.MatchString(in.Username) {
		return nil, apperror.InvalidInput("username must be 3-30 letters, digits, dots or underscores")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return nil, apperror.InvalidInput("email is not valid")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLen {
		return nil, apperror.InvalidInput("password must be at least 6 characters")
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}
	if utf8.RuneCountInString(in.DisplayName) > maxDisplayName {
		return nil, apperror.InvalidInput("display name is too long")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageUnavailable, "failed to hash password", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login accepts either the username or the email as the login name.
func (s *UserService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperror.InvalidInput("username and password are required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if apperror.Is(err, apperror.KindNotFound) {
		user, err = s.users.GetByLogin(ctx, strings.ToLower(login))
	}
	if apperror.Is(err, apperror.KindNotFound) {
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageUnavailable, "failed to issue token", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *UserService) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.Author, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	author := toAuthor(*user)
	return &author, nil
}

func (s *UserService) GetUsers(ctx context.Context, ids []int64) (map[int64]models.Author, error) {
	users, err := s.users.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]models.Author, len(users))
	for id, u := range users {
		out[id] = toAuthor(u)
	}
	return out, nil
}

func (s *UserService) Search(ctx context.Context, query string) ([]models.Author, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Author{}, nil
	}
	users, err := s.users.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	return toAuthors(users), nil
}

// ListOthers returns everyone except userID, for the people directory.
func (s *UserService) ListOthers(ctx context.Context, userID int64) ([]models.Author, error) {
	users, err := s.users.List(ctx, userID, directoryLimit)
	if err != nil {
		return nil, err
	}
	return toAuthors(users), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id int64, displayName, bio *string) (*models.User, error) {
	update := models.ProfileUpdate{}
	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
			return nil, apperror.InvalidInput("display name must be 1-60 characters")
		}
		update.DisplayName = &name
	}
	if bio != nil {
		text := strings.TrimSpace(*bio)
		if utf8.RuneCountInString(text) > maxBioLen {
			return nil, apperror.InvalidInput("bio is too long")
		}
		update.Bio = &text
	}
	return s.users.UpdateProfile(ctx, id, update)
}

// SetAvatar stores an image and points the profile at it. The previous avatar
// is removed from storage on a best-effort basis.
func (s *UserService) SetAvatar(ctx context.Context, id int64, upload Upload) (*models.User, error) {
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, apperror.InvalidInput("avatar must be an image")
	}
	if s.maxUpload > 0 && upload.Size > s.maxUpload {
		return nil, apperror.InvalidInput("file is too large")
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.blobs.Put(ctx, storage.FolderAvatars, upload.Filename, upload.ContentType, upload.Body, upload.Size)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageUnavailable, "failed to store avatar", err)
	}

	if err := s.users.SetAvatarURL(ctx, id, url); err != nil {
		s.removeBlob(ctx, url)
		return nil, err
	}
	if current.AvatarURL != "" {
		s.removeBlob(ctx, current.AvatarURL)
	}

	current.AvatarURL = url
	return current, nil
}

func (s *UserService) ClearAvatar(ctx context.Context, id int64) error {
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.SetAvatarURL(ctx, id, ""); err != nil {
		return err
	}
	if current.AvatarURL != "" {
		s.removeBlob(ctx, current.AvatarURL)
	}
	return nil
}

func (s *UserService) removeBlob(ctx context.Context, url string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		logger.Get().Warn("failed to remove stored file", zap.String("url", url), zap.Error(err))
	}
}

func toAuthor(u models.User) models.Author {
	return models.Author{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

func toAuthors(users []models.User) []models.Author {
	out := make([]models.Author, 0, len(users))
	for _, u := range users {
		out = append(out, toAuthor(u))
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
