package handlers

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"social-service/internal/models"
	"social-service/internal/services"
	"social-service/internal/telemetry"
)

type UserHandler struct {
	auditor
	users   *services.UserService
	friends *services.FriendService
}

func NewUserHandler(users *services.UserService, friends *services.FriendService, audit telemetry.Auditor) *UserHandler {
	return &UserHandler{auditor: auditor{audit: audit}, users: users, friends: friends}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var (
		user     *models.User
		friends  []models.Author
		incoming []services.RequestView
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		user, err = h.users.GetProfile(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		friends, err = h.friends.ListFriends(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		incoming, err = h.friends.IncomingRequests(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(nethttp.StatusOK, gin.H{
		"user":              user,
		"friends":           friends,
		"incoming_requests": incoming,
	})
}

type updateProfileBody struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, body.DisplayName, body.Bio)
	h.auditOutcome(c, "profile updated", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, user)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	viewerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id", "user id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetProfile(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	relationship, err := h.friends.Relationship(ctx, viewerID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(nethttp.StatusOK, gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"display_name": user.DisplayName,
		"bio":          user.Bio,
		"avatar_url":   user.AvatarURL,
		"created_at":   user.CreatedAt,
		"relationship": relationship,
	})
}

func (h *UserHandler) Search(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	users, err := h.users.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, users)
}

func (h *UserHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.users.ListOthers(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, users)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if !readMultipart(c) {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing file")
		return
	}
	upload, closeFn, err := openUpload(file)
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer closeFn()

	user, err := h.users.SetAvatar(c.Request.Context(), userID, upload)
	h.auditOutcome(c, "avatar updated", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"avatar_url": user.AvatarURL})
}

func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	err := h.users.ClearAvatar(c.Request.Context(), userID)
	h.auditOutcome(c, "avatar removed", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}
