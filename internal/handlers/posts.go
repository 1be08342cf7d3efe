package handlers

import (
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"social-service/internal/metrics"
	"social-service/internal/services"
	"social-service/internal/telemetry"
)

type PostHandler struct {
	auditor
	content *services.ContentService
}

func NewPostHandler(content *services.ContentService, audit telemetry.Auditor) *PostHandler {
	return &PostHandler{auditor: auditor{audit: audit}, content: content}
}

func (h *PostHandler) Feed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.content.FeedFor(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, items)
}

type createPostBody struct {
	Content string `json:"content"`
}

// Create accepts multipart (content plus an optional media file) or a JSON body.
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var (
		content string
		upload  *services.Upload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if !readMultipart(c) {
			metrics.IncPostCreated(metrics.StatusFailed)
			return
		}
		content = c.PostForm("content")
		if file, err := c.FormFile("media"); err == nil {
			u, closeFn, err := openUpload(file)
			if err != nil {
				metrics.IncPostCreated(metrics.StatusFailed)
				badRequest(c, "unreadable file")
				return
			}
			defer closeFn()
			upload = &u
		}
	} else {
		var body createPostBody
		if err := c.ShouldBindJSON(&body); err != nil {
			metrics.IncPostCreated(metrics.StatusFailed)
			badRequest(c, "invalid request body")
			return
		}
		content = body.Content
	}

	item, err := h.content.PublishPost(c.Request.Context(), userID, content, upload)
	h.auditOutcome(c, "post created", err)
	if err != nil {
		metrics.IncPostCreated(metrics.StatusFailed)
		respondError(c, err)
		return
	}
	metrics.IncPostCreated(metrics.StatusSuccess)
	c.JSON(nethttp.StatusCreated, item)
}

func (h *PostHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id", "post id")
	if !ok {
		return
	}

	err := h.content.DeletePost(c.Request.Context(), postID, userID)
	h.auditOutcome(c, "post deleted", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(nethttp.StatusNoContent)
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id", "post id")
	if !ok {
		return
	}

	result, err := h.content.ToggleLike(c.Request.Context(), postID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	metrics.IncLikeToggle(result.Liked)
	c.JSON(nethttp.StatusOK, result)
}

func (h *PostHandler) ListComments(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id", "post id")
	if !ok {
		return
	}

	comments, err := h.content.ListComments(c.Request.Context(), postID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, comments)
}

type addCommentBody struct {
	Content string `json:"content" binding:"required"`
}

func (h *PostHandler) AddComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := parseIDParam(c, "id", "post id")
	if !ok {
		return
	}

	var body addCommentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.IncComment(metrics.StatusFailed)
		badRequest(c, "invalid request body")
		return
	}

	comment, err := h.content.AddComment(c.Request.Context(), postID, userID, body.Content)
	h.auditOutcome(c, "comment added", err)
	if err != nil {
		metrics.IncComment(metrics.StatusFailed)
		respondError(c, err)
		return
	}
	metrics.IncComment(metrics.StatusSuccess)
	c.JSON(nethttp.StatusCreated, comment)
}

func (h *PostHandler) UserPosts(c *gin.Context) {
	viewerID, ok := currentUser(c)
	if !ok {
		return
	}
	authorID, ok := parseIDParam(c, "id", "user id")
	if !ok {
		return
	}

	items, err := h.content.PostsByAuthor(c.Request.Context(), viewerID, authorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, items)
}
