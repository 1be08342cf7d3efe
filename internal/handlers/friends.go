package handlers

import (
	"context"
	nethttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/metrics"
	"social-service/internal/models"
	"social-service/internal/services"
	"social-service/internal/telemetry"
)

type FriendHandler struct {
	auditor
	friends *services.FriendService
}

func NewFriendHandler(friends *services.FriendService, audit telemetry.Auditor) *FriendHandler {
	return &FriendHandler{auditor: auditor{audit: audit}, friends: friends}
}

type sendRequestBody struct {
	ToUserID int64 `json:"to_user_id" binding:"required"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)
	ctx := c.Request.Context()

	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.emitAudit(ctx, telemetry.LevelError, "invalid request payload", requestID, userID)
		metrics.IncFriendRequest(metrics.StatusFailed)
		badRequest(c, "invalid request body")
		return
	}

	if userID == nil {
		metrics.IncFriendRequest(metrics.StatusFailed)
		currentUser(c)
		return
	}

	req, err := h.friends.SendRequest(ctx, *userID, body.ToUserID)
	if err != nil {
		h.emitAudit(ctx, telemetry.LevelError, err.Error(), requestID, userID)
		metrics.IncFriendRequest(metrics.StatusFailed)
		respondError(c, err)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Friend request sent to '"+strconv.FormatInt(body.ToUserID, 10)+"'", requestID, userID)
	metrics.IncFriendRequest(metrics.StatusSuccess)
	c.JSON(nethttp.StatusCreated, req)
}

func (h *FriendHandler) ListIncoming(c *gin.Context) {
	h.listRequests(c, h.friends.IncomingRequests)
}

func (h *FriendHandler) ListOutgoing(c *gin.Context) {
	h.listRequests(c, h.friends.OutgoingRequests)
}

func (h *FriendHandler) listRequests(c *gin.Context, list func(ctx context.Context, userID int64) ([]services.RequestView, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requests, err := list(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, requests)
}

func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	h.handleDecision(c, h.friends.AcceptRequest, "accepted", metrics.IncFriendAccept)
}

func (h *FriendHandler) RejectRequest(c *gin.Context) {
	h.handleDecision(c, h.friends.RejectRequest, "rejected", metrics.IncFriendReject)
}

func (h *FriendHandler) handleDecision(c *gin.Context, action func(ctx context.Context, requestID, userID int64) (*models.FriendRequest, error), status string, inc func(string)) {
	reqID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		inc(metrics.StatusFailed)
		badRequest(c, "invalid request id")
		return
	}

	requestID := requestIDFromHeader(c)
	userID := userIDFromContext(c)
	if userID == nil {
		inc(metrics.StatusFailed)
		currentUser(c)
		return
	}

	ctx := c.Request.Context()
	req, err := action(ctx, reqID, *userID)
	if err != nil {
		h.emitAudit(ctx, telemetry.LevelError, err.Error(), requestID, userID)
		inc(metrics.StatusFailed)
		respondError(c, err)
		return
	}

	h.emitAudit(ctx, telemetry.LevelInfo, "Friend request "+status, requestID, userID)
	inc(metrics.StatusSuccess)
	c.JSON(nethttp.StatusOK, req)
}

func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	friends, err := h.friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, friends)
}
