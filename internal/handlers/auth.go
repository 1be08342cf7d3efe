package handlers

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/services"
	"social-service/internal/telemetry"
)

type AuthHandler struct {
	auditor
	users *services.UserService
}

func NewAuthHandler(users *services.UserService, audit telemetry.Auditor) *AuthHandler {
	return &AuthHandler{auditor: auditor{audit: audit}, users: users}
}

type registerBody struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type loginBody struct {
	// Username may also hold the email address.
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "username, email and password are required")
		return
	}

	res, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		h.emitAudit(c.Request.Context(), telemetry.LevelWarn, "registration failed: "+err.Error(), requestIDFromHeader(c), nil)
		respondError(c, err)
		return
	}

	h.emitAudit(c.Request.Context(), telemetry.LevelInfo, "user registered '"+res.User.Username+"'", requestIDFromHeader(c), &res.User.ID)
	c.JSON(nethttp.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	res, err := h.users.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.emitAudit(c.Request.Context(), telemetry.LevelWarn, "login failed", requestIDFromHeader(c), nil)
		respondError(c, err)
		return
	}

	h.emitAudit(c.Request.Context(), telemetry.LevelInfo, "user logged in", requestIDFromHeader(c), &res.User.ID)
	c.JSON(nethttp.StatusOK, res)
}
