package handlers

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social-service/internal/auth"
	"social-service/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth    *AuthHandler
	Users   *UserHandler
	Friends *FriendHandler
	Posts   *PostHandler
	Events  *EventsHandler
}

type RouterConfig struct {
	Tokens *auth.TokenManager
	// UploadDir is served under UploadPath when blobs are stored on local disk.
	UploadDir  string
	UploadPath string
	// MaxUploadBytes bounds the body of upload routes; zero disables the limit.
	MaxUploadBytes int64
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	r.GET("/healthz", healthz(cfg.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.UploadDir != "" && cfg.UploadPath != "" {
		r.Static(cfg.UploadPath, cfg.UploadDir)
	}

	api := r.Group("/api")
	api.POST("/register", h.Auth.Register)
	api.POST("/login", h.Auth.Login)

	authed := api.Group("", middleware.JWTAuth(cfg.Tokens))
	authed.GET("/me", h.Users.GetMe)
	authed.PATCH("/me", h.Users.UpdateMe)
	upload := middleware.LimitUploadBody(cfg.MaxUploadBytes)

	authed.POST("/me/avatar", upload, h.Users.UploadAvatar)
	authed.DELETE("/me/avatar", h.Users.DeleteAvatar)
	authed.GET("/users", h.Users.List)
	authed.GET("/users/search", h.Users.Search)
	authed.GET("/users/:id", h.Users.GetUserByID)
	authed.GET("/users/:id/posts", h.Posts.UserPosts)

	authed.GET("/friends", h.Friends.ListFriends)
	authed.POST("/friend-requests", h.Friends.SendRequest)
	authed.GET("/friend-requests", h.Friends.ListIncoming)
	authed.GET("/friend-requests/outgoing", h.Friends.ListOutgoing)
	authed.POST("/friend-requests/:id/accept", h.Friends.AcceptRequest)
	authed.POST("/friend-requests/:id/reject", h.Friends.RejectRequest)

	authed.GET("/posts", h.Posts.Feed)
	authed.POST("/posts", upload, h.Posts.Create)
	authed.DELETE("/posts/:id", h.Posts.Delete)
	authed.POST("/posts/:id/like", h.Posts.ToggleLike)
	authed.GET("/posts/:id/comments", h.Posts.ListComments)
	authed.POST("/posts/:id/comments", h.Posts.AddComment)

	authed.GET("/events", h.Events.Stream)

	return r
}

func healthz(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	}
}
