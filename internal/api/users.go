package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogsphere/blogapi/internal/api/objects"
	"github.com/blogsphere/blogapi/internal/service"
)

// UserService resolves public profiles
type UserService interface {
	Profile(ctx context.Context, username string) (*service.PublicProfile, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/users/:username", h.profile)
}

func (h *UserHandler) profile(c *gin.Context) {
	p, err := h.users.Profile(c.Request.Context(), c.Param("username"))
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"user":        objects.NewUser(p.User, false),
		"recentPosts": objects.NewPosts(p.RecentPosts),
		"postCount":   p.PostCount,
	}, "")
}
