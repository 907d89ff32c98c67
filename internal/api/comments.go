package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blogsphere/blogapi/internal/api/objects"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
)

// CommentService is the comment use cases the handlers call
type CommentService interface {
	List(ctx context.Context, actor service.Actor, postID uuid.UUID, page, limit int) (*service.CommentPage, error)
	Create(ctx context.Context, actor service.Actor, postID uuid.UUID, in service.CommentInput) (*models.Comment, error)
	Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error
}

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type createCommentRequest struct {
	Content       string `json:"content" binding:"required,max=1000"`
	ParentComment string `json:"parentComment" binding:"omitempty,uuid"`
}

// CommentHandler serves comments, nested under posts for reads and writes
type CommentHandler struct {
	comments CommentService
}

func NewCommentHandler(comments CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

func (h *CommentHandler) RegisterRoutes(g *gin.RouterGroup, optional, required gin.HandlerFunc) {
	g.GET("/posts/:id/comments", optional, h.list)
	g.POST("/posts/:id/comments", required, h.create)
	g.DELETE("/comments/:id", required, h.delete)
}

func (h *CommentHandler) list(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, err)
		return
	}
	page, err := h.comments.List(c.Request.Context(), currentActor(c), postID, q.Page, q.Limit)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"comments":   objects.NewComments(page.Comments),
		"pagination": page.Pagination,
	}, "")
}

func (h *CommentHandler) create(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req createCommentRequest
	if !bind(c, &req) {
		return
	}
	in := service.CommentInput{Content: req.Content}
	if req.ParentComment != "" {
		parent := uuid.MustParse(req.ParentComment)
		in.ParentID = &parent
	}
	comment, err := h.comments.Create(c.Request.Context(), currentActor(c), postID, in)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"comment": objects.NewComment(comment)}, "Comment added successfully")
}

func (h *CommentHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Comment deleted successfully")
}
