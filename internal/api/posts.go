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

// PostService is the post use cases the handlers call
type PostService interface {
	List(ctx context.Context, actor service.Actor, f service.PostFilter) (*service.PostPage, error)
	MyPosts(ctx context.Context, actor service.Actor, f service.PostFilter) (*service.PostPage, error)
	Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, actor service.Actor, slug string) (*models.Post, error)
	Create(ctx context.Context, actor service.Actor, in service.CreatePostInput) (*models.Post, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, in service.UpdatePostInput) (*models.Post, error)
	Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error
	Like(ctx context.Context, actor service.Actor, id uuid.UUID) (int64, error)
	Unlike(ctx context.Context, actor service.Actor, id uuid.UUID) (int64, error)
}

type listPostsQuery struct {
	Query     string `form:"q"`
	Search    string `form:"search"`
	Category  string `form:"category"`
	Tag       string `form:"tag"`
	Author    string `form:"author"`
	Status    string `form:"status"`
	DateFrom  string `form:"dateFrom"`
	DateTo    string `form:"dateTo"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

func (q listPostsQuery) filter() service.PostFilter {
	text := q.Query
	if text == "" {
		text = q.Search
	}
	return service.PostFilter{
		Query:     text,
		Category:  q.Category,
		Tag:       q.Tag,
		Author:    q.Author,
		Status:    q.Status,
		DateFrom:  q.DateFrom,
		DateTo:    q.DateTo,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		Limit:     q.Limit,
	}
}

type seoRequest struct {
	MetaTitle       string   `json:"metaTitle" binding:"max=60"`
	MetaDescription string   `json:"metaDescription" binding:"max=160"`
	Keywords        []string `json:"keywords" binding:"max=20,dive,max=50"`
}

func (r *seoRequest) input() *service.SEOInput {
	if r == nil {
		return nil
	}
	return &service.SEOInput{MetaTitle: r.MetaTitle, MetaDescription: r.MetaDescription, Keywords: r.Keywords}
}

type createPostRequest struct {
	Title         string      `json:"title" binding:"required,max=200"`
	Content       string      `json:"content" binding:"required"`
	Excerpt       string      `json:"excerpt" binding:"max=500"`
	FeaturedImage string      `json:"featuredImage" binding:"omitempty,url"`
	Categories    []string    `json:"categories" binding:"max=20,dive,max=50"`
	Tags          []string    `json:"tags" binding:"max=30,dive,max=30"`
	Status        string      `json:"status" binding:"omitempty,oneof=draft published"`
	IsPublic      *bool       `json:"isPublic"`
	SEO           *seoRequest `json:"seo"`
}

type updatePostRequest struct {
	Title         *string     `json:"title" binding:"omitempty,max=200"`
	Content       *string     `json:"content"`
	Excerpt       *string     `json:"excerpt" binding:"omitempty,max=500"`
	FeaturedImage *string     `json:"featuredImage"`
	Categories    *[]string   `json:"categories" binding:"omitempty,max=20,dive,max=50"`
	Tags          *[]string   `json:"tags" binding:"omitempty,max=30,dive,max=30"`
	Status        *string     `json:"status" binding:"omitempty,oneof=draft published archived"`
	IsPublic      *bool       `json:"isPublic"`
	SEO           *seoRequest `json:"seo"`
}

// PostHandler serves /posts
type PostHandler struct {
	posts PostService
}

func NewPostHandler(posts PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterRoutes mounts the post routes. create is the extra limiter for
// new posts.
func (h *PostHandler) RegisterRoutes(g *gin.RouterGroup, optional, required, create gin.HandlerFunc) {
	posts := g.Group("/posts")
	posts.GET("", optional, h.list)
	posts.GET("/my/posts", required, h.myPosts)
	posts.GET("/slug/:slug", optional, h.getBySlug)
	posts.GET("/:id", optional, h.get)
	posts.POST("", required, create, h.create)
	posts.PUT("/:id", required, h.update)
	posts.DELETE("/:id", required, h.delete)
	posts.POST("/:id/like", required, h.like)
	posts.DELETE("/:id/like", required, h.unlike)
}

func (h *PostHandler) list(c *gin.Context) {
	h.listWith(c, h.posts.List)
}

func (h *PostHandler) myPosts(c *gin.Context) {
	h.listWith(c, h.posts.MyPosts)
}

func (h *PostHandler) listWith(c *gin.Context, list func(context.Context, service.Actor, service.PostFilter) (*service.PostPage, error)) {
	var q listPostsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, err)
		return
	}
	page, err := list(c.Request.Context(), currentActor(c), q.filter())
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"posts":      objects.NewPosts(page.Posts),
		"pagination": page.Pagination,
	}, "")
}

func (h *PostHandler) get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), currentActor(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"post": objects.NewPost(post)}, "")
}

func (h *PostHandler) getBySlug(c *gin.Context) {
	post, err := h.posts.GetBySlug(c.Request.Context(), currentActor(c), c.Param("slug"))
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"post": objects.NewPost(post)}, "")
}

func (h *PostHandler) create(c *gin.Context) {
	var req createPostRequest
	if !bind(c, &req) {
		return
	}
	post, err := h.posts.Create(c.Request.Context(), currentActor(c), service.CreatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		Categories:    req.Categories,
		Tags:          req.Tags,
		Status:        models.PostStatus(req.Status),
		IsPublic:      req.IsPublic,
		SEO:           req.SEO.input(),
	})
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"post": objects.NewPost(post)}, "Post created successfully")
}

func (h *PostHandler) update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updatePostRequest
	if !bind(c, &req) {
		return
	}
	in := service.UpdatePostInput{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		FeaturedImage: req.FeaturedImage,
		Categories:    req.Categories,
		Tags:          req.Tags,
		IsPublic:      req.IsPublic,
		SEO:           req.SEO.input(),
	}
	if req.Status != nil {
		status := models.PostStatus(*req.Status)
		in.Status = &status
	}
	post, err := h.posts.Update(c.Request.Context(), currentActor(c), id, in)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"post": objects.NewPost(post)}, "Post updated successfully")
}

func (h *PostHandler) delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Post deleted successfully")
}

func (h *PostHandler) like(c *gin.Context) {
	h.adjustLikes(c, h.posts.Like)
}

func (h *PostHandler) unlike(c *gin.Context) {
	h.adjustLikes(c, h.posts.Unlike)
}

func (h *PostHandler) adjustLikes(c *gin.Context, adjust func(context.Context, service.Actor, uuid.UUID) (int64, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := adjust(c.Request.Context(), currentActor(c), id)
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"likeCount": n}, "")
}
