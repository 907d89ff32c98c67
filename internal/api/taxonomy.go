package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blogsphere/blogapi/internal/api/objects"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
)

// TaxonomyService is the category and tag use cases the handlers call
type TaxonomyService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, slug string) (*models.Category, error)
	UpsertCategory(ctx context.Context, actor service.Actor, in service.CategoryInput) (*models.Category, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=200"`
	Color       string `json:"color" binding:"omitempty,hexcolor"`
}

// TaxonomyHandler serves /categories and /tags
type TaxonomyHandler struct {
	taxonomy TaxonomyService
}

func NewTaxonomyHandler(taxonomy TaxonomyService) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy}
}

func (h *TaxonomyHandler) RegisterRoutes(g *gin.RouterGroup, required gin.HandlerFunc) {
	g.GET("/categories", h.listCategories)
	g.GET("/categories/:slug", h.getCategory)
	g.POST("/categories", required, h.upsertCategory)
	g.GET("/tags", h.listTags)
}

func (h *TaxonomyHandler) listCategories(c *gin.Context) {
	categories, err := h.taxonomy.ListCategories(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"categories": objects.NewCategories(categories)}, "")
}

func (h *TaxonomyHandler) getCategory(c *gin.Context) {
	category, err := h.taxonomy.GetCategory(c.Request.Context(), c.Param("slug"))
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"category": objects.NewCategory(category)}, "")
}

func (h *TaxonomyHandler) upsertCategory(c *gin.Context) {
	var req categoryRequest
	if !bind(c, &req) {
		return
	}
	category, err := h.taxonomy.UpsertCategory(c.Request.Context(), currentActor(c), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"category": objects.NewCategory(category)}, "Category saved successfully")
}

func (h *TaxonomyHandler) listTags(c *gin.Context) {
	tags, err := h.taxonomy.ListTags(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"tags": objects.NewTags(tags)}, "")
}
