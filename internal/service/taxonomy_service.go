package service

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/content"
	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/logging"
)

const (
	maxCategoryName        = 50
	maxCategoryDescription = 200
	maxTagName             = 30
)

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// CategoryInput creates or updates a category
type CategoryInput struct {
	Name        string
	Description string
	Color       string
}

// TaxonomyService serves categories and tags
type TaxonomyService struct {
	store  db.Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewTaxonomyService creates a taxonomy service. cache may be nil.
func NewTaxonomyService(store db.Store, cache Cache, ttl time.Duration) *TaxonomyService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TaxonomyService{store: store, cache: cache, ttl: ttl, logger: logging.WithComponent("taxonomy")}
}

// ListCategories returns every category ordered by name
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if s.cached(ctx, categoriesCacheKey, &categories) {
		return categories, nil
	}
	categories, err := s.store.Categories().List(ctx)
	if err != nil {
		return nil, Internal("list categories", err)
	}
	s.fill(ctx, categoriesCacheKey, categories)
	return categories, nil
}

// GetCategory returns the category with slug
func (s *TaxonomyService) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.store.Categories().GetBySlug(ctx, slug)
	if err != nil {
		return nil, Internal("get category", err)
	}
	if category == nil {
		return nil, NotFound("Category not found")
	}
	return category, nil
}

// UpsertCategory creates a category, or updates description and color of the
// one with the same name or slug. Admins only.
func (s *TaxonomyService) UpsertCategory(ctx context.Context, actor Actor, in CategoryInput) (*models.Category, error) {
	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	if !actor.IsAdmin() {
		return nil, Forbidden("Admin access required")
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := validateTermName("Category", in.Name, maxCategoryName); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in.Description) > maxCategoryDescription {
		return nil, Validation("Category description must be at most 200 characters")
	}
	if in.Color != "" && !colorPattern.MatchString(in.Color) {
		return nil, Validation("Category color must be a hex color such as #6366f1")
	}

	var stored *models.Category
	err := s.store.Transaction(ctx, func(tx db.Store) error {
		var err error
		stored, err = tx.Categories().Upsert(ctx, &models.Category{
			Name:        in.Name,
			Description: in.Description,
			Color:       in.Color,
		})
		return err
	})
	if err != nil {
		return nil, storeError("upsert category", err, "Category already exists")
	}
	invalidateTaxonomy(ctx, s.cache, s.logger)
	return stored, nil
}

// ListTags returns every tag, most used first
func (s *TaxonomyService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if s.cached(ctx, tagsCacheKey, &tags) {
		return tags, nil
	}
	tags, err := s.store.Tags().List(ctx)
	if err != nil {
		return nil, Internal("list tags", err)
	}
	s.fill(ctx, tagsCacheKey, tags)
	return tags, nil
}

func (s *TaxonomyService) cached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dest)
	logCacheError(s.logger, "get "+key, err)
	return err == nil && found
}

func (s *TaxonomyService) fill(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	logCacheError(s.logger, "set "+key, s.cache.SetJSON(ctx, key, value, s.ttl))
}

func validateTermName(kind, name string, maxLen int) error {
	if name == "" {
		return Validation(kind + " name is required")
	}
	if utf8.RuneCountInString(name) > maxLen {
		return Validation(kind + " name is too long")
	}
	if content.TermSlug(name) == "" {
		return Validation(kind + " name must contain letters or digits")
	}
	return nil
}

// validateTermNames checks every category or tag name of a post
func validateTermNames(categories, tags []string) error {
	for _, name := range db.NormalizeTermNames(categories) {
		if err := validateTermName("Category", name, maxCategoryName); err != nil {
			return err
		}
	}
	for _, name := range db.NormalizeTermNames(tags) {
		if err := validateTermName("Tag", name, maxTagName); err != nil {
			return err
		}
	}
	return nil
}
