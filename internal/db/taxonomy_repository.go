package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blogsphere/blogapi/internal/content"
	"github.com/blogsphere/blogapi/internal/models"
)

// termRow is the column subset shared by categories and tags, used for the
// upsert path so both registries share one implementation.
type termRow struct {
	ID        uuid.UUID `gorm:"column:id"`
	Name      string    `gorm:"column:name"`
	Slug      string    `gorm:"column:slug"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (t *termRow) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Slug == "" {
		t.Slug = content.TermSlug(t.Name)
	}
	return nil
}

// termRepository implements Terms over one registry table and its join table
type termRepository struct {
	*Repository
	table      string
	joinTable  string
	joinColumn string
}

// NormalizeTermNames trims names, drops empty ones and removes duplicates
// while keeping the first occurrence order.
func NormalizeTermNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Ensure inserts the missing names with ON CONFLICT DO NOTHING and then reads
// back every row matching by name or slug.
func (r *termRepository) Ensure(ctx context.Context, names []string) ([]uuid.UUID, error) {
	names = NormalizeTermNames(names)
	if len(names) == 0 {
		return nil, nil
	}

	rows := make([]termRow, 0, len(names))
	slugs := make([]string, 0, len(names))
	for _, name := range names {
		slug := content.TermSlug(name)
		if slug == "" {
			return nil, fmt.Errorf("%s name %q has no usable characters", r.table, name)
		}
		rows = append(rows, termRow{Name: name, Slug: slug})
		slugs = append(slugs, slug)
	}

	db := r.db.WithContext(ctx)
	if err := db.Table(r.table).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("upsert %s: %w", r.table, err)
	}

	var found []termRow
	if err := db.Table(r.table).Select("id", "name", "slug").
		Where("name IN ? OR slug IN ?", names, slugs).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", r.table, err)
	}

	byName := make(map[string]uuid.UUID, len(found))
	bySlug := make(map[string]uuid.UUID, len(found))
	for _, f := range found {
		byName[f.Name] = f.ID
		bySlug[f.Slug] = f.ID
	}

	ids := make([]uuid.UUID, 0, len(names))
	for i, name := range names {
		if id, ok := byName[name]; ok {
			ids = append(ids, id)
			continue
		}
		if id, ok := bySlug[slugs[i]]; ok {
			ids = append(ids, id)
			continue
		}
		return nil, fmt.Errorf("%s %q missing after upsert", r.table, name)
	}
	return dedupeIDs(ids), nil
}

// IDBySlug resolves a slug to an id
func (r *termRepository) IDBySlug(ctx context.Context, slug string) (uuid.UUID, bool, error) {
	var row termRow
	err := r.db.WithContext(ctx).Table(r.table).Select("id").Where("slug = ?", slug).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return row.ID, true, nil
}

// AdjustPostCounts adds delta to post_count of every id, never going below zero
func (r *termRepository) AdjustPostCounts(ctx context.Context, ids []uuid.UUID, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Table(r.table).
		Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr("GREATEST(post_count + ?, 0)", delta)).Error
}

// Recount recomputes post_count from the join table
func (r *termRepository) Recount(ctx context.Context) (int64, error) {
	sql := fmt.Sprintf(`UPDATE %[1]s t SET post_count = s.n
FROM (
	SELECT x.id, COUNT(j.post_id) AS n
	FROM %[1]s x LEFT JOIN %[2]s j ON j.%[3]s = x.id
	GROUP BY x.id
) s
WHERE s.id = t.id AND t.post_count <> s.n`, r.table, r.joinTable, r.joinColumn)

	res := r.db.WithContext(ctx).Exec(sql)
	return res.RowsAffected, res.Error
}

// CategoryRepository provides category-related database operations
type CategoryRepository struct {
	*termRepository
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(repo *Repository) *CategoryRepository {
	return &CategoryRepository{termRepository: &termRepository{
		Repository: repo,
		table:      "categories",
		joinTable:  "post_categories",
		joinColumn: "category_id",
	}}
}

// List returns every category ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// GetBySlug retrieves a category by slug
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

// Upsert creates the category or, when the name or slug already exists,
// updates the description and color of the existing row.
func (r *CategoryRepository) Upsert(ctx context.Context, category *models.Category) (*models.Category, error) {
	ids, err := r.Ensure(ctx, []string{category.Name})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("category name is empty")
	}

	updates := map[string]interface{}{}
	if category.Description != "" {
		updates["description"] = category.Description
	}
	if category.Color != "" {
		updates["color"] = category.Color
	}
	db := r.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.Category{}).Where("id = ?", ids[0]).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	var stored models.Category
	if err := db.First(&stored, "id = ?", ids[0]).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// TagRepository provides tag-related database operations
type TagRepository struct {
	*termRepository
}

// NewTagRepository creates a new tag repository
func NewTagRepository(repo *Repository) *TagRepository {
	return &TagRepository{termRepository: &termRepository{
		Repository: repo,
		table:      "tags",
		joinTable:  "post_tags",
		joinColumn: "tag_id",
	}}
}

// List returns every tag, most used first
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Order("post_count DESC").Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}
