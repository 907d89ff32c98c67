package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blogsphere/blogapi/internal/models"
)

// sortColumns maps the public sort keys to columns
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"publishedAt": "published_at",
	"viewCount":   "view_count",
	"likeCount":   "like_count",
	"title":       "title",
}

// SortColumn reports the column behind a public sort key
func SortColumn(key string) (string, bool) {
	col, ok := sortColumns[key]
	return col, ok
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

func withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "first_name", "last_name", "avatar")
		}).
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		}).
		Preload("Tags", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		})
}

// GetByID retrieves a post with its author, categories and tags
func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return r.first(ctx, "posts.id = ?", id)
}

// GetBySlug retrieves a post by slug with its author, categories and tags
func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.first(ctx, "posts.slug = ?", slug)
}

func (r *PostRepository) first(ctx context.Context, query string, args ...interface{}) (*models.Post, error) {
	var post models.Post
	if err := withAssociations(r.db.WithContext(ctx)).Where(query, args...).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// SlugExists reports whether a post already uses slug
func (r *PostRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// filter applies the predicate part of q
func filter(db *gorm.DB, q PostQuery) *gorm.DB {
	if q.Text != "" {
		db = db.Where(searchVector+" @@ plainto_tsquery('english', ?)", q.Text)
	}
	if q.CategoryID != nil {
		db = db.Where("EXISTS (SELECT 1 FROM post_categories pc WHERE pc.post_id = posts.id AND pc.category_id = ?)", *q.CategoryID)
	}
	if q.TagID != nil {
		db = db.Where("EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = posts.id AND pt.tag_id = ?)", *q.TagID)
	}
	if q.AuthorID != nil {
		db = db.Where("posts.author_id = ?", *q.AuthorID)
	}
	if len(q.Statuses) == 1 {
		db = db.Where("posts.status = ?", q.Statuses[0])
	} else if len(q.Statuses) > 1 {
		db = db.Where("posts.status IN ?", q.Statuses)
	}
	if q.OnlyPublic {
		db = db.Where("posts.is_public = ?", true)
	}
	if q.From != nil {
		db = db.Where("posts.created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("posts.created_at <= ?", *q.To)
	}
	return db
}

// List returns one page of posts matching q and the total number of matches.
// Outside a transaction the count and the page are fetched concurrently.
func (r *PostRepository) List(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}

	var (
		posts []models.Post
		total int64
	)

	count := func(ctx context.Context) error {
		return filter(r.db.WithContext(ctx).Model(&models.Post{}), q).Count(&total).Error
	}
	page := func(ctx context.Context) error {
		db := filter(withAssociations(r.db.WithContext(ctx)).Model(&models.Post{}), q).
			Order(clause.OrderByColumn{Column: clause.Column{Table: "posts", Name: col}, Desc: q.Desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Table: "posts", Name: "id"}, Desc: q.Desc}).
			Offset(q.Offset)
		if q.Limit > 0 {
			db = db.Limit(q.Limit)
		}
		return db.Find(&posts).Error
	}

	if r.inTx {
		if err := count(ctx); err != nil {
			return nil, 0, fmt.Errorf("count posts: %w", err)
		}
		if err := page(ctx); err != nil {
			return nil, 0, fmt.Errorf("list posts: %w", err)
		}
		return posts, total, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return count(gctx) })
	g.Go(func() error { return page(gctx) })
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	return posts, total, nil
}

// Create inserts the post and its join rows
func (r *PostRepository) Create(ctx context.Context, post *models.Post, categoryIDs, tagIDs []uuid.UUID) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return err
	}
	if err := r.AddCategories(ctx, post.ID, categoryIDs); err != nil {
		return err
	}
	return r.AddTags(ctx, post.ID, tagIDs)
}

// Update writes the mutable columns of the post. Slug, author and counters
// are never touched here.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Model(post).Omit(clause.Associations).
		Select(
			"title", "content", "excerpt", "excerpt_auto", "featured_image",
			"status", "is_public", "read_time", "published_at",
			"seo_meta_title", "seo_meta_description", "seo_keywords", "updated_at",
		).
		Updates(post).Error
}

// Delete removes the post and its join rows
func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("post_id = ?", id).Delete(&models.PostCategory{}).Error; err != nil {
		return err
	}
	if err := db.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	return db.Delete(&models.Post{}, "id = ?", id).Error
}

// AddCategories links the post to the given categories
func (r *PostRepository) AddCategories(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.PostCategory, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.PostCategory{PostID: postID, CategoryID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// RemoveCategories unlinks the post from the given categories
func (r *PostRepository) RemoveCategories(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("post_id = ? AND category_id IN ?", postID, ids).
		Delete(&models.PostCategory{}).Error
}

// AddTags links the post to the given tags
func (r *PostRepository) AddTags(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	rows := make([]models.PostTag, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.PostTag{PostID: postID, TagID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// RemoveTags unlinks the post from the given tags
func (r *PostRepository) RemoveTags(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("post_id = ? AND tag_id IN ?", postID, ids).
		Delete(&models.PostTag{}).Error
}

// AdjustCounter atomically adds delta to a counter column, clamped at zero,
// without touching updated_at. It reports whether the post exists.
func (r *PostRepository) AdjustCounter(ctx context.Context, id uuid.UUID, counter Counter, delta int) (bool, error) {
	switch counter {
	case ViewCount, LikeCount, CommentCount:
	default:
		return false, fmt.Errorf("unknown counter %q", counter)
	}
	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn(string(counter), gorm.Expr(fmt.Sprintf("GREATEST(%s + ?, 0)", counter), delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
