package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/models"
)

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// GetByID retrieves a comment by ID
func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns approved comments of a post, oldest first
func (r *CommentRepository) ListByPost(ctx context.Context, postID uuid.UUID, offset, limit int) ([]models.Comment, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Comment{}).
			Where("post_id = ? AND is_approved = ?", postID, true)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := base().
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "first_name", "last_name", "avatar")
		}).
		Order("created_at ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Author", "Post", "Parent").Create(comment).Error
}

const deleteTreeSQL = `WITH RECURSIVE tree AS (
	SELECT id FROM comments WHERE id = ?
	UNION ALL
	SELECT c.id FROM comments c JOIN tree t ON c.parent_id = t.id
)
DELETE FROM comments WHERE id IN (SELECT id FROM tree)`

// DeleteTree removes a comment and every reply below it
func (r *CommentRepository) DeleteTree(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Exec(deleteTreeSQL, id)
	return res.RowsAffected, res.Error
}

// DeleteByPost removes every comment of a post
func (r *CommentRepository) DeleteByPost(ctx context.Context, postID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{})
	return res.RowsAffected, res.Error
}

const recountCommentsSQL = `UPDATE posts p SET comment_count = s.n
FROM (
	SELECT x.id, COUNT(c.id) AS n
	FROM posts x LEFT JOIN comments c ON c.post_id = x.id
	GROUP BY x.id
) s
WHERE s.id = p.id AND p.comment_count <> s.n`

// RecountPosts recomputes comment_count on every post
func (r *CommentRepository) RecountPosts(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(recountCommentsSQL)
	return res.RowsAffected, res.Error
}
