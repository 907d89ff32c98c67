package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/content"
)

// DefaultCategoryColor is assigned to categories created without a color
const DefaultCategoryColor = "#6366f1"

// Category groups posts by topic
type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	Name        string    `gorm:"type:varchar(50);not null;uniqueIndex:categories_name_ux;column:name"`
	Slug        string    `gorm:"type:varchar(64);not null;uniqueIndex:categories_slug_ux;column:slug"`
	Description string    `gorm:"type:varchar(200);not null;default:'';column:description"`
	Color       string    `gorm:"type:varchar(7);not null;default:'#6366f1';column:color"`
	PostCount   int64     `gorm:"not null;default:0;check:categories_post_count_ck,post_count >= 0;column:post_count"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`
	UpdatedAt   time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// BeforeCreate assigns the primary key and derives the slug
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Slug == "" {
		c.Slug = content.TermSlug(c.Name)
	}
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	return nil
}

// Tag is a free-form label on posts
type Tag struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;column:id"`
	Name      string    `gorm:"type:varchar(30);not null;uniqueIndex:tags_name_ux;column:name"`
	Slug      string    `gorm:"type:varchar(40);not null;uniqueIndex:tags_slug_ux;column:slug"`
	PostCount int64     `gorm:"not null;default:0;check:tags_post_count_ck,post_count >= 0;column:post_count"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "tags"
}

// BeforeCreate assigns the primary key and derives the slug
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Slug == "" {
		t.Slug = content.TermSlug(t.Name)
	}
	return nil
}

// PostCategory is a row of the post/category join table
type PostCategory struct {
	PostID     uuid.UUID `gorm:"type:uuid;primaryKey;column:post_id"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey;index;column:category_id"`
}

// TableName specifies the table name for PostCategory
func (PostCategory) TableName() string {
	return "post_categories"
}

// PostTag is a row of the post/tag join table
type PostTag struct {
	PostID uuid.UUID `gorm:"type:uuid;primaryKey;column:post_id"`
	TagID  uuid.UUID `gorm:"type:uuid;primaryKey;index;column:tag_id"`
}

// TableName specifies the table name for PostTag
func (PostTag) TableName() string {
	return "post_tags"
}
