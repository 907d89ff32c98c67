package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/content"
)

// PostStatus is the publication state of a post
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	StatusArchived  PostStatus = "archived"
)

// Valid reports whether s is a known status
func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// SEO holds search engine metadata of a post
type SEO struct {
	MetaTitle       string         `gorm:"type:varchar(60);not null;default:'';column:meta_title"`
	MetaDescription string         `gorm:"type:varchar(160);not null;default:'';column:meta_description"`
	Keywords        pq.StringArray `gorm:"type:text[];column:keywords"`
}

// Post represents a blog post
type Post struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	Title         string     `gorm:"type:varchar(200);not null;column:title"`
	Slug          string     `gorm:"type:varchar(255);not null;uniqueIndex:posts_slug_ux;column:slug"`
	Content       string     `gorm:"type:text;not null;column:content"`
	Excerpt       string     `gorm:"type:varchar(500);not null;default:'';column:excerpt"`
	ExcerptAuto   bool       `gorm:"not null;default:false;column:excerpt_auto"`
	FeaturedImage string     `gorm:"type:varchar(1024);not null;default:'';column:featured_image"`
	AuthorID      uuid.UUID  `gorm:"type:uuid;not null;index;column:author_id"`
	Status        PostStatus `gorm:"type:varchar(16);not null;default:'draft';index;column:status"`
	IsPublic      bool       `gorm:"not null;column:is_public"`
	ViewCount     int64      `gorm:"not null;default:0;index;column:view_count"`
	LikeCount     int64      `gorm:"not null;default:0;index;column:like_count"`
	CommentCount  int64      `gorm:"not null;default:0;column:comment_count"`
	ReadTime      int        `gorm:"not null;default:1;column:read_time"`
	SEO           SEO        `gorm:"embedded;embeddedPrefix:seo_"`
	PublishedAt   *time.Time `gorm:"index;column:published_at"`
	CreatedAt     time.Time  `gorm:"not null;index;column:created_at"`
	UpdatedAt     time.Time  `gorm:"not null;column:updated_at"`

	// Relationships
	Author     *User      `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
	Categories []Category `gorm:"many2many:post_categories;constraint:OnDelete:CASCADE"`
	Tags       []Tag      `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns the primary key
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SetContent replaces the body and recomputes read time, and the excerpt when
// it was derived rather than supplied.
func (p *Post) SetContent(body string) {
	p.Content = body
	p.ReadTime = content.ReadTime(body)
	if p.ExcerptAuto || p.Excerpt == "" {
		p.Excerpt = content.Excerpt(body)
		p.ExcerptAuto = true
	}
}

// SetExcerpt stores a supplied excerpt. An empty value falls back to the
// derived one.
func (p *Post) SetExcerpt(excerpt string) {
	excerpt = content.ClampExcerpt(excerpt)
	if excerpt == "" {
		p.Excerpt = content.Excerpt(p.Content)
		p.ExcerptAuto = true
		return
	}
	p.Excerpt = excerpt
	p.ExcerptAuto = false
}

// SetStatus changes the status. PublishedAt is set the first time the post
// becomes published and never changes afterwards.
func (p *Post) SetStatus(status PostStatus, now time.Time) {
	p.Status = status
	if status == StatusPublished && p.PublishedAt == nil {
		at := now.UTC()
		p.PublishedAt = &at
	}
}

// CategoryIDs returns the ids of the loaded categories
func (p *Post) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Categories))
	for _, c := range p.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// TagIDs returns the ids of the loaded tags
func (p *Post) TagIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

// IsOwnedBy reports whether userID authored the post
func (p *Post) IsOwnedBy(userID uuid.UUID) bool {
	return p.AuthorID == userID
}
