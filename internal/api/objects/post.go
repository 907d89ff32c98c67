// Package objects shapes models into the JSON objects returned by the API.
package objects

import (
	"time"

	"github.com/google/uuid"

	"github.com/blogsphere/blogapi/internal/models"
)

// SEO is the search metadata of a post
type SEO struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// Post is a post as returned to clients
type Post struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	Author        *Author    `json:"author,omitempty"`
	Categories    []Category `json:"categories"`
	Tags          []Tag      `json:"tags"`
	Status        string     `json:"status"`
	IsPublic      bool       `json:"isPublic"`
	ViewCount     int64      `json:"viewCount"`
	LikeCount     int64      `json:"likeCount"`
	CommentCount  int64      `json:"commentCount"`
	ReadTime      int        `json:"readTime"`
	SEO           SEO        `json:"seo"`
	PublishedAt   *time.Time `json:"publishedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewPost builds the post object
func NewPost(p *models.Post) Post {
	out := Post{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		FeaturedImage: p.FeaturedImage,
		Author:        NewAuthor(p.Author),
		Categories:    make([]Category, 0, len(p.Categories)),
		Tags:          make([]Tag, 0, len(p.Tags)),
		Status:        string(p.Status),
		IsPublic:      p.IsPublic,
		ViewCount:     p.ViewCount,
		LikeCount:     p.LikeCount,
		CommentCount:  p.CommentCount,
		ReadTime:      p.ReadTime,
		SEO: SEO{
			MetaTitle:       p.SEO.MetaTitle,
			MetaDescription: p.SEO.MetaDescription,
			Keywords:        append([]string{}, p.SEO.Keywords...),
		},
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for i := range p.Categories {
		out.Categories = append(out.Categories, NewCategory(&p.Categories[i]))
	}
	for i := range p.Tags {
		out.Tags = append(out.Tags, NewTag(&p.Tags[i]))
	}
	return out
}

// NewPosts builds post objects in order
func NewPosts(posts []models.Post) []Post {
	out := make([]Post, 0, len(posts))
	for i := range posts {
		out = append(out, NewPost(&posts[i]))
	}
	return out
}

// Category is a category as returned to clients
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	PostCount   int64     `json:"postCount"`
}

func NewCategory(c *models.Category) Category {
	return Category{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Color:       c.Color,
		PostCount:   c.PostCount,
	}
}

func NewCategories(categories []models.Category) []Category {
	out := make([]Category, 0, len(categories))
	for i := range categories {
		out = append(out, NewCategory(&categories[i]))
	}
	return out
}

// Tag is a tag as returned to clients
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	PostCount int64     `json:"postCount"`
}

func NewTag(t *models.Tag) Tag {
	return Tag{ID: t.ID, Name: t.Name, Slug: t.Slug, PostCount: t.PostCount}
}

func NewTags(tags []models.Tag) []Tag {
	out := make([]Tag, 0, len(tags))
	for i := range tags {
		out = append(out, NewTag(&tags[i]))
	}
	return out
}

// Comment is a comment as returned to clients
type Comment struct {
	ID         uuid.UUID  `json:"id"`
	Content    string     `json:"content"`
	Author     *Author    `json:"author,omitempty"`
	PostID     uuid.UUID  `json:"post"`
	ParentID   *uuid.UUID `json:"parentComment"`
	IsApproved bool       `json:"isApproved"`
	LikeCount  int64      `json:"likeCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func NewComment(c *models.Comment) Comment {
	return Comment{
		ID:         c.ID,
		Content:    c.Content,
		Author:     NewAuthor(c.Author),
		PostID:     c.PostID,
		ParentID:   c.ParentID,
		IsApproved: c.IsApproved,
		LikeCount:  c.LikeCount,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func NewComments(comments []models.Comment) []Comment {
	out := make([]Comment, 0, len(comments))
	for i := range comments {
		out = append(out, NewComment(&comments[i]))
	}
	return out
}
