package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// StatusAll lists posts in every status
	StatusAll = "all"
)

// PostFilter is a post listing request as received from a client. Empty
// fields take their defaults.
type PostFilter struct {
	Query     string
	Category  string // slug
	Tag       string // slug
	Author    string // user id or username
	Status    string // draft, published, archived or all
	DateFrom  string
	DateTo    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Pagination describes one page of a listing
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// NewPagination computes the page metadata for total matches
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// NormalizePage clamps page and limit into their accepted ranges
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// PostPage is one page of posts
type PostPage struct {
	Posts      []models.Post
	Pagination Pagination
}

func emptyPage(page, limit int) *PostPage {
	return &PostPage{Posts: []models.Post{}, Pagination: NewPagination(page, limit, 0)}
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A bare date used as an upper
// bound covers the whole day.
func parseDate(value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// resolvedFilter is the outcome of resolving a PostFilter. When empty is set
// the request can match nothing and the store is not queried.
type resolvedFilter struct {
	query db.PostQuery
	page  int
	limit int
	empty bool
}

// resolveFilter validates f and translates it into a store query. defaultAll
// selects every status when f.Status is empty instead of published only.
func resolveFilter(ctx context.Context, store db.Store, actor Actor, f PostFilter, defaultAll bool) (*resolvedFilter, error) {
	page, limit := NormalizePage(f.Page, f.Limit)
	r := &resolvedFilter{page: page, limit: limit}
	q := &r.query
	q.Offset = (page - 1) * limit
	q.Limit = limit

	q.SortBy = f.SortBy
	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}
	if _, ok := db.SortColumn(q.SortBy); !ok {
		return nil, Validation("sortBy must be one of createdAt, updatedAt, publishedAt, viewCount, likeCount, title")
	}
	switch strings.ToLower(f.SortOrder) {
	case "", "desc":
		q.Desc = true
	case "asc":
		q.Desc = false
	default:
		return nil, Validation("sortOrder must be asc or desc")
	}

	var err error
	if q.From, err = parseDate(f.DateFrom, false); err != nil {
		return nil, Validation("dateFrom must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if q.To, err = parseDate(f.DateTo, true); err != nil {
		return nil, Validation("dateTo must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	q.Text = strings.TrimSpace(f.Query)

	// Status and visibility. Anything beyond published needs a caller, and
	// non-admins only see their own unpublished posts.
	status := strings.ToLower(strings.TrimSpace(f.Status))
	if status == "" && defaultAll {
		status = StatusAll
	}
	restricted := false
	switch {
	case status == "" || status == string(models.StatusPublished):
		q.Statuses = []models.PostStatus{models.StatusPublished}
	case status == StatusAll || models.PostStatus(status).Valid():
		if !actor.Authenticated() {
			return nil, Unauthorized("Authentication required to list unpublished posts")
		}
		if status != StatusAll {
			q.Statuses = []models.PostStatus{models.PostStatus(status)}
		}
		restricted = !actor.IsAdmin()
	default:
		return nil, Validation("status must be one of draft, published, archived, all")
	}

	if author := strings.TrimSpace(f.Author); author != "" {
		if id, err := uuid.Parse(author); err == nil {
			q.AuthorID = &id
		} else {
			user, err := store.Users().GetByUsername(ctx, author)
			if err != nil {
				return nil, Internal("resolve author", err)
			}
			if user == nil {
				r.empty = true
				return r, nil
			}
			q.AuthorID = &user.ID
		}
	}
	if restricted {
		if q.AuthorID != nil && *q.AuthorID != actor.ID {
			r.empty = true
			return r, nil
		}
		id := actor.ID
		q.AuthorID = &id
	}
	// Private posts are listed only to their author and to admins.
	ownPosts := actor.Authenticated() && q.AuthorID != nil && *q.AuthorID == actor.ID
	q.OnlyPublic = !ownPosts && !actor.IsAdmin()

	// Unknown category or tag slugs leave that dimension unfiltered.
	if slug := strings.TrimSpace(f.Category); slug != "" {
		id, ok, err := store.Categories().IDBySlug(ctx, slug)
		if err != nil {
			return nil, Internal("resolve category", err)
		}
		if ok {
			q.CategoryID = &id
		}
	}
	if slug := strings.TrimSpace(f.Tag); slug != "" {
		id, ok, err := store.Tags().IDBySlug(ctx, slug)
		if err != nil {
			return nil, Internal("resolve tag", err)
		}
		if ok {
			q.TagID = &id
		}
	}
	return r, nil
}
