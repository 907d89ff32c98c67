package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/content"
	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/events"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

const (
	maxTitle           = 200
	maxMetaTitle       = 60
	maxMetaDescription = 160
	slugAttempts       = 5
)

// SEOInput carries search metadata of a post
type SEOInput struct {
	MetaTitle       string
	MetaDescription string
	Keywords        []string
}

// CreatePostInput is the data of a new post
type CreatePostInput struct {
	Title         string
	Content       string
	Excerpt       string
	FeaturedImage string
	Categories    []string
	Tags          []string
	Status        models.PostStatus // draft when empty
	IsPublic      *bool             // true when nil
	SEO           *SEOInput
}

// UpdatePostInput lists the fields to change. Nil fields are left alone; a
// non-nil empty Categories or Tags clears the set.
type UpdatePostInput struct {
	Title         *string
	Content       *string
	Excerpt       *string
	FeaturedImage *string
	Categories    *[]string
	Tags          *[]string
	Status        *models.PostStatus
	IsPublic      *bool
	SEO           *SEOInput
}

// PostService implements post listing and the post write paths
type PostService struct {
	store     db.Store
	cache     Cache
	publisher events.Publisher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPostService creates a post service. cache, publisher and metrics may be
// nil.
func NewPostService(store db.Store, cache Cache, publisher events.Publisher, metrics *telemetry.Metrics) *PostService {
	return &PostService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logging.WithComponent("posts"),
		now:       time.Now,
	}
}

// List returns one page of posts matching f
func (s *PostService) List(ctx context.Context, actor Actor, f PostFilter) (*PostPage, error) {
	return s.list(ctx, actor, f, false)
}

// MyPosts lists the caller's own posts, every status unless f.Status is set
func (s *PostService) MyPosts(ctx context.Context, actor Actor, f PostFilter) (*PostPage, error) {
	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	f.Author = actor.ID.String()
	return s.list(ctx, actor, f, true)
}

func (s *PostService) list(ctx context.Context, actor Actor, f PostFilter, defaultAll bool) (*PostPage, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.list")
	defer span.End()

	r, err := resolveFilter(ctx, s.store, actor, f, defaultAll)
	if err != nil {
		return nil, err
	}
	if r.empty {
		return emptyPage(r.page, r.limit), nil
	}
	posts, total, err := s.store.Posts().List(ctx, r.query)
	if err != nil {
		return nil, Internal("list posts", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &PostPage{Posts: posts, Pagination: NewPagination(r.page, r.limit, total)}, nil
}

// Get returns a post by id and counts the view
func (s *PostService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Post, error) {
	post, err := s.store.Posts().GetByID(ctx, id)
	return s.view(ctx, actor, post, err)
}

// GetBySlug returns a post by slug and counts the view
func (s *PostService) GetBySlug(ctx context.Context, actor Actor, slug string) (*models.Post, error) {
	post, err := s.store.Posts().GetBySlug(ctx, slug)
	return s.view(ctx, actor, post, err)
}

// view hides unpublished and private posts from everyone but their author
// and admins, then increments the view counter.
func (s *PostService) view(ctx context.Context, actor Actor, post *models.Post, err error) (*models.Post, error) {
	if err != nil {
		return nil, Internal("get post", err)
	}
	if post == nil {
		return nil, NotFound("Post not found")
	}
	if (post.Status != models.StatusPublished || !post.IsPublic) && !actor.canEdit(post.AuthorID) {
		return nil, NotFound("Post not found")
	}
	ok, err := s.store.Posts().AdjustCounter(ctx, post.ID, db.ViewCount, 1)
	if err != nil {
		return nil, Internal("count view", err)
	}
	if ok {
		post.ViewCount++
	}
	return post, nil
}

// Create stores a new post by the caller. Categories and tags are created on
// first use and their post counts incremented in the same transaction.
func (s *PostService) Create(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.create")
	defer span.End()

	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validatePostFields(&in.Title, &in.Content, in.SEO); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = models.StatusDraft
	}
	if in.Status != models.StatusDraft && in.Status != models.StatusPublished {
		return nil, Validation("status must be draft or published")
	}
	if err := validateTermNames(in.Categories, in.Tags); err != nil {
		return nil, err
	}

	now := s.now()
	post := &models.Post{
		Title:         in.Title,
		AuthorID:      actor.ID,
		FeaturedImage: strings.TrimSpace(in.FeaturedImage),
		IsPublic:      in.IsPublic == nil || *in.IsPublic,
	}
	post.SetContent(in.Content)
	if in.Excerpt != "" {
		post.SetExcerpt(in.Excerpt)
	}
	post.SetStatus(in.Status, now)
	applySEO(post, in.SEO)

	err := s.store.Transaction(ctx, func(tx db.Store) error {
		slug, err := uniqueSlug(ctx, tx.Posts(), post.Title, now)
		if err != nil {
			return err
		}
		post.Slug = slug

		categoryIDs, err := tx.Categories().Ensure(ctx, in.Categories)
		if err != nil {
			return err
		}
		tagIDs, err := tx.Tags().Ensure(ctx, in.Tags)
		if err != nil {
			return err
		}
		if err := tx.Posts().Create(ctx, post, categoryIDs, tagIDs); err != nil {
			return err
		}
		if err := tx.Categories().AdjustPostCounts(ctx, categoryIDs, 1); err != nil {
			return err
		}
		return tx.Tags().AdjustPostCounts(ctx, tagIDs, 1)
	})
	if err != nil {
		return nil, storeError("create post", err, "A post with this slug already exists")
	}

	created, err := s.store.Posts().GetByID(ctx, post.ID)
	if err != nil || created == nil {
		s.logger.Warn("Reload after create failed", zap.String("post_id", post.ID.String()), zap.Error(err))
		created = post
	}

	s.afterWrite(ctx, created, events.PostCreated)
	if created.Status == models.StatusPublished {
		s.publish(ctx, created, events.PostPublished)
	}
	s.metrics.PostCreated(ctx, string(created.Status))
	return created, nil
}

// Update changes a post. Only its author or an admin may do so. Changed
// category and tag sets adjust post counts by their symmetric difference.
func (s *PostService) Update(ctx context.Context, actor Actor, id uuid.UUID, in UpdatePostInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.update")
	defer span.End()

	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := validatePostFields(in.Title, in.Content, in.SEO); err != nil {
		return nil, err
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, Validation("status must be one of draft, published, archived")
	}
	var cats, tags []string
	if in.Categories != nil {
		cats = *in.Categories
	}
	if in.Tags != nil {
		tags = *in.Tags
	}
	if err := validateTermNames(cats, tags); err != nil {
		return nil, err
	}

	var (
		post         *models.Post
		firstPublish bool
		now          = s.now()
	)
	err := s.store.Transaction(ctx, func(tx db.Store) error {
		var err error
		post, err = tx.Posts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if post == nil {
			return NotFound("Post not found")
		}
		if !actor.canEdit(post.AuthorID) {
			return Forbidden("Not authorized to update this post")
		}

		if in.Title != nil {
			post.Title = *in.Title
		}
		if in.Content != nil {
			post.SetContent(*in.Content)
		}
		if in.Excerpt != nil {
			post.SetExcerpt(*in.Excerpt)
		}
		if in.FeaturedImage != nil {
			post.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
		}
		if in.IsPublic != nil {
			post.IsPublic = *in.IsPublic
		}
		if in.Status != nil {
			firstPublish = post.PublishedAt == nil && *in.Status == models.StatusPublished
			post.SetStatus(*in.Status, now)
		}
		applySEO(post, in.SEO)

		if in.Categories != nil {
			if err := s.replaceTerms(ctx, tx.Categories(), post.ID, post.CategoryIDs(), cats,
				tx.Posts().AddCategories, tx.Posts().RemoveCategories); err != nil {
				return err
			}
		}
		if in.Tags != nil {
			if err := s.replaceTerms(ctx, tx.Tags(), post.ID, post.TagIDs(), tags,
				tx.Posts().AddTags, tx.Posts().RemoveTags); err != nil {
				return err
			}
		}

		post.UpdatedAt = now.UTC()
		return tx.Posts().Update(ctx, post)
	})
	if err != nil {
		return nil, storeError("update post", err, "")
	}

	updated, err := s.store.Posts().GetByID(ctx, id)
	if err != nil || updated == nil {
		s.logger.Warn("Reload after update failed", zap.String("post_id", id.String()), zap.Error(err))
		updated = post
	}

	s.afterWrite(ctx, updated, events.PostUpdated)
	if firstPublish {
		s.publish(ctx, updated, events.PostPublished)
	}
	return updated, nil
}

type linkFunc func(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error

// replaceTerms moves a post from its current term set to names, touching
// only the terms that were added or removed.
func (s *PostService) replaceTerms(ctx context.Context, terms db.Terms, postID uuid.UUID, current []uuid.UUID, names []string, add, remove linkFunc) error {
	next, err := terms.Ensure(ctx, names)
	if err != nil {
		return err
	}
	added, removed := diffIDs(current, next)
	if err := remove(ctx, postID, removed); err != nil {
		return err
	}
	if err := add(ctx, postID, added); err != nil {
		return err
	}
	if err := terms.AdjustPostCounts(ctx, removed, -1); err != nil {
		return err
	}
	return terms.AdjustPostCounts(ctx, added, 1)
}

// Delete removes a post, its comments and its category and tag links. Only
// its author or an admin may do so.
func (s *PostService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "posts.delete")
	defer span.End()

	if !actor.Authenticated() {
		return Unauthorized("Authentication required")
	}
	var post *models.Post
	err := s.store.Transaction(ctx, func(tx db.Store) error {
		var err error
		post, err = tx.Posts().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if post == nil {
			return NotFound("Post not found")
		}
		if !actor.canEdit(post.AuthorID) {
			return Forbidden("Not authorized to delete this post")
		}
		if err := tx.Categories().AdjustPostCounts(ctx, post.CategoryIDs(), -1); err != nil {
			return err
		}
		if err := tx.Tags().AdjustPostCounts(ctx, post.TagIDs(), -1); err != nil {
			return err
		}
		if _, err := tx.Comments().DeleteByPost(ctx, post.ID); err != nil {
			return err
		}
		return tx.Posts().Delete(ctx, post.ID)
	})
	if err != nil {
		return storeError("delete post", err, "")
	}

	s.afterWrite(ctx, post, events.PostDeleted)
	s.metrics.PostDeleted(ctx)
	return nil
}

// Like increments the like counter of a post. There is no per-user record,
// so repeated likes by one user all count.
func (s *PostService) Like(ctx context.Context, actor Actor, id uuid.UUID) (int64, error) {
	return s.adjustLikes(ctx, actor, id, 1)
}

// Unlike decrements the like counter of a post, never below zero
func (s *PostService) Unlike(ctx context.Context, actor Actor, id uuid.UUID) (int64, error) {
	return s.adjustLikes(ctx, actor, id, -1)
}

func (s *PostService) adjustLikes(ctx context.Context, actor Actor, id uuid.UUID, delta int) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.adjust_likes")
	defer span.End()

	if !actor.Authenticated() {
		return 0, Unauthorized("Authentication required")
	}
	ok, err := s.store.Posts().AdjustCounter(ctx, id, db.LikeCount, delta)
	if err != nil {
		return 0, Internal("adjust likes", err)
	}
	if !ok {
		return 0, NotFound("Post not found")
	}
	post, err := s.store.Posts().GetByID(ctx, id)
	if err != nil {
		return 0, Internal("reload post", err)
	}
	if post == nil {
		return 0, NotFound("Post not found")
	}
	return post.LikeCount, nil
}

func (s *PostService) afterWrite(ctx context.Context, post *models.Post, t events.Type) {
	invalidateTaxonomy(ctx, s.cache, s.logger)
	s.publish(ctx, post, t)
}

func (s *PostService) publish(ctx context.Context, post *models.Post, t events.Type) {
	if s.publisher == nil || post == nil {
		return
	}
	if err := s.publisher.PublishPost(ctx, events.NewPostEvent(t, post)); err != nil {
		s.logger.Warn("Publishing post event failed",
			zap.String("type", string(t)),
			zap.String("post_id", post.ID.String()),
			zap.Error(err))
	}
}

// uniqueSlug derives the slug from title and now, moving the timestamp
// forward on collision. The unique index still guards concurrent writers.
func uniqueSlug(ctx context.Context, posts db.Posts, title string, now time.Time) (string, error) {
	at := now
	for i := 0; i < slugAttempts; i++ {
		slug := content.PostSlug(title, at)
		exists, err := posts.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		at = at.Add(time.Millisecond)
	}
	return "", Conflict("Could not allocate a unique slug, try again")
}

func validatePostFields(title, body *string, seo *SEOInput) error {
	if title != nil {
		if *title == "" {
			return Validation("Title is required")
		}
		if utf8.RuneCountInString(*title) > maxTitle {
			return Validation("Title must be at most 200 characters")
		}
	}
	if body != nil && strings.TrimSpace(*body) == "" {
		return Validation("Content is required")
	}
	if seo != nil {
		if utf8.RuneCountInString(seo.MetaTitle) > maxMetaTitle {
			return Validation("SEO meta title must be at most 60 characters")
		}
		if utf8.RuneCountInString(seo.MetaDescription) > maxMetaDescription {
			return Validation("SEO meta description must be at most 160 characters")
		}
	}
	return nil
}

func applySEO(post *models.Post, seo *SEOInput) {
	if seo == nil {
		return
	}
	post.SEO.MetaTitle = seo.MetaTitle
	post.SEO.MetaDescription = seo.MetaDescription
	post.SEO.Keywords = append([]string(nil), seo.Keywords...)
}

// diffIDs returns the ids only in next and the ids only in current
func diffIDs(current, next []uuid.UUID) (added, removed []uuid.UUID) {
	in := func(set []uuid.UUID) map[uuid.UUID]struct{} {
		m := make(map[uuid.UUID]struct{}, len(set))
		for _, id := range set {
			m[id] = struct{}{}
		}
		return m
	}
	cur, nxt := in(current), in(next)
	for _, id := range next {
		if _, ok := cur[id]; !ok {
			added = append(added, id)
			cur[id] = struct{}{}
		}
	}
	for _, id := range current {
		if _, ok := nxt[id]; !ok {
			removed = append(removed, id)
			nxt[id] = struct{}{}
		}
	}
	return added, removed
}
