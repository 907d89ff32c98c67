package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blogsphere/blogapi/internal/models"
)

// Store is the set of repositories used by the services. Writes that span
// several repositories run inside Transaction, where every repository handed
// to fn shares the same database transaction.
type Store interface {
	Users() Users
	Posts() Posts
	Categories() Categories
	Tags() Tags
	Comments() Comments
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Users provides user persistence
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// Counter names an atomic counter column of posts
type Counter string

const (
	ViewCount    Counter = "view_count"
	LikeCount    Counter = "like_count"
	CommentCount Counter = "comment_count"
)

// PostQuery is the resolved form of a post listing request
type PostQuery struct {
	Text       string
	CategoryID *uuid.UUID
	TagID      *uuid.UUID
	AuthorID   *uuid.UUID
	Statuses   []models.PostStatus // empty means any status
	OnlyPublic bool                // exclude posts marked private
	From       *time.Time
	To         *time.Time
	SortBy     string // createdAt, updatedAt, publishedAt, viewCount, likeCount, title
	Desc       bool
	Offset     int
	Limit      int
}

// Posts provides post persistence, including the join rows to categories
// and tags and the counter columns
type Posts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	Create(ctx context.Context, post *models.Post, categoryIDs, tagIDs []uuid.UUID) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddCategories(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error
	RemoveCategories(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error
	AddTags(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error
	RemoveTags(ctx context.Context, postID uuid.UUID, ids []uuid.UUID) error
	AdjustCounter(ctx context.Context, id uuid.UUID, counter Counter, delta int) (bool, error)
}

// Terms is the behaviour shared by the category and tag registries
type Terms interface {
	// Ensure returns the ids of the named terms, creating missing ones. It is
	// idempotent and safe under concurrent calls: a name that already exists,
	// or whose slug is taken, resolves to the existing row.
	Ensure(ctx context.Context, names []string) ([]uuid.UUID, error)
	IDBySlug(ctx context.Context, slug string) (uuid.UUID, bool, error)
	AdjustPostCounts(ctx context.Context, ids []uuid.UUID, delta int) error
	// Recount recomputes post counts from the join table and returns the
	// number of rows that were corrected.
	Recount(ctx context.Context) (int64, error)
}

// Categories provides category persistence
type Categories interface {
	Terms
	List(ctx context.Context) ([]models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	Upsert(ctx context.Context, category *models.Category) (*models.Category, error)
}

// Tags provides tag persistence
type Tags interface {
	Terms
	List(ctx context.Context) ([]models.Tag, error)
}

// Comments provides comment persistence
type Comments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uuid.UUID, offset, limit int) ([]models.Comment, int64, error)
	Create(ctx context.Context, comment *models.Comment) error
	// DeleteTree removes a comment and all of its replies and returns the
	// number of rows removed.
	DeleteTree(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteByPost(ctx context.Context, postID uuid.UUID) (int64, error)
	// RecountPosts recomputes comment_count on posts and returns the number
	// of posts corrected.
	RecountPosts(ctx context.Context) (int64, error)
}

// Repository provides database access methods
type Repository struct {
	db   *gorm.DB
	inTx bool
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Users returns the user repository
func (r *Repository) Users() Users { return NewUserRepository(r) }

// Posts returns the post repository
func (r *Repository) Posts() Posts { return NewPostRepository(r) }

// Categories returns the category repository
func (r *Repository) Categories() Categories { return NewCategoryRepository(r) }

// Tags returns the tag repository
func (r *Repository) Tags() Tags { return NewTagRepository(r) }

// Comments returns the comment repository
func (r *Repository) Comments() Comments { return NewCommentRepository(r) }

// Transaction runs fn inside a database transaction. Nested calls reuse the
// outer transaction through a savepoint.
func (r *Repository) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, inTx: true})
	})
}

// dedupeIDs drops repeated ids, keeping first occurrences in order
func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
