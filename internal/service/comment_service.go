package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/mail"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

const maxComment = 1000

// CommentInput is a new comment, optionally replying to another one
type CommentInput struct {
	Content  string
	ParentID *uuid.UUID
}

// CommentPage is one page of comments
type CommentPage struct {
	Comments   []models.Comment
	Pagination Pagination
}

// CommentService implements threaded comments on posts
type CommentService struct {
	store   db.Store
	mailer  mail.Mailer
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// NewCommentService creates a comment service. metrics may be nil.
func NewCommentService(store db.Store, mailer mail.Mailer, metrics *telemetry.Metrics) *CommentService {
	return &CommentService{store: store, mailer: mailer, metrics: metrics, logger: logging.WithComponent("comments")}
}

// List returns approved comments of a visible post, oldest first
func (s *CommentService) List(ctx context.Context, actor Actor, postID uuid.UUID, page, limit int) (*CommentPage, error) {
	page, limit = NormalizePage(page, limit)
	if _, err := s.visiblePost(ctx, s.store, actor, postID); err != nil {
		return nil, storeError("get post", err, "")
	}
	comments, total, err := s.store.Comments().ListByPost(ctx, postID, (page-1)*limit, limit)
	if err != nil {
		return nil, Internal("list comments", err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return &CommentPage{Comments: comments, Pagination: NewPagination(page, limit, total)}, nil
}

// Create adds a comment by the caller and bumps the post's comment count.
// The post author is notified by email unless they opted out.
func (s *CommentService) Create(ctx context.Context, actor Actor, postID uuid.UUID, in CommentInput) (*models.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comments.create")
	defer span.End()

	if !actor.Authenticated() {
		return nil, Unauthorized("Authentication required")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, Validation("Comment content is required")
	}
	if utf8.RuneCountInString(in.Content) > maxComment {
		return nil, Validation("Comment must be at most 1000 characters")
	}

	var (
		post    *models.Post
		comment = &models.Comment{
			Content:    in.Content,
			AuthorID:   actor.ID,
			PostID:     postID,
			ParentID:   in.ParentID,
			IsApproved: true,
		}
	)
	err := s.store.Transaction(ctx, func(tx db.Store) error {
		var err error
		post, err = s.visiblePost(ctx, tx, actor, postID)
		if err != nil {
			return err
		}
		if in.ParentID != nil {
			parent, err := tx.Comments().GetByID(ctx, *in.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || parent.PostID != postID {
				return Validation("Parent comment must belong to the same post")
			}
		}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		_, err = tx.Posts().AdjustCounter(ctx, postID, db.CommentCount, 1)
		return err
	})
	if err != nil {
		return nil, storeError("create comment", err, "")
	}
	s.metrics.CommentCreated(ctx)

	commenter, err := s.store.Users().GetByID(ctx, actor.ID)
	if err != nil {
		s.logger.Warn("Loading commenter failed", zap.Error(err))
	}
	comment.Author = commenter
	s.notifyAuthor(ctx, post, commenter)
	return comment, nil
}

func (s *CommentService) notifyAuthor(ctx context.Context, post *models.Post, commenter *models.User) {
	if commenter == nil || post.AuthorID == commenter.ID {
		return
	}
	author := post.Author
	if author == nil || author.Email == "" {
		var err error
		if author, err = s.store.Users().GetByID(ctx, post.AuthorID); err != nil || author == nil {
			return
		}
	}
	if !author.Preferences.EmailNotifications {
		return
	}
	if err := s.mailer.SendCommentNotification(ctx, author.Email, post.Title, commenter.FullName(), post.Slug); err != nil {
		s.logger.Warn("Sending comment notification failed", zap.String("post_id", post.ID.String()), zap.Error(err))
	}
}

// Delete removes a comment and its replies. Allowed for the comment's author,
// admins and moderators.
func (s *CommentService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	ctx, span := telemetry.StartSpan(ctx, "comments.delete")
	defer span.End()

	if !actor.Authenticated() {
		return Unauthorized("Authentication required")
	}
	err := s.store.Transaction(ctx, func(tx db.Store) error {
		comment, err := tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if comment == nil {
			return NotFound("Comment not found")
		}
		if comment.AuthorID != actor.ID && !actor.CanModerate() {
			return Forbidden("Not authorized to delete this comment")
		}
		removed, err := tx.Comments().DeleteTree(ctx, comment.ID)
		if err != nil {
			return err
		}
		_, err = tx.Posts().AdjustCounter(ctx, comment.PostID, db.CommentCount, -int(removed))
		return err
	})
	return storeError("delete comment", err, "")
}

// visiblePost loads a post the caller may see and comment on
func (s *CommentService) visiblePost(ctx context.Context, store db.Store, actor Actor, postID uuid.UUID) (*models.Post, error) {
	post, err := store.Posts().GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, NotFound("Post not found")
	}
	if (post.Status != models.StatusPublished || !post.IsPublic) && !actor.canEdit(post.AuthorID) {
		return nil, NotFound("Post not found")
	}
	return post, nil
}
