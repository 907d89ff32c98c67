package service

import (
	"context"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/models"
)

const recentPostsOnProfile = 5

// PublicProfile is what anyone may see about a user
type PublicProfile struct {
	User        *models.User
	RecentPosts []models.Post
	PostCount   int64
}

// UserService serves public user profiles
type UserService struct {
	store db.Store
}

// NewUserService creates a user service
func NewUserService(store db.Store) *UserService {
	return &UserService{store: store}
}

// Profile returns the public profile of username with their latest
// published posts
func (s *UserService) Profile(ctx context.Context, username string) (*PublicProfile, error) {
	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, Internal("get user", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}

	posts, total, err := s.store.Posts().List(ctx, db.PostQuery{
		AuthorID: &user.ID,
		Statuses: []models.PostStatus{models.StatusPublished},
		SortBy:   "publishedAt",
		Desc:     true,
		Limit:    recentPostsOnProfile,
	})
	if err != nil {
		return nil, Internal("list user posts", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &PublicProfile{User: user, RecentPosts: posts, PostCount: total}, nil
}
