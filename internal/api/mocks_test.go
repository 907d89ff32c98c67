package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/blogsphere/blogapi/internal/auth"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
)

type mockPosts struct{ mock.Mock }

func (m *mockPosts) page(args mock.Arguments) (*service.PostPage, error) {
	p, _ := args.Get(0).(*service.PostPage)
	return p, args.Error(1)
}

func (m *mockPosts) post(args mock.Arguments) (*models.Post, error) {
	p, _ := args.Get(0).(*models.Post)
	return p, args.Error(1)
}

func (m *mockPosts) List(ctx context.Context, actor service.Actor, f service.PostFilter) (*service.PostPage, error) {
	return m.page(m.Called(actor, f))
}

func (m *mockPosts) MyPosts(ctx context.Context, actor service.Actor, f service.PostFilter) (*service.PostPage, error) {
	return m.page(m.Called(actor, f))
}

func (m *mockPosts) Get(ctx context.Context, actor service.Actor, id uuid.UUID) (*models.Post, error) {
	return m.post(m.Called(actor, id))
}

func (m *mockPosts) GetBySlug(ctx context.Context, actor service.Actor, slug string) (*models.Post, error) {
	return m.post(m.Called(actor, slug))
}

func (m *mockPosts) Create(ctx context.Context, actor service.Actor, in service.CreatePostInput) (*models.Post, error) {
	return m.post(m.Called(actor, in))
}

func (m *mockPosts) Update(ctx context.Context, actor service.Actor, id uuid.UUID, in service.UpdatePostInput) (*models.Post, error) {
	return m.post(m.Called(actor, id, in))
}

func (m *mockPosts) Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	return m.Called(actor, id).Error(0)
}

func (m *mockPosts) Like(ctx context.Context, actor service.Actor, id uuid.UUID) (int64, error) {
	args := m.Called(actor, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPosts) Unlike(ctx context.Context, actor service.Actor, id uuid.UUID) (int64, error) {
	args := m.Called(actor, id)
	return args.Get(0).(int64), args.Error(1)
}

type mockComments struct{ mock.Mock }

func (m *mockComments) List(ctx context.Context, actor service.Actor, postID uuid.UUID, page, limit int) (*service.CommentPage, error) {
	args := m.Called(actor, postID, page, limit)
	p, _ := args.Get(0).(*service.CommentPage)
	return p, args.Error(1)
}

func (m *mockComments) Create(ctx context.Context, actor service.Actor, postID uuid.UUID, in service.CommentInput) (*models.Comment, error) {
	args := m.Called(actor, postID, in)
	c, _ := args.Get(0).(*models.Comment)
	return c, args.Error(1)
}

func (m *mockComments) Delete(ctx context.Context, actor service.Actor, id uuid.UUID) error {
	return m.Called(actor, id).Error(0)
}

type mockTaxonomy struct{ mock.Mock }

func (m *mockTaxonomy) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called()
	c, _ := args.Get(0).([]models.Category)
	return c, args.Error(1)
}

func (m *mockTaxonomy) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	args := m.Called(slug)
	c, _ := args.Get(0).(*models.Category)
	return c, args.Error(1)
}

func (m *mockTaxonomy) UpsertCategory(ctx context.Context, actor service.Actor, in service.CategoryInput) (*models.Category, error) {
	args := m.Called(actor, in)
	c, _ := args.Get(0).(*models.Category)
	return c, args.Error(1)
}

func (m *mockTaxonomy) ListTags(ctx context.Context) ([]models.Tag, error) {
	args := m.Called()
	t, _ := args.Get(0).([]models.Tag)
	return t, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Profile(ctx context.Context, username string) (*service.PublicProfile, error) {
	args := m.Called(username)
	p, _ := args.Get(0).(*service.PublicProfile)
	return p, args.Error(1)
}

// mockAuth accepts goodToken as alice and rejects every other token
type mockAuth struct{ mock.Mock }

const goodToken = "good-token"

var (
	alice       = service.Actor{ID: uuid.MustParse("5b0d8a3e-7c55-4b8e-9a59-0f2f8c1d9a01"), Role: models.RoleUser}
	aliceClaims = &auth.Claims{Role: models.RoleUser}
)

func (m *mockAuth) Authenticate(ctx context.Context, raw string) (service.Actor, *auth.Claims, error) {
	if raw == goodToken {
		return alice, aliceClaims, nil
	}
	return service.Anonymous, nil, service.Unauthorized("Invalid token")
}

func (m *mockAuth) session(args mock.Arguments) (*service.Session, error) {
	s, _ := args.Get(0).(*service.Session)
	return s, args.Error(1)
}

func (m *mockAuth) user(args mock.Arguments) (*models.User, error) {
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockAuth) Register(ctx context.Context, in service.RegisterInput) (*service.Session, error) {
	return m.session(m.Called(in))
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*service.Session, error) {
	return m.session(m.Called(email, password))
}

func (m *mockAuth) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	return m.user(m.Called(token))
}

func (m *mockAuth) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(email).Error(0)
}

func (m *mockAuth) ResetPassword(ctx context.Context, token, password string) error {
	return m.Called(token, password).Error(0)
}

func (m *mockAuth) ChangePassword(ctx context.Context, actor service.Actor, current, next string) error {
	return m.Called(actor, current, next).Error(0)
}

func (m *mockAuth) RefreshToken(ctx context.Context, actor service.Actor) (string, error) {
	args := m.Called(actor)
	return args.String(0), args.Error(1)
}

func (m *mockAuth) Logout(ctx context.Context, claims *auth.Claims) error {
	return m.Called(claims).Error(0)
}

func (m *mockAuth) Profile(ctx context.Context, actor service.Actor) (*models.User, error) {
	return m.user(m.Called(actor))
}

func (m *mockAuth) UpdateProfile(ctx context.Context, actor service.Actor, in service.ProfileInput) (*models.User, error) {
	return m.user(m.Called(actor, in))
}
