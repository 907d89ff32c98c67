package main

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
)

type fakeRegistrar struct {
	seen   []service.RegisterInput
	failAt int
}

func (f *fakeRegistrar) Register(ctx context.Context, in service.RegisterInput) (*service.Session, error) {
	if f.failAt > 0 && len(f.seen)+1 == f.failAt {
		return nil, service.Conflict("Username already taken")
	}
	f.seen = append(f.seen, in)
	return &service.Session{User: &models.User{ID: uuid.New(), Username: in.Username, Role: models.RoleUser}}, nil
}

type fakeCreator struct {
	mu      sync.Mutex
	authors map[uuid.UUID]int
	fail    string
}

func (f *fakeCreator) Create(ctx context.Context, actor service.Actor, in service.CreatePostInput) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != "" && strings.Contains(in.Title, f.fail) {
		return nil, errors.New("boom")
	}
	f.authors[actor.ID]++
	return &models.Post{ID: uuid.New(), Title: in.Title, Slug: "s"}, nil
}

func TestSeederRun(t *testing.T) {
	gofakeit.Seed(42)
	accounts := &fakeRegistrar{}
	posts := &fakeCreator{authors: map[uuid.UUID]int{}}
	s := &seeder{accounts: accounts, posts: posts, logger: zap.NewNop()}

	res, err := s.run(context.Background(), 3, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, res.users)
	assert.Equal(t, int64(10), res.posts)
	require.Len(t, posts.authors, 3)
	for _, n := range posts.authors {
		assert.GreaterOrEqual(t, n, 3)
	}

	valid := regexp.MustCompile(`^[A-Za-z0-9]{3,30}$`)
	names := map[string]bool{}
	for _, in := range accounts.seen {
		assert.Regexp(t, valid, in.Username)
		assert.Equal(t, strings.ToLower(in.Username)+"@example.com", in.Email)
		assert.False(t, names[in.Username], "duplicate username %s", in.Username)
		names[in.Username] = true
	}
}

func TestSeederRegistrationFailure(t *testing.T) {
	s := &seeder{
		accounts: &fakeRegistrar{failAt: 2},
		posts:    &fakeCreator{authors: map[uuid.UUID]int{}},
		logger:   zap.NewNop(),
	}

	res, err := s.run(context.Background(), 3, 5)

	require.Error(t, err)
	assert.Equal(t, 1, res.users)
	assert.Equal(t, service.KindConflict, service.KindOf(err))
}

func TestFakePost(t *testing.T) {
	gofakeit.Seed(7)
	for i := 0; i < 50; i++ {
		in := fakePost()
		assert.NotEmpty(t, in.Title)
		assert.LessOrEqual(t, len(in.Title), 200)
		assert.True(t, strings.HasPrefix(in.Content, "## "))
		assert.NotEmpty(t, in.Categories)
		assert.LessOrEqual(t, len(in.Tags), 3)
		if len(in.Categories) == 2 {
			assert.NotEqual(t, in.Categories[0], in.Categories[1])
		}
		assert.Contains(t, []models.PostStatus{models.StatusDraft, models.StatusPublished}, in.Status)
	}
}

func TestAlphanumeric(t *testing.T) {
	assert.Equal(t, "OKeefeJos", alphanumeric("O'Keefe José", 24))
	assert.Equal(t, "abcd", alphanumeric("abcdefgh", 4))
	assert.Equal(t, "user", alphanumeric("!!", 24))
}
