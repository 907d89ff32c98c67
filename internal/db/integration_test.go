package db

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/config"
)

// openTestDB connects to the database named by BLOG_TEST_DATABASE_URL. The
// schema is migrated and every table truncated.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("BLOG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BLOG_TEST_DATABASE_URL not set")
	}

	d, err := New(&config.DatabaseConfig{URL: url, MaxIdleConns: 2, MaxOpenConns: 10}, "ERROR")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, d.Exec("TRUNCATE comments, post_tags, post_categories, posts, tags, categories, users CASCADE").Error)
	return d
}

func createUser(t *testing.T, store Store, name string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    name,
		Email:       name + "@example.com",
		Password:    "x",
		FirstName:   "Test",
		LastName:    "User",
		Role:        models.RoleUser,
		Preferences: models.DefaultPreferences(),
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func createPost(t *testing.T, store Store, author uuid.UUID, title, body string, status models.PostStatus, cats, tags []uuid.UUID) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:    title,
		Slug:     fmt.Sprintf("%s-%s", title, uuid.NewString()[:8]),
		AuthorID: author,
		IsPublic: true,
	}
	p.SetContent(body)
	p.SetStatus(status, time.Now())
	require.NoError(t, store.Posts().Create(context.Background(), p, cats, tags))
	return p
}

func TestIntegration_EnsureIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()

	first, err := store.Tags().Ensure(ctx, []string{"Go", "Databases", "Go"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := store.Tags().Ensure(ctx, []string{"Databases", "Go"})
	require.NoError(t, err)
	assert.ElementsMatch(t, first, second)

	// Same slug under a different spelling resolves to the existing row.
	third, err := store.Tags().Ensure(ctx, []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, first[0], third[0])

	tags, err := store.Tags().List(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestIntegration_EnsureConcurrent(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]uuid.UUID, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Categories().Ensure(ctx, []string{"Technology"})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestIntegration_PostCountsFollowJoinRows(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()
	author := createUser(t, store, "writer")

	catIDs, err := store.Categories().Ensure(ctx, []string{"Technology"})
	require.NoError(t, err)
	tagA, err := store.Tags().Ensure(ctx, []string{"A"})
	require.NoError(t, err)
	tagB, err := store.Tags().Ensure(ctx, []string{"B"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := store.Transaction(ctx, func(tx Store) error {
			createPost(t, tx, author.ID, fmt.Sprintf("post %d", i), "body text", models.StatusPublished, catIDs, tagA)
			if err := tx.Categories().AdjustPostCounts(ctx, catIDs, 1); err != nil {
				return err
			}
			return tx.Tags().AdjustPostCounts(ctx, tagA, 1)
		})
		require.NoError(t, err)
	}

	cat, err := store.Categories().GetBySlug(ctx, "technology")
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.EqualValues(t, 2, cat.PostCount)

	// Move one post from A to B.
	page, _, err := store.Posts().List(ctx, PostQuery{Limit: 1, SortBy: "createdAt"})
	require.NoError(t, err)
	require.Len(t, page, 1)
	moved := page[0].ID
	require.NoError(t, store.Transaction(ctx, func(tx Store) error {
		if err := tx.Posts().RemoveTags(ctx, moved, tagA); err != nil {
			return err
		}
		if err := tx.Posts().AddTags(ctx, moved, tagB); err != nil {
			return err
		}
		if err := tx.Tags().AdjustPostCounts(ctx, tagA, -1); err != nil {
			return err
		}
		return tx.Tags().AdjustPostCounts(ctx, tagB, 1)
	}))

	tags, err := store.Tags().List(ctx)
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, tg := range tags {
		counts[tg.Name] = tg.PostCount
	}
	assert.Equal(t, map[string]int64{"A": 1, "B": 1}, counts)

	// Recount finds nothing to correct once counts are consistent.
	fixed, err := store.Tags().Recount(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	// Drift is repaired by Recount.
	require.NoError(t, store.Tags().AdjustPostCounts(ctx, tagB, 5))
	fixed, err = store.Tags().Recount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fixed)

	// Decrement never goes below zero.
	require.NoError(t, store.Tags().AdjustPostCounts(ctx, tagB, -10))
	tags, err = store.Tags().List(ctx)
	require.NoError(t, err)
	for _, tg := range tags {
		assert.GreaterOrEqual(t, tg.PostCount, int64(0))
	}
}

func TestIntegration_ListFiltersAndPagination(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()
	author := createUser(t, store, "lister")

	catIDs, err := store.Categories().Ensure(ctx, []string{"Databases"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		createPost(t, store, author.ID, fmt.Sprintf("post %d", i), "plain words", models.StatusPublished, nil, nil)
	}
	createPost(t, store, author.ID, "Postgres indexing", "How a GIN index speeds up full text search", models.StatusPublished, catIDs, nil)
	createPost(t, store, author.ID, "Draft thoughts", "Postgres is great", models.StatusDraft, nil, nil)

	published := []models.PostStatus{models.StatusPublished}

	page, total, err := store.Posts().List(ctx, PostQuery{Statuses: published, SortBy: "createdAt", Desc: true, Offset: 0, Limit: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, page, 4)
	require.NotNil(t, page[0].Author)
	assert.Equal(t, "lister", page[0].Author.Username)

	page, total, err = store.Posts().List(ctx, PostQuery{Statuses: published, SortBy: "createdAt", Desc: true, Offset: 4, Limit: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.Len(t, page, 2)

	page, total, err = store.Posts().List(ctx, PostQuery{Text: "postgres", Statuses: published, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Postgres indexing", page[0].Title)

	page, total, err = store.Posts().List(ctx, PostQuery{CategoryID: &catIDs[0], Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, page, 1)
	require.Len(t, page[0].Categories, 1)
	assert.Equal(t, "Databases", page[0].Categories[0].Name)

	_, total, err = store.Posts().List(ctx, PostQuery{AuthorID: &author.ID, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)

	private := createPost(t, store, author.ID, "Members only", "hidden", models.StatusPublished, nil, nil)
	private.IsPublic = false
	require.NoError(t, store.Posts().Update(ctx, private))

	_, total, err = store.Posts().List(ctx, PostQuery{Statuses: published, OnlyPublic: true, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	_, total, err = store.Posts().List(ctx, PostQuery{Statuses: published, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
}

func TestIntegration_CommentTreeDelete(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()
	author := createUser(t, store, "commenter")
	post := createPost(t, store, author.ID, "thread", "body", models.StatusPublished, nil, nil)

	root := &models.Comment{Content: "root", AuthorID: author.ID, PostID: post.ID, IsApproved: true}
	require.NoError(t, store.Comments().Create(ctx, root))
	reply := &models.Comment{Content: "reply", AuthorID: author.ID, PostID: post.ID, ParentID: &root.ID, IsApproved: true}
	require.NoError(t, store.Comments().Create(ctx, reply))
	nested := &models.Comment{Content: "nested", AuthorID: author.ID, PostID: post.ID, ParentID: &reply.ID, IsApproved: true}
	require.NoError(t, store.Comments().Create(ctx, nested))
	other := &models.Comment{Content: "other", AuthorID: author.ID, PostID: post.ID, IsApproved: true}
	require.NoError(t, store.Comments().Create(ctx, other))

	removed, err := store.Comments().DeleteTree(ctx, root.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	comments, total, err := store.Comments().ListByPost(ctx, post.ID, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, comments, 1)
	assert.Equal(t, "other", comments[0].Content)
}

func TestIntegration_AdjustCounterClamps(t *testing.T) {
	d := openTestDB(t)
	store := d.Store()
	ctx := context.Background()
	author := createUser(t, store, "counter")
	post := createPost(t, store, author.ID, "counted", "body", models.StatusPublished, nil, nil)

	ok, err := store.Posts().AdjustCounter(ctx, post.ID, LikeCount, -1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Posts().AdjustCounter(ctx, post.ID, ViewCount, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Posts().GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.LikeCount)
	assert.EqualValues(t, 1, got.ViewCount)

	ok, err = store.Posts().AdjustCounter(ctx, uuid.New(), ViewCount, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Posts().AdjustCounter(ctx, post.ID, Counter("title"), 1)
	assert.Error(t, err)
}
