package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blogsphere/blogapi/internal/app"
	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/internal/service"
	"github.com/blogsphere/blogapi/pkg/logging"
)

const (
	seedConcurrency = 8
	seedPassword    = "password123"
)

var seedCategories = []string{"Technology", "Travel", "Food", "Science", "Culture", "Business"}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users and posts",
	Long: `Register fake users and have them write posts through the same code paths
the API uses, so slugs, excerpts and counters come out consistent.

Every seeded account uses the password "password123".`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Int("users", 5, "number of users to register")
	seedCmd.Flags().Int("posts", 25, "number of posts to create")
	seedCmd.Flags().Int64("seed", 0, "random seed, 0 for a random run")
}

func runSeed(cmd *cobra.Command, args []string) error {
	users, _ := cmd.Flags().GetInt("users")
	posts, _ := cmd.Flags().GetInt("posts")
	seed, _ := cmd.Flags().GetInt64("seed")
	if users < 1 {
		return fmt.Errorf("--users must be at least 1")
	}
	if posts < 0 {
		return fmt.Errorf("--posts must not be negative")
	}
	gofakeit.Seed(seed)

	blog, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer blog.Close()

	s := &seeder{accounts: blog.Auth, posts: blog.Posts, logger: logging.WithComponent("seed")}
	res, err := s.run(cmd.Context(), users, posts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users and %d posts\n", res.users, res.posts)
	return nil
}

type registrar interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
}

type postCreator interface {
	Create(ctx context.Context, actor service.Actor, in service.CreatePostInput) (*models.Post, error)
}

type seeder struct {
	accounts registrar
	posts    postCreator
	logger   *zap.Logger
}

type seedResult struct {
	users int
	posts int64
}

// run registers the users one by one, then writes the posts concurrently.
// A failed post is logged and skipped; a failed registration aborts.
func (s *seeder) run(ctx context.Context, users, posts int) (seedResult, error) {
	authors := make([]service.Actor, 0, users)
	for i := 0; i < users; i++ {
		in := fakeAccount(i)
		sess, err := s.accounts.Register(ctx, in)
		if err != nil {
			return seedResult{users: len(authors)}, fmt.Errorf("register %s: %w", in.Username, err)
		}
		authors = append(authors, service.Actor{ID: sess.User.ID, Role: sess.User.Role})
		s.logger.Info("Seeded user", zap.String("username", sess.User.Username))
	}

	inputs := make([]service.CreatePostInput, posts)
	for i := range inputs {
		inputs[i] = fakePost()
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i, in := range inputs {
		author := authors[i%len(authors)]
		g.Go(func() error {
			post, err := s.posts.Create(gctx, author, in)
			if err != nil {
				s.logger.Warn("Seeding post failed", zap.String("title", in.Title), zap.Error(err))
				return nil
			}
			created.Add(1)
			s.logger.Debug("Seeded post", zap.String("slug", post.Slug))
			return nil
		})
	}
	err := g.Wait()
	return seedResult{users: len(authors), posts: created.Load()}, err
}

// fakeAccount builds a valid registration. The index keeps usernames and
// emails unique within a run.
func fakeAccount(i int) service.RegisterInput {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := alphanumeric(first+last, 24) + fmt.Sprint(i)
	return service.RegisterInput{
		Username:  username,
		Email:     strings.ToLower(username) + "@example.com",
		Password:  seedPassword,
		FirstName: first,
		LastName:  last,
	}
}

func fakePost() service.CreatePostInput {
	status := models.StatusPublished
	if gofakeit.Number(1, 5) == 1 {
		status = models.StatusDraft
	}

	categories := make([]string, 0, 2)
	for n := gofakeit.Number(1, 2); len(categories) < n; {
		c := seedCategories[gofakeit.Number(0, len(seedCategories)-1)]
		if len(categories) == 0 || categories[0] != c {
			categories = append(categories, c)
		}
	}
	tags := make([]string, 0, 3)
	for n := gofakeit.Number(0, 3); len(tags) < n; {
		tags = append(tags, strings.ToLower(gofakeit.Word()))
	}

	paragraphs := make([]string, gofakeit.Number(3, 6))
	for i := range paragraphs {
		paragraphs[i] = gofakeit.Paragraph(1, gofakeit.Number(3, 6), 14, " ")
	}

	return service.CreatePostInput{
		Title:      strings.TrimSuffix(gofakeit.Sentence(gofakeit.Number(4, 9)), "."),
		Content:    "## " + gofakeit.HipsterSentence(4) + "\n\n" + strings.Join(paragraphs, "\n\n"),
		Categories: categories,
		Tags:       tags,
		Status:     status,
	}
}

func alphanumeric(s string, limit int) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == limit {
				break
			}
		}
	}
	if b.Len() < 3 {
		b.WriteString("user")
	}
	return b.String()
}
