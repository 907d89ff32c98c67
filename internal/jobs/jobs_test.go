package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/pkg/config"
)

// stubStore implements the parts of db.Store the jobs touch. Calling any
// other method panics on the nil embedded interface.
type stubStore struct {
	db.Store
	categories stubTerms
	tags       stubTerms
	comments   stubComments
	users      stubUsers
}

func (s *stubStore) Categories() db.Categories { return &stubCategories{stubTerms: &s.categories} }
func (s *stubStore) Tags() db.Tags             { return &stubTags{stubTerms: &s.tags} }
func (s *stubStore) Comments() db.Comments     { return &s.comments }
func (s *stubStore) Users() db.Users           { return &s.users }

type stubTerms struct {
	fixed int64
	err   error
	calls int
}

func (t *stubTerms) Recount(context.Context) (int64, error) {
	t.calls++
	return t.fixed, t.err
}

type stubCategories struct {
	db.Categories
	*stubTerms
}

func (c *stubCategories) Recount(ctx context.Context) (int64, error) { return c.stubTerms.Recount(ctx) }

type stubTags struct {
	db.Tags
	*stubTerms
}

func (c *stubTags) Recount(ctx context.Context) (int64, error) { return c.stubTerms.Recount(ctx) }

type stubComments struct {
	db.Comments
	fixed int64
}

func (c *stubComments) RecountPosts(context.Context) (int64, error) { return c.fixed, nil }

type stubUsers struct {
	db.Users
	purgedAt time.Time
}

func (u *stubUsers) PurgeExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	u.purgedAt = now
	return 2, nil
}

func TestRecount(t *testing.T) {
	store := &stubStore{}
	store.categories.fixed = 1
	store.tags.fixed = 3
	store.comments.fixed = 4

	res, err := NewMaintenance(store).Recount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RecountResult{Categories: 1, Tags: 3, Posts: 4}, res)
	assert.Equal(t, int64(8), res.Total())
	assert.Equal(t, 1, store.categories.calls)
	assert.Equal(t, 1, store.tags.calls)
}

func TestRecountError(t *testing.T) {
	store := &stubStore{}
	store.tags.err = errors.New("connection reset")

	_, err := NewMaintenance(store).Recount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recount tags")
}

func TestPurgeTokens(t *testing.T) {
	store := &stubStore{}
	m := NewMaintenance(store)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	n, err := m.PurgeTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, at, store.users.purgedAt)
}

func TestNewScheduler(t *testing.T) {
	m := NewMaintenance(&stubStore{})

	s, err := NewScheduler(&config.JobsConfig{RecountSpec: "@every 1h", TokenPurgeSpec: "*/30 * * * *"}, m)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s, err = NewScheduler(&config.JobsConfig{RecountSpec: "@hourly"}, m)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries(), "an empty spec disables the job")

	_, err = NewScheduler(&config.JobsConfig{RecountSpec: "every tuesday"}, m)
	assert.Error(t, err)
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	s, err := NewScheduler(&config.JobsConfig{RecountSpec: "@every 1h"}, NewMaintenance(&stubStore{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestMaintenanceSpans(t *testing.T) {
	rec := recordSpans(t)
	m := NewMaintenance(&stubStore{})

	_, err := m.Recount(context.Background())
	require.NoError(t, err)
	_, err = m.PurgeTokens(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"jobs.recount", "jobs.purge_tokens"}, spanNames(rec))
}

func TestScheduledRunRecordsFailure(t *testing.T) {
	rec := recordSpans(t)
	store := &stubStore{}
	store.tags.err = errors.New("connection reset")

	s, err := NewScheduler(&config.JobsConfig{RecountSpec: "@every 1h"}, NewMaintenance(store))
	require.NoError(t, err)
	s.cron.Entries()[0].Job.Run()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	run := ended[1]
	assert.Equal(t, "jobs.run", run.Name())
	assert.Equal(t, codes.Error, run.Status().Code)
	assert.Equal(t, run.SpanContext().TraceID(), ended[0].SpanContext().TraceID(), "job body runs under the scheduler span")
}
