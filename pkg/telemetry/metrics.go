package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/pkg/logging"
)

// Metrics holds the business counters exported through the global meter
// provider. A nil *Metrics is valid and records nothing.
type Metrics struct {
	postsCreated    metric.Int64Counter
	postsDeleted    metric.Int64Counter
	commentsCreated metric.Int64Counter
	logins          metric.Int64Counter
}

// NewMetrics registers the counters on the current global meter provider, so
// it must be called after Init.
func NewMetrics() *Metrics {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	var err error
	if m.postsCreated, err = meter.Int64Counter("blog.posts.created",
		metric.WithDescription("Posts created")); err != nil {
		logMetricErr("blog.posts.created", err)
	}
	if m.postsDeleted, err = meter.Int64Counter("blog.posts.deleted",
		metric.WithDescription("Posts deleted")); err != nil {
		logMetricErr("blog.posts.deleted", err)
	}
	if m.commentsCreated, err = meter.Int64Counter("blog.comments.created",
		metric.WithDescription("Comments created")); err != nil {
		logMetricErr("blog.comments.created", err)
	}
	if m.logins, err = meter.Int64Counter("blog.auth.logins",
		metric.WithDescription("Login attempts by outcome")); err != nil {
		logMetricErr("blog.auth.logins", err)
	}
	return m
}

func logMetricErr(name string, err error) {
	logging.WithComponent("telemetry").Warn("Failed to create counter", zap.String("name", name), zap.Error(err))
}

// PostCreated records a created post with its initial status.
func (m *Metrics) PostCreated(ctx context.Context, status string) {
	if m == nil || m.postsCreated == nil {
		return
	}
	m.postsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// PostDeleted records a deleted post.
func (m *Metrics) PostDeleted(ctx context.Context) {
	if m == nil || m.postsDeleted == nil {
		return
	}
	m.postsDeleted.Add(ctx, 1)
}

// CommentCreated records a created comment.
func (m *Metrics) CommentCreated(ctx context.Context) {
	if m == nil || m.commentsCreated == nil {
		return
	}
	m.commentsCreated.Add(ctx, 1)
}

// Login records a login attempt.
func (m *Metrics) Login(ctx context.Context, success bool) {
	if m == nil || m.logins == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
