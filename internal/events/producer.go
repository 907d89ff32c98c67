// Package events publishes post lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/models"
	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

// Type names a post lifecycle event
type Type string

const (
	PostCreated   Type = "post.created"
	PostUpdated   Type = "post.updated"
	PostPublished Type = "post.published"
	PostDeleted   Type = "post.deleted"
)

// PostEvent is the payload written to the post events topic
type PostEvent struct {
	EventID   string            `json:"eventId"`
	Type      Type              `json:"type"`
	PostID    uuid.UUID         `json:"postId"`
	AuthorID  uuid.UUID         `json:"authorId"`
	Slug      string            `json:"slug"`
	Status    models.PostStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewPostEvent builds an event for post
func NewPostEvent(t Type, post *models.Post) PostEvent {
	return PostEvent{
		EventID:   uuid.NewString(),
		Type:      t,
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Slug:      post.Slug,
		Status:    post.Status,
		Timestamp: time.Now().UTC(),
	}
}

//go:generate mockgen -source=producer.go -destination=../mocks/publisher_mock.go -package=mocks

// Publisher publishes post events
type Publisher interface {
	PublishPost(ctx context.Context, event PostEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by post id, so events of a
// post stay ordered within a partition. A nil *KafkaPublisher drops events.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a producer for cfg, or returns nil when Kafka is
// disabled
func NewKafkaPublisher(cfg *config.KafkaConfig) *KafkaPublisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logging.GetLogger().Info("Kafka events disabled")
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.Topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logging.WithComponent("events")}
}

// PublishPost writes event to the topic
func (p *KafkaPublisher) PublishPost(ctx context.Context, event PostEvent) error {
	if p == nil {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "events.publish_post", trace.WithAttributes(
		attribute.String("messaging.destination", p.topic),
		attribute.String("event.type", string(event.Type)),
	))
	defer span.End()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	p.logger.Debug("Sending Kafka message",
		zap.String("topic", p.topic),
		zap.String("type", string(event.Type)),
		zap.String("post_id", event.PostID.String()))

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PostID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
