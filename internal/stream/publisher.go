package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeMessageCreated = "message.created"
	TypeMessageRead    = "message.read"
	TypeMessagesRead   = "messages.read"
	TypeMessageDeleted = "message.deleted"
)

// DomainEvent is a persisted change offered to downstream consumers
// (notifications, analytics). Key is the user whose stream it belongs to.
type DomainEvent struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
	Close() error
}

// NopPublisher drops every event. Used when kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DomainEvent) {}
func (NopPublisher) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer      messageWriter
	topicPrefix string
	logger      *zap.Logger
}

// NewKafkaPublisher returns a publisher whose writes never block the caller.
// Delivery failures surface through the writer's completion callback.
func NewKafkaPublisher(brokers []string, topicPrefix string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		// one partition per key keeps a user's events ordered
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
	}
	k := newKafkaPublisher(writer, topicPrefix, logger)
	writer.Completion = k.completed
	return k
}

// completed reports the outcome of an asynchronous batch
func (k *KafkaPublisher) completed(msgs []kafka.Message, err error) {
	for _, msg := range msgs {
		if err != nil {
			k.logger.Warn("failed to publish domain event",
				zap.String("topic", msg.Topic),
				zap.String("key", string(msg.Key)),
				zap.Error(err),
			)
			continue
		}
		k.logger.Debug("domain event published", zap.String("topic", msg.Topic), zap.String("key", string(msg.Key)))
	}
}

func newKafkaPublisher(writer messageWriter, topicPrefix string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:      writer,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

// Publish hands evt to the writer for <prefix>.<type>. Failures are logged;
// the user operation that produced the event has already committed.
func (k *KafkaPublisher) Publish(ctx context.Context, evt DomainEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		k.logger.Error("failed to encode domain event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Topic: k.Topic(evt.Type),
		Key:   []byte(evt.Key),
		Value: data,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Warn("failed to publish domain event",
			zap.String("topic", msg.Topic),
			zap.String("key", evt.Key),
			zap.Error(err),
		)
	}
}

func (k *KafkaPublisher) Topic(eventType string) string {
	if k.topicPrefix == "" {
		return eventType
	}
	return k.topicPrefix + "." + eventType
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
