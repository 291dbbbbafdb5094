// Package feed carries the durable change feed: every message insert and
// read receipt is published to a persistent topic exchange so clients that
// missed the websocket broadcast can still be delivered to. Consumers
// deduplicate against the broadcast path by message id.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"hopin-service/internal/models"
	"hopin-service/internal/observability"
)

// Publisher publishes change-feed events for conversations.
type Publisher interface {
	PublishInsert(ctx context.Context, msg models.Message) error
	PublishRead(ctx context.Context, conversationID string, messageIDs []string, readAt time.Time) error
	Close() error
}

// RoutingKey returns the per-conversation topic key.
func RoutingKey(conversationID string) string {
	return "feed.conversations." + conversationID
}

// NewPublisher builds an AMQP publisher or a noop publisher when AMQP is
// disabled.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		log.Printf("change feed disabled, using noop: empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("change feed disabled, using noop: %v", err)
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("change feed disabled, using noop: %v", err)
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Printf("change feed disabled, using noop: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	log.Printf("change feed connected exchange=%s", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) PublishInsert(ctx context.Context, msg models.Message) error {
	return p.publish(ctx, models.ChatEvent{
		Type:           models.EventMessage,
		ConversationID: msg.ConversationID,
		Message:        &msg,
	})
}

func (p *amqpPublisher) PublishRead(ctx context.Context, conversationID string, messageIDs []string, readAt time.Time) error {
	return p.publish(ctx, models.ChatEvent{
		Type:           models.EventRead,
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		ReadAt:         &readAt,
	})
}

func (p *amqpPublisher) publish(ctx context.Context, event models.ChatEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(event.ConversationID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		log.Printf("change feed publish failed: %v", err)
		observability.IncAMQPPublishError()
		return err
	}
	observability.IncMessagePublished("feed", event.Type)
	return nil
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) PublishInsert(ctx context.Context, msg models.Message) error {
	log.Printf("change feed noop publish conversation_id=%s message_id=%s", msg.ConversationID, msg.ID)
	return nil
}

func (noopPublisher) PublishRead(ctx context.Context, conversationID string, messageIDs []string, readAt time.Time) error {
	log.Printf("change feed noop publish conversation_id=%s read_count=%d", conversationID, len(messageIDs))
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher, *noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}
