package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"hopin-service/internal/models"
)

// Handler receives change-feed events for a subscribed conversation.
type Handler func(ev models.ChatEvent)

// Consumer subscribes to the change feed of a single conversation. Each
// subscriber gets its own durable queue bound to the per-conversation
// routing key, so events published while the client was away are still
// delivered.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewConsumer dials AMQP and prepares a channel on the feed exchange.
func NewConsumer(amqpURL, exchange string) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, exchange: exchange}, nil
}

// Subscribe binds a queue for the conversation and delivers events to the
// handler until the context is cancelled. The queue name is stable per
// client so redeliveries resume where the client left off.
func (c *Consumer) Subscribe(ctx context.Context, clientID, conversationID string, handler Handler) error {
	queueName := fmt.Sprintf("feed.%s.%s", clientID, conversationID)
	queue, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := c.ch.QueueBind(queue.Name, RoutingKey(conversationID), c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := c.ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				var event models.ChatEvent
				if err := json.Unmarshal(delivery.Body, &event); err != nil {
					log.Printf("change feed decode failed: %v", err)
					_ = delivery.Nack(false, false)
					continue
				}
				handler(event)
				_ = delivery.Ack(false)
			}
		}
	}()
	return nil
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
