package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/contracts"
	"github.com/seeker014/SilentRoom/internal/infrastructure/messaging"
)

type InboxConsumer struct {
	rabbitmq  *messaging.RabbitMQ
	queueName string
	handler   MessageSentHandler
}

func NewInboxConsumer(rabbitmq *messaging.RabbitMQ, handler MessageSentHandler) *InboxConsumer {
	return &InboxConsumer{
		rabbitmq:  rabbitmq,
		queueName: messaging.InboxQueuePrefix + uuid.NewString(),
		handler:   handler,
	}
}

// Listen declares this instance's queue and consumes until ctx is done.
func (c *InboxConsumer) Listen(ctx context.Context) error {
	if err := c.rabbitmq.DeclareInstanceQueue(c.queueName, []string{contracts.EventMessageSent}); err != nil {
		return err
	}

	return c.rabbitmq.ConsumeMessages(ctx, c.queueName, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			return fmt.Errorf("failed to unmarshal message: %w", err)
		}

		var event domain.MessageSent
		if err := json.Unmarshal(message.Data, &event); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", msg.RoutingKey, err)
		}

		return c.handler(ctx, event)
	})
}
