package events

import (
	"context"
	"encoding/json"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/contracts"
	"github.com/seeker014/SilentRoom/internal/infrastructure/messaging"
)

type MessagePublisher struct {
	rabbitmq *messaging.RabbitMQ
}

func NewMessagePublisher(rabbitmq *messaging.RabbitMQ) *MessagePublisher {
	return &MessagePublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *MessagePublisher) PublishMessageSent(ctx context.Context, event domain.MessageSent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, contracts.EventMessageSent, contracts.AmqpMessage{
		OwnerID: event.SenderID,
		Data:    eventJSON,
	})
}
