package events

import (
	"context"
	"errors"

	"github.com/seeker014/SilentRoom/internal/domain"
)

type MessageSentHandler func(ctx context.Context, event domain.MessageSent) error

// LocalPublisher delivers events to in-process handlers. It stands in for
// the broker when a single instance runs without RabbitMQ.
type LocalPublisher struct {
	handlers []MessageSentHandler
}

func NewLocalPublisher(handlers ...MessageSentHandler) *LocalPublisher {
	return &LocalPublisher{
		handlers: handlers,
	}
}

func (p *LocalPublisher) PublishMessageSent(ctx context.Context, event domain.MessageSent) error {
	var errs []error
	for _, handle := range p.handlers {
		if err := handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
