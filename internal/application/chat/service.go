package chat

import (
	"context"
	"errors"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/contracts"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Recorder receives persistence and event outcomes.
type Recorder interface {
	MessageStored(err error)
	EventPublished(eventType string, err error)
}

type nopRecorder struct{}

func (nopRecorder) MessageStored(error)          {}
func (nopRecorder) EventPublished(string, error) {}

type SendResult struct {
	ConversationID string         `json:"conversationId"`
	Message        domain.Message `json:"message"`
}

type ChatService interface {
	// SendMessage durably appends a message from sender to partner, creating
	// their conversation on first contact.
	SendMessage(ctx context.Context, senderID, partnerID, body, clientMsgID string) (*SendResult, error)
	// History returns the messages between participantID and partnerID in
	// append order. It is empty when they never talked.
	History(ctx context.Context, participantID, partnerID string) ([]domain.Message, error)
}

type chatService struct {
	repository domain.ConversationRepository
	publisher  domain.EventPublisher
	recorder   Recorder
	logger     logging.Logger
	tracer     trace.Tracer
}

func NewChatService(
	repository domain.ConversationRepository,
	publisher domain.EventPublisher,
	recorder Recorder,
	logger logging.Logger,
) ChatService {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &chatService{
		repository: repository,
		publisher:  publisher,
		recorder:   recorder,
		logger:     logger,
		tracer:     tracing.GetTracer("silentroom/chat"),
	}
}

func (s *chatService) SendMessage(ctx context.Context, senderID, partnerID, body, clientMsgID string) (*SendResult, error) {
	ctx, span := s.tracer.Start(ctx, "chat.SendMessage", trace.WithAttributes(
		attribute.String("chat.sender_id", senderID),
		attribute.String("chat.partner_id", partnerID),
	))
	defer span.End()

	if err := domain.ValidatePair(senderID, partnerID); err != nil {
		return nil, err
	}
	msg := domain.NewMessage(senderID, body, clientMsgID)
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	conv, err := s.repository.FindOrCreate(ctx, senderID, partnerID)
	if err != nil {
		return nil, s.failed(span, "find or create conversation failed", err, senderID, partnerID)
	}

	conv, err = s.repository.Append(ctx, conv.ID, msg)
	s.recorder.MessageStored(err)
	if err != nil {
		return nil, s.failed(span, "append message failed", err, senderID, partnerID)
	}
	span.SetAttributes(attribute.String("chat.conversation_id", conv.ID))

	// Inbox hints are advisory; the message is already durable.
	event := domain.NewMessageSent(conv, msg)
	err = s.publisher.PublishMessageSent(ctx, event)
	s.recorder.EventPublished(contracts.EventMessageSent, err)
	if err != nil {
		s.logger.Warn(logging.RabbitMQ, logging.Events, "failed to publish message.sent", map[logging.ExtraKey]any{
			logging.ConversationID: conv.ID,
			logging.ErrorMessage:   err.Error(),
		})
	}

	return &SendResult{
		ConversationID: conv.ID,
		Message:        *msg,
	}, nil
}

func (s *chatService) History(ctx context.Context, participantID, partnerID string) ([]domain.Message, error) {
	ctx, span := s.tracer.Start(ctx, "chat.History")
	defer span.End()

	if err := domain.ValidatePair(participantID, partnerID); err != nil {
		return nil, err
	}

	msgs, err := s.repository.ListMessages(ctx, participantID, partnerID)
	if err != nil {
		return nil, s.failed(span, "list messages failed", err, participantID, partnerID)
	}
	return msgs, nil
}

func (s *chatService) failed(span trace.Span, msg string, err error, participantID, partnerID string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)

	if !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error(logging.General, logging.Persistence, msg, map[logging.ExtraKey]any{
			logging.ParticipantID: participantID,
			logging.PartnerID:     partnerID,
			logging.ErrorMessage:  err.Error(),
		})
	}
	return err
}
