package events

import (
	"context"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
)

type ParticipantNotifier interface {
	NotifyParticipant(participantID string, msg *ws.WSMessage) int
}

// InboxNotifier turns MessageSent events into conversations.updated hints
// for both participants so open inbox views can refresh.
type InboxNotifier struct {
	notifier ParticipantNotifier
	logger   logging.Logger
}

func NewInboxNotifier(notifier ParticipantNotifier, logger logging.Logger) *InboxNotifier {
	return &InboxNotifier{
		notifier: notifier,
		logger:   logger,
	}
}

func (n *InboxNotifier) Handle(ctx context.Context, event domain.MessageSent) error {
	for i, participant := range event.Participants {
		hint := ws.NewConversationsUpdated(ws.ConversationsUpdatedPayload{
			ConversationID: event.ConversationID,
			PartnerID:      event.Participants[1-i],
			UpdatedAt:      event.UpdatedAt,
		})
		delivered := n.notifier.NotifyParticipant(participant, hint)

		n.logger.Debug(logging.WebSocket, logging.Events, "inbox hint sent", map[logging.ExtraKey]any{
			logging.ParticipantID:  participant,
			logging.ConversationID: event.ConversationID,
			"Delivered":            delivered,
		})
	}
	return nil
}
