package domain

import (
	"context"
	"time"
)

// MessageSent is raised after a message has been durably appended.
type MessageSent struct {
	ConversationID string    `json:"conversationId"`
	Participants   [2]string `json:"participants"`
	MessageID      string    `json:"messageId"`
	ClientMsgID    string    `json:"clientMsgId,omitempty"`
	SenderID       string    `json:"senderId"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewMessageSent(conv *Conversation, msg *Message) MessageSent {
	return MessageSent{
		ConversationID: conv.ID,
		Participants:   conv.Participants,
		MessageID:      msg.ID,
		ClientMsgID:    msg.ClientMsgID,
		SenderID:       msg.SenderID,
		UpdatedAt:      conv.UpdatedAt,
	}
}

type EventPublisher interface {
	PublishMessageSent(ctx context.Context, event MessageSent) error
}
