package ws

import (
	"encoding/json"
	"time"
)

// WSMessage is the envelope written to clients.
type WSMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// InboundMessage is the envelope read from clients. Data is decoded once the
// type is known.
type InboundMessage struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Payload structs
type MessagePayload struct {
	ID          string    `json:"id,omitempty"`
	ClientMsgID string    `json:"clientMsgId,omitempty"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
}

type JoinPayload struct {
	RoomID string `json:"roomId"`
}

type ConversationsUpdatedPayload struct {
	ConversationID string    `json:"chatId"`
	PartnerID      string    `json:"partnerId"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

func NewMessageReceived(roomID string, payload MessagePayload) *WSMessage {
	return &WSMessage{
		Type:   MessageReceived,
		RoomID: roomID,
		Data:   payload,
	}
}

func NewRoomJoined(roomID string) *WSMessage {
	return &WSMessage{
		Type:   RoomJoined,
		RoomID: roomID,
		Data:   JoinPayload{RoomID: roomID},
	}
}

func NewRoomLeft(roomID string) *WSMessage {
	return &WSMessage{
		Type:   RoomLeft,
		RoomID: roomID,
		Data:   JoinPayload{RoomID: roomID},
	}
}

func NewConversationsUpdated(payload ConversationsUpdatedPayload) *WSMessage {
	return &WSMessage{
		Type: ConversationsUpdated,
		Data: payload,
	}
}

func NewError(roomID, message string) *WSMessage {
	return &WSMessage{
		Type:   ErrorEvent,
		RoomID: roomID,
		Data: ErrorPayload{
			Message: message,
			Retry:   false,
		},
	}
}

func NewAuthError(roomID, message string) *WSMessage {
	return &WSMessage{
		Type:   AuthenticationError,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "AUTH_FAILED",
			Message: message,
		},
	}
}

func NewJoinFailed(roomID, reason string) *WSMessage {
	return &WSMessage{
		Type:   JoinFailed,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "JOIN_FAILED",
			Message: reason,
			Retry:   true,
		},
	}
}

func NewRateLimited(roomID string, retryAfter time.Duration) *WSMessage {
	return &WSMessage{
		Type:   RateLimited,
		RoomID: roomID,
		Data: ErrorPayload{
			Code:    "RATE_LIMITED",
			Message: "too many messages, retry in " + retryAfter.Round(time.Millisecond).String(),
			Retry:   true,
		},
	}
}
