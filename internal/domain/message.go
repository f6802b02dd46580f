package domain

import "time"

type Message struct {
	ID          string    `json:"id"`
	ClientMsgID string    `json:"clientMsgId,omitempty"`
	SenderID    string    `json:"senderId"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewMessage(senderID, body, clientMsgID string) *Message {
	return &Message{
		ClientMsgID: clientMsgID,
		SenderID:    senderID,
		Body:        body,
	}
}

// Validate rejects messages that must never reach the store.
func (m *Message) Validate() error {
	if m == nil || normalizeBody(m.Body) == "" {
		return ErrEmptyBody
	}
	if err := ValidateParticipantID(m.SenderID); err != nil {
		return err
	}
	return nil
}
