package domain

import (
	"context"
	"strings"
	"time"
)

// NoMessagesYet is shown as the last message of a conversation that has none.
const NoMessagesYet = "No messages yet"

type Conversation struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConversationSummary is derived for inbox listings and never stored.
type ConversationSummary struct {
	ConversationID     string    `json:"chatId"`
	PartnerID          string    `json:"partnerId"`
	PartnerDisplayName string    `json:"partnerNickname"`
	LastMessageText    string    `json:"lastMessage"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ConversationRepository is the durable store. Implementations must serialize
// appends per conversation and must return the same conversation to
// concurrent FindOrCreate calls for one pair.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, a, b string) (*Conversation, error)
	Append(ctx context.Context, conversationID string, message *Message) (*Conversation, error)
	ListMessages(ctx context.Context, a, b string) ([]Message, error)
	ListByParticipant(ctx context.Context, participantID string) ([]Conversation, error)
}

// IdentityResolver maps a participant to a display name. It returns an error
// wrapping ErrNotFound for unknown participants.
type IdentityResolver interface {
	ResolveDisplayName(ctx context.Context, participantID string) (string, error)
}

// SortedPair returns a and b in canonical order.
func SortedPair(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// PairKey is the storage key of the conversation between a and b.
func PairKey(a, b string) string {
	return RoomID(a, b)
}

func NewConversation(id, a, b string, now time.Time) *Conversation {
	return &Conversation{
		ID:           id,
		Participants: SortedPair(a, b),
		Messages:     make([]Message, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c *Conversation) HasParticipant(id string) bool {
	return c.Participants[0] == id || c.Participants[1] == id
}

// PartnerOf returns the participant that is not id.
func (c *Conversation) PartnerOf(id string) (string, bool) {
	switch id {
	case c.Participants[0]:
		return c.Participants[1], c.Participants[1] != ""
	case c.Participants[1]:
		return c.Participants[0], c.Participants[0] != ""
	}
	return "", false
}

// LastMessageText returns the body of the newest message, or NoMessagesYet.
func (c *Conversation) LastMessageText() string {
	if len(c.Messages) == 0 {
		return NoMessagesYet
	}
	return c.Messages[len(c.Messages)-1].Body
}

// FindByClientMsgID looks up an earlier append carrying the same idempotency key.
func (c *Conversation) FindByClientMsgID(clientMsgID string) (*Message, bool) {
	if clientMsgID == "" {
		return nil, false
	}
	for i := range c.Messages {
		if c.Messages[i].ClientMsgID == clientMsgID {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

// ValidateAppend checks a message against the conversation it is appended to.
func (c *Conversation) ValidateAppend(m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !c.HasParticipant(m.SenderID) {
		return ErrSenderNotInRoom
	}
	return nil
}

// Clone returns a deep copy safe to hand out of a repository.
func (c *Conversation) Clone() *Conversation {
	cpy := *c
	cpy.Messages = make([]Message, len(c.Messages))
	copy(cpy.Messages, c.Messages)
	return &cpy
}

func normalizeBody(body string) string {
	return strings.TrimSpace(body)
}
