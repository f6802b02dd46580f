package chats

import "github.com/seeker014/SilentRoom/internal/domain"

type sendMessageRequest struct {
	Body        string `json:"body" validate:"notblank,max=4000"`
	ClientMsgID string `json:"clientMsgId,omitempty" validate:"omitempty,uuid"`
}

// historyMessage is a stored message as the history route returns it. The
// nickname is left out when the sender cannot be resolved.
type historyMessage struct {
	domain.Message
	SenderNickname string `json:"senderNickname,omitempty"`
}
