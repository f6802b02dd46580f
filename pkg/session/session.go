// Package session keeps one participant's view of a private conversation
// consistent across the live relay and the durable history API.
//
// A Coordinator seeds its visible history before joining the live room,
// buffers live messages that arrive in between and renders sends
// optimistically until the history API confirms them.
package session

import (
	"context"
	"time"
)

type State int

const (
	Disconnected State = iota
	FetchingHistory
	JoiningRoom
	Live
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case FetchingHistory:
		return "fetching_history"
	case JoiningRoom:
		return "joining_room"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}

// Status tracks an outgoing message through persistence.
type Status int

const (
	Sent Status = iota
	Pending
	Failed
)

func (s Status) String() string {
	switch s {
	case Sent:
		return "sent"
	case Pending:
		return "pending"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a chat message as seen by the session. ID is assigned by the
// server and is empty until the message is stored.
type Message struct {
	ID          string    `json:"id,omitempty"`
	ClientMsgID string    `json:"clientMsgId,omitempty"`
	SenderID    string    `json:"senderId"`
	ReceiverID  string    `json:"receiverId"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
}

// Entry is one line of the visible history.
type Entry struct {
	Message
	Status Status
}

// History is the durable side of a session.
type History interface {
	ListMessages(ctx context.Context, partnerID string) ([]Message, error)
	Append(ctx context.Context, partnerID, body, clientMsgID string) (Message, error)
}

// Transport is the live side of a session.
type Transport interface {
	Join(ctx context.Context, roomID string) error
	Publish(ctx context.Context, roomID string, msg Message) error
}

// sameMessage reports whether a and b are copies of one message. Client ids
// are compared first, then server ids, then the visible content.
func sameMessage(a, b Message) bool {
	if a.ClientMsgID != "" && b.ClientMsgID != "" {
		return a.ClientMsgID == b.ClientMsgID
	}
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.SenderID == b.SenderID && a.Timestamp.Equal(b.Timestamp) && a.Body == b.Body
}
