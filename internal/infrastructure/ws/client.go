package ws

import (
	"github.com/google/uuid"
)

// Client is one live connection of an authenticated participant. It is
// transport agnostic: whatever drains Send() owns the socket.
type Client struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participantId"`

	send chan *WSMessage

	// Guarded by the owning Gateway's mutex.
	rooms  map[string]struct{}
	closed bool
}

func newClient(participantID string, bufferSize int) *Client {
	return &Client{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		send:          make(chan *WSMessage, bufferSize), // buffered to avoid dead-locks on slow clients
		rooms:         make(map[string]struct{}),
	}
}

// Send is closed by Gateway.Disconnect.
func (c *Client) Send() <-chan *WSMessage {
	return c.send
}
