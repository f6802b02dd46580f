package ws

import (
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
)

// Relay fans live events out to room subscribers. Delivery is best effort:
// a subscriber whose buffer is full misses the event.
type Relay struct {
	gateway  *Gateway
	logger   logging.Logger
	recorder Recorder
}

func NewRelay(gateway *Gateway, logger logging.Logger, recorder Recorder) *Relay {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Relay{
		gateway:  gateway,
		logger:   logger,
		recorder: recorder,
	}
}

// Publish hands msg to every subscriber of roomID except exclude and returns
// how many accepted it. It never blocks.
func (r *Relay) Publish(roomID string, msg *WSMessage, exclude *Client) int {
	if msg.RoomID == "" {
		msg.RoomID = roomID
	}

	delivered, dropped := r.gateway.broadcast(roomID, msg, exclude)

	r.recorder.RelayDelivered(delivered)
	for i := 0; i < dropped; i++ {
		r.recorder.RelayDropped()
	}
	if dropped > 0 {
		r.logger.Debug(logging.WebSocket, logging.Relay, "subscriber buffer full, event dropped", map[logging.ExtraKey]any{
			logging.RoomID:    roomID,
			logging.EventType: msg.Type,
			"Dropped":         dropped,
		})
	}

	return delivered
}
