package ws

import (
	"fmt"
	"sync"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
)

const DefaultSendBufferSize = 64

// Recorder receives gateway and relay measurements.
type Recorder interface {
	SetConnections(n int)
	SetRooms(n int)
	RelayDelivered(n int)
	RelayDropped()
}

type nopRecorder struct{}

func (nopRecorder) SetConnections(int) {}
func (nopRecorder) SetRooms(int)       {}
func (nopRecorder) RelayDelivered(int) {}
func (nopRecorder) RelayDropped()      {}

// Stats is a point-in-time view of the gateway.
type Stats struct {
	Connections  int `json:"connections"`
	Participants int `json:"participants"`
	Rooms        int `json:"rooms"`
}

// Gateway tracks live connections and their room subscriptions. A room exists
// while it has at least one subscriber.
type Gateway struct {
	rooms        map[string]map[*Client]struct{} // room id -> subscribers
	participants map[string]map[*Client]struct{} // participant id -> connections
	mu           sync.RWMutex
	bufferSize   int
	logger       logging.Logger
	recorder     Recorder
}

func NewGateway(bufferSize int, logger logging.Logger, recorder Recorder) *Gateway {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBufferSize
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Gateway{
		rooms:        make(map[string]map[*Client]struct{}),
		participants: make(map[string]map[*Client]struct{}),
		bufferSize:   bufferSize,
		logger:       logger,
		recorder:     recorder,
	}
}

// Connect registers a new connection for an authenticated participant.
func (g *Gateway) Connect(participantID string) (*Client, error) {
	if err := domain.ValidateParticipantID(participantID); err != nil {
		return nil, err
	}

	c := newClient(participantID, g.bufferSize)

	g.mu.Lock()
	conns, ok := g.participants[participantID]
	if !ok {
		conns = make(map[*Client]struct{})
		g.participants[participantID] = conns
	}
	conns[c] = struct{}{}
	g.recordLocked()
	g.mu.Unlock()

	g.logger.Debug(logging.WebSocket, logging.Connection, "client connected", map[logging.ExtraKey]any{
		logging.ConnectionID:  c.ID,
		logging.ParticipantID: participantID,
	})
	return c, nil
}

// JoinRoom subscribes c to roomID. Joining twice is a no-op. Only the two
// participants encoded in the room id may join it.
func (g *Gateway) JoinRoom(c *Client, roomID string) error {
	if !domain.RoomHasParticipant(roomID, c.ParticipantID) {
		return fmt.Errorf("%w: %s may not join room %q", domain.ErrAuthorization, c.ParticipantID, roomID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: connection %s is closed", domain.ErrTransport, c.ID)
	}

	subs, ok := g.rooms[roomID]
	if !ok {
		subs = make(map[*Client]struct{})
		g.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	g.recordLocked()

	return nil
}

// LeaveRoom drops a single subscription. Unknown subscriptions are ignored.
func (g *Gateway) LeaveRoom(c *Client, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.leaveLocked(c, roomID)
	g.recordLocked()
}

// Disconnect removes every subscription of c and closes its send channel.
// Calling it more than once is safe.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	if c.closed {
		g.mu.Unlock()
		return
	}
	c.closed = true

	for roomID := range c.rooms {
		g.leaveLocked(c, roomID)
	}
	if conns, ok := g.participants[c.ParticipantID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(g.participants, c.ParticipantID)
		}
	}
	close(c.send)
	g.recordLocked()
	g.mu.Unlock()

	g.logger.Debug(logging.WebSocket, logging.Connection, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID:  c.ID,
		logging.ParticipantID: c.ParticipantID,
	})
}

// CloseAll disconnects every live client. Their write pumps send a normal
// close frame and the connections wind down on their own.
func (g *Gateway) CloseAll() int {
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.participants))
	for _, conns := range g.participants {
		for c := range conns {
			clients = append(clients, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range clients {
		g.Disconnect(c)
	}
	return len(clients)
}

// IsSubscribed reports whether c currently receives events for roomID.
func (g *Gateway) IsSubscribed(c *Client, roomID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := c.rooms[roomID]
	return ok
}

// SendTo queues msg for one connection without blocking. It reports false
// when the connection is closed or its buffer is full.
func (g *Gateway) SendTo(c *Client, msg *WSMessage) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if c.closed {
		return false
	}
	return offer(c, msg)
}

// NotifyParticipant queues msg on every live connection of participantID and
// returns how many accepted it.
func (g *Gateway) NotifyParticipant(participantID string, msg *WSMessage) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	delivered := 0
	for c := range g.participants[participantID] {
		if offer(c, msg) {
			delivered++
		}
	}
	return delivered
}

func (g *Gateway) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.statsLocked()
}

// broadcast offers msg to every subscriber of roomID except exclude.
func (g *Gateway) broadcast(roomID string, msg *WSMessage, exclude *Client) (delivered, dropped int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for c := range g.rooms[roomID] {
		if c == exclude {
			continue
		}
		if offer(c, msg) {
			delivered++
		} else {
			dropped++
		}
	}
	return delivered, dropped
}

func (g *Gateway) leaveLocked(c *Client, roomID string) {
	delete(c.rooms, roomID)

	subs, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(g.rooms, roomID)
	}
}

func (g *Gateway) statsLocked() Stats {
	connections := 0
	for _, conns := range g.participants {
		connections += len(conns)
	}
	return Stats{
		Connections:  connections,
		Participants: len(g.participants),
		Rooms:        len(g.rooms),
	}
}

func (g *Gateway) recordLocked() {
	stats := g.statsLocked()
	g.recorder.SetConnections(stats.Connections)
	g.recorder.SetRooms(stats.Rooms)
}

// offer must be called with the gateway lock held so the channel cannot be
// closed underneath it.
func offer(c *Client, msg *WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
