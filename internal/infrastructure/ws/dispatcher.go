package ws

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ratelimiter"
)

type Options struct {
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
}

func (o *Options) setDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 8192
	}
}

// Dispatcher runs the pumps of a WebSocket connection and interprets the
// events a client sends.
type Dispatcher struct {
	gateway *Gateway
	relay   *Relay
	limiter *ratelimiter.FixedWindowRateLimiter
	logger  logging.Logger
	opts    Options
	now     func() time.Time
}

// NewDispatcher wires the live protocol. limiter may be nil to disable send
// budgets.
func NewDispatcher(gateway *Gateway, relay *Relay, limiter *ratelimiter.FixedWindowRateLimiter, logger logging.Logger, opts Options) *Dispatcher {
	opts.setDefaults()

	return &Dispatcher{
		gateway: gateway,
		relay:   relay,
		limiter: limiter,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Serve blocks until the connection ends, then disconnects c from the
// gateway.
func (d *Dispatcher) Serve(conn *websocket.Conn, c *Client) {
	wrapper := newConnWrapper(conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.writePump(wrapper, c)
	}()

	d.readPump(wrapper, c)

	d.gateway.Disconnect(c)
	if d.limiter != nil {
		d.limiter.Forget(c.ID)
	}
	<-done
	_ = wrapper.Close()
}

func (d *Dispatcher) readPump(w *connWrapper, c *Client) {
	pongWait := d.opts.PingInterval * 2

	w.conn.SetReadLimit(d.opts.MaxMessageBytes)
	_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				d.logger.Warn(logging.WebSocket, logging.Connection, "read failed", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in InboundMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			d.gateway.SendTo(c, NewError("", "malformed event"))
			continue
		}
		d.handle(c, &in)
	}
}

func (d *Dispatcher) writePump(w *connWrapper, c *Client) {
	ticker := time.NewTicker(d.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.Send():
			if !ok {
				_ = w.WriteClose(websocket.CloseNormalClosure, "", d.opts.WriteTimeout)
				return
			}
			if err := w.WriteJSON(msg, d.opts.WriteTimeout); err != nil {
				d.logger.Warn(logging.WebSocket, logging.Connection, "write failed", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
				// Unblocks the read pump, which disconnects the client.
				_ = w.Close()
				return
			}
		case <-ticker.C:
			if err := w.WritePing(d.opts.WriteTimeout); err != nil {
				_ = w.Close()
				return
			}
		}
	}
}

func (d *Dispatcher) handle(c *Client, in *InboundMessage) {
	switch in.Type {
	case RoomJoin:
		d.handleJoin(c, in)
	case RoomLeave:
		d.handleLeave(c, in)
	case MessageSend:
		d.handleSend(c, in)
	default:
		d.gateway.SendTo(c, NewError(in.RoomID, "unsupported event "+in.Type))
	}
}

func (d *Dispatcher) handleJoin(c *Client, in *InboundMessage) {
	roomID := eventRoomID(in)

	err := d.gateway.JoinRoom(c, roomID)
	switch {
	case errors.Is(err, domain.ErrAuthorization):
		d.logger.Warn(logging.WebSocket, logging.Connection, "room join refused", map[logging.ExtraKey]any{
			logging.ConnectionID:  c.ID,
			logging.ParticipantID: c.ParticipantID,
			logging.RoomID:        roomID,
		})
		d.gateway.SendTo(c, NewAuthError(roomID, "not a participant of this room"))
	case err != nil:
		d.gateway.SendTo(c, NewJoinFailed(roomID, err.Error()))
	default:
		d.gateway.SendTo(c, NewRoomJoined(roomID))
	}
}

// handleLeave stops live delivery of roomID to c. The connection stays open
// for its other rooms.
func (d *Dispatcher) handleLeave(c *Client, in *InboundMessage) {
	roomID := eventRoomID(in)
	if !d.gateway.IsSubscribed(c, roomID) {
		d.gateway.SendTo(c, NewError(roomID, "not joined to this room"))
		return
	}

	d.gateway.LeaveRoom(c, roomID)
	d.gateway.SendTo(c, NewRoomLeft(roomID))
}

func (d *Dispatcher) handleSend(c *Client, in *InboundMessage) {
	if d.limiter != nil {
		if ok, wait := d.limiter.Allow(c.ID); !ok {
			d.gateway.SendTo(c, NewRateLimited(in.RoomID, wait))
			return
		}
	}

	var payload MessagePayload
	if err := json.Unmarshal(in.Data, &payload); err != nil {
		d.gateway.SendTo(c, NewError(in.RoomID, "malformed message payload"))
		return
	}

	a, b, ok := domain.ParseRoomID(in.RoomID)
	if !ok || (c.ParticipantID != a && c.ParticipantID != b) {
		d.gateway.SendTo(c, NewAuthError(in.RoomID, "not a participant of this room"))
		return
	}
	if strings.TrimSpace(payload.Body) == "" {
		d.gateway.SendTo(c, NewError(in.RoomID, domain.ErrEmptyBody.Error()))
		return
	}

	// The sender is always the authenticated principal.
	payload.SenderID = c.ParticipantID
	payload.ReceiverID = a
	if a == c.ParticipantID {
		payload.ReceiverID = b
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = d.now().UTC()
	}

	delivered := d.relay.Publish(in.RoomID, NewMessageReceived(in.RoomID, payload), c)

	d.logger.Debug(logging.WebSocket, logging.Relay, "message relayed", map[logging.ExtraKey]any{
		logging.RoomID:      in.RoomID,
		logging.ClientMsgID: payload.ClientMsgID,
		"Delivered":         delivered,
	})
}

// eventRoomID reads the room from the envelope, falling back to a JoinPayload
// in data.
func eventRoomID(in *InboundMessage) string {
	if in.RoomID != "" || len(in.Data) == 0 {
		return in.RoomID
	}
	var payload JoinPayload
	if err := json.Unmarshal(in.Data, &payload); err != nil {
		return ""
	}
	return payload.RoomID
}
