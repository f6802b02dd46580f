package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

type envelope struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// WebSocketTransport speaks the live protocol of a SilentRoom server. It
// dials lazily on Join and redials after the connection drops.
type WebSocketTransport struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	acks    map[string]chan error // room id -> pending join
	handler func(Message)
	lost    func(error)
}

// NewWebSocketTransport connects to baseURL's /api/ws endpoint. An http or
// https base URL is rewritten to ws or wss.
func NewWebSocketTransport(baseURL, token string, opts ...Option) *WebSocketTransport {
	u := strings.TrimRight(baseURL, "/")
	if after, ok := strings.CutPrefix(u, "https://"); ok {
		u = "wss://" + after
	} else if after, ok := strings.CutPrefix(u, "http://"); ok {
		u = "ws://" + after
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	return &WebSocketTransport{
		url:    u + "/api/ws",
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: buildOptions(opts).logger,
		acks:   make(map[string]chan error),
	}
}

// OnMessage sets the callback for message.received events, typically a
// Coordinator's OnReceive.
func (t *WebSocketTransport) OnMessage(fn func(Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// OnLost sets the callback run when an established connection drops.
func (t *WebSocketTransport) OnLost(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lost = fn
}

// Join subscribes to roomID and waits for the server's answer.
func (t *WebSocketTransport) Join(ctx context.Context, roomID string) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}

	ack := make(chan error, 1)
	t.mu.Lock()
	t.acks[roomID] = ack
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		if t.acks[roomID] == ack {
			delete(t.acks, roomID)
		}
		t.mu.Unlock()
	}()

	if err := t.write(conn, ws.WSMessage{Type: ws.RoomJoin, RoomID: roomID}); err != nil {
		return err
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: join %s: %w", ErrTransport, roomID, ctx.Err())
	}
}

func (t *WebSocketTransport) Publish(ctx context.Context, roomID string, msg Message) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrTransport)
	}

	return t.write(conn, ws.WSMessage{
		Type:   ws.MessageSend,
		RoomID: roomID,
		Data: ws.MessagePayload{
			ClientMsgID: msg.ClientMsgID,
			SenderID:    msg.SenderID,
			ReceiverID:  msg.ReceiverID,
			Body:        msg.Body,
			Timestamp:   msg.Timestamp,
		},
	})
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *WebSocketTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: live connection refused", ErrAuthorization)
		}
		return nil, fmt.Errorf("%w: dial: %w", ErrTransport, err)
	}

	t.conn = conn
	go t.readLoop(conn)
	return conn, nil
}

func (t *WebSocketTransport) write(conn *websocket.Conn, msg ws.WSMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrTransport, msg.Type, err)
	}
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.dropped(conn, err)
			return
		}

		switch env.Type {
		case ws.MessageReceived:
			var payload ws.MessagePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				continue
			}
			t.mu.Lock()
			handler := t.handler
			t.mu.Unlock()
			if handler != nil {
				handler(Message{
					ID:          payload.ID,
					ClientMsgID: payload.ClientMsgID,
					SenderID:    payload.SenderID,
					ReceiverID:  payload.ReceiverID,
					Body:        payload.Body,
					Timestamp:   payload.Timestamp,
				})
			}
		case ws.RoomJoined:
			t.ack(env.RoomID, nil)
		case ws.AuthenticationError:
			t.ack(env.RoomID, fmt.Errorf("%w: %s", ErrAuthorization, errorMessage(env.Data)))
		case ws.JoinFailed:
			t.ack(env.RoomID, fmt.Errorf("%w: %s", ErrTransport, errorMessage(env.Data)))
		case ws.ErrorEvent, ws.RateLimited:
			t.logger.Debug("server reported error",
				zap.String("roomId", env.RoomID),
				zap.String("eventType", env.Type),
				zap.String("error", errorMessage(env.Data)),
			)
		}
	}
}

func (t *WebSocketTransport) ack(roomID string, err error) {
	t.mu.Lock()
	ack, ok := t.acks[roomID]
	t.mu.Unlock()
	if ok {
		select {
		case ack <- err:
		default:
		}
	}
}

func (t *WebSocketTransport) dropped(conn *websocket.Conn, err error) {
	t.mu.Lock()
	current := t.conn == conn
	if current {
		t.conn = nil
	}
	for roomID, ack := range t.acks {
		select {
		case ack <- fmt.Errorf("%w: connection lost", ErrTransport):
		default:
		}
		delete(t.acks, roomID)
	}
	lost := t.lost
	t.mu.Unlock()

	_ = conn.Close()
	if !current {
		return
	}

	t.logger.Warn("live connection lost", zap.Error(err))
	if lost != nil {
		lost(err)
	}
}

func errorMessage(raw json.RawMessage) string {
	var payload ws.ErrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		return "unknown error"
	}
	return payload.Message
}
