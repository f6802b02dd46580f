package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newRelayServer runs the live gateway behind a handler that trusts the
// bearer value as the participant id.
func newRelayServer(t *testing.T) (string, *ws.Gateway) {
	t.Helper()

	logger := logging.NewNopLogger()
	gateway := ws.NewGateway(16, logger, nil)
	relay := ws.NewRelay(gateway, logger, nil)
	dispatcher := ws.NewDispatcher(gateway, relay, nil, logger, ws.Options{PingInterval: time.Second})
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		participantID := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if participantID == "" || participantID == "intruder" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		client, err := gateway.Connect(participantID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			gateway.Disconnect(client)
			return
		}
		dispatcher.Serve(conn, client)
	}))
	t.Cleanup(srv.Close)

	return srv.URL, gateway
}

type inbox struct {
	mu   sync.Mutex
	msgs []Message
}

func (i *inbox) receive(m Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, m)
}

func (i *inbox) snapshot() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Message(nil), i.msgs...)
}

func TestWebSocketTransport_JoinAndRelay(t *testing.T) {
	url, _ := newRelayServer(t)
	ctx := context.Background()
	room := RoomID("alice", "bob")

	alice := NewWebSocketTransport(url, "alice")
	bob := NewWebSocketTransport(url, "bob")
	t.Cleanup(func() { _ = alice.Close() })
	t.Cleanup(func() { _ = bob.Close() })

	var got inbox
	bob.OnMessage(got.receive)

	require.NoError(t, alice.Join(ctx, room))
	require.NoError(t, bob.Join(ctx, room))

	sent := Message{ClientMsgID: "c-1", SenderID: "alice", ReceiverID: "bob", Body: "hi", Timestamp: time.Now().UTC()}
	require.NoError(t, alice.Publish(ctx, room, sent))

	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := got.snapshot()[0]
	assert.Equal(t, "c-1", msg.ClientMsgID)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "hi", msg.Body)
}

func TestWebSocketTransport_Errors(t *testing.T) {
	url, _ := newRelayServer(t)
	ctx := context.Background()

	mallory := NewWebSocketTransport(url, "mallory")
	t.Cleanup(func() { _ = mallory.Close() })

	err := mallory.Publish(ctx, RoomID("alice", "bob"), Message{Body: "x"})
	assert.ErrorIs(t, err, ErrTransport)

	err = mallory.Join(ctx, RoomID("alice", "bob"))
	assert.ErrorIs(t, err, ErrAuthorization)

	intruder := NewWebSocketTransport(url, "intruder")
	err = intruder.Join(ctx, RoomID("alice", "intruder"))
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestWebSocketTransport_ReportsLostConnection(t *testing.T) {
	url, gateway := newRelayServer(t)
	ctx := context.Background()

	alice := NewWebSocketTransport(url, "alice")
	t.Cleanup(func() { _ = alice.Close() })

	lost := make(chan struct{})
	alice.OnLost(func(error) { close(lost) })
	require.NoError(t, alice.Join(ctx, RoomID("alice", "bob")))

	gateway.CloseAll()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("connection loss not reported")
	}

	// The next join dials again.
	require.NoError(t, alice.Join(ctx, RoomID("alice", "bob")))
}

func TestSession_EndToEnd(t *testing.T) {
	url, _ := newRelayServer(t)
	ctx := context.Background()
	log := &callLog{}
	store := &fakeHistory{log: log}

	aliceTransport := NewWebSocketTransport(url, "alice")
	bobTransport := NewWebSocketTransport(url, "bob")
	t.Cleanup(func() { _ = aliceTransport.Close() })
	t.Cleanup(func() { _ = bobTransport.Close() })

	alice, err := NewCoordinator("alice", "bob", store, aliceTransport, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	bob, err := NewCoordinator("bob", "alice", store, bobTransport, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	aliceTransport.OnMessage(alice.OnReceive)
	bobTransport.OnMessage(bob.OnReceive)

	require.NoError(t, alice.Start(ctx))
	require.NoError(t, bob.Start(ctx))

	sent, err := alice.SendMessage(ctx, "over the wire")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(bob.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, sent.ClientMsgID, bob.Messages()[0].ClientMsgID)

	// Refetching the stored copy does not duplicate the live one.
	require.NoError(t, bob.Reconnect(ctx))
	assert.Len(t, bob.Messages(), 1)
	assert.Len(t, alice.Messages(), 1)
}
