package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeHistory struct {
	log *callLog

	mu        sync.Mutex
	msgs      []Message
	appendErr error
	appended  []string

	// listGate and appendGate, when set, hold the call until closed.
	listStarted chan struct{}
	listGate    chan struct{}
	appendGate  chan struct{}
}

func (h *fakeHistory) ListMessages(ctx context.Context, partnerID string) ([]Message, error) {
	h.log.add("list")

	// The snapshot is taken before the gate, like a response already in
	// flight.
	h.mu.Lock()
	msgs := append([]Message(nil), h.msgs...)
	h.mu.Unlock()

	if h.listStarted != nil {
		close(h.listStarted)
	}
	if h.listGate != nil {
		<-h.listGate
	}
	return msgs, nil
}

func (h *fakeHistory) Append(ctx context.Context, partnerID, body, clientMsgID string) (Message, error) {
	h.log.add("append")
	if h.appendGate != nil {
		<-h.appendGate
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.appended = append(h.appended, clientMsgID)
	if h.appendErr != nil {
		return Message{}, h.appendErr
	}
	for _, m := range h.msgs {
		if m.ClientMsgID == clientMsgID {
			return m, nil
		}
	}

	msg := Message{
		ID:          fmt.Sprintf("srv-%d", len(h.msgs)+1),
		ClientMsgID: clientMsgID,
		SenderID:    "alice",
		Body:        body,
		Timestamp:   time.Now().UTC(),
	}
	h.msgs = append(h.msgs, msg)
	return msg, nil
}

func (h *fakeHistory) setAppendErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appendErr = err
}

type fakeTransport struct {
	log *callLog

	mu         sync.Mutex
	joinErr    error
	publishErr error
	published  []Message
}

func (t *fakeTransport) Join(ctx context.Context, roomID string) error {
	t.log.add("join " + roomID)
	return t.joinErr
}

func (t *fakeTransport) Publish(ctx context.Context, roomID string, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = append(t.published, msg)
	return t.publishErr
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeHistory, *fakeTransport) {
	t.Helper()

	log := &callLog{}
	history := &fakeHistory{log: log}
	transport := &fakeTransport{log: log}

	c, err := NewCoordinator("alice", "bob", history, transport)
	require.NoError(t, err)
	return c, history, transport
}

func bodies(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Body)
	}
	return out
}

func TestNewCoordinator_RejectsInvalidPair(t *testing.T) {
	_, err := NewCoordinator("alice", "alice", &fakeHistory{log: &callLog{}}, &fakeTransport{log: &callLog{}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCoordinator_FetchesHistoryBeforeJoining(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	history.msgs = []Message{{ID: "srv-1", SenderID: "bob", Body: "earlier"}}

	require.NoError(t, c.Start(context.Background()))

	assert.Equal(t, []string{"list", "join " + RoomID("alice", "bob")}, history.log.snapshot())
	assert.Equal(t, Live, c.State())

	entries := c.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ReceiverID)
}

func TestCoordinator_LiveMessageDuringFetchAppearsOnce(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	stored := Message{ID: "srv-1", ClientMsgID: "c-1", SenderID: "bob", Body: "hi", Timestamp: time.Now().UTC()}
	history.msgs = []Message{stored}
	history.listStarted = make(chan struct{})
	history.listGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	<-history.listStarted
	assert.Equal(t, FetchingHistory, c.State())

	// The same message arrives live, without its server id, plus a newer one.
	c.OnReceive(Message{ClientMsgID: "c-1", SenderID: "bob", Body: "hi", Timestamp: stored.Timestamp})
	c.OnReceive(Message{ClientMsgID: "c-2", SenderID: "bob", Body: "newer"})
	c.OnReceive(Message{ClientMsgID: "c-2", SenderID: "bob", Body: "newer"})
	assert.Empty(t, c.Messages())

	close(history.listGate)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"hi", "newer"}, bodies(c.Messages()))
}

func TestCoordinator_SendConfirmedDuringFetchSurvivesStaleHistory(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	history.listStarted = make(chan struct{})
	history.listGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	<-history.listStarted

	stored, err := c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, bodies(c.Messages()))

	// The history response predates the append.
	close(history.listGate)
	require.NoError(t, <-done)

	entries := c.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Body)
	assert.Equal(t, Sent, entries[0].Status)
	assert.Equal(t, stored.ID, entries[0].ID)
}

func TestCoordinator_ReconnectKeepsLiveMessageNotYetStored(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	history.msgs = []Message{{ID: "srv-1", ClientMsgID: "c-1", SenderID: "bob", Body: "earlier"}}
	require.NoError(t, c.Start(context.Background()))

	// Relayed live before bob's own history request landed.
	c.OnReceive(Message{ClientMsgID: "c-9", SenderID: "bob", Body: "live only"})

	require.NoError(t, c.Reconnect(context.Background()))
	assert.Equal(t, []string{"earlier", "live only"}, bodies(c.Messages()))

	// Once stored, the next fetch replaces it rather than duplicating it.
	history.mu.Lock()
	history.msgs = append(history.msgs, Message{ID: "srv-2", ClientMsgID: "c-9", SenderID: "bob", Body: "live only"})
	history.mu.Unlock()

	require.NoError(t, c.Reconnect(context.Background()))
	entries := c.Messages()
	assert.Equal(t, []string{"earlier", "live only"}, bodies(entries))
	assert.Equal(t, "srv-2", entries[1].ID)
}

func TestCoordinator_DedupesWithoutClientIDs(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history.msgs = []Message{{ID: "srv-1", SenderID: "bob", Body: "hi", Timestamp: at}}
	require.NoError(t, c.Start(context.Background()))

	c.OnReceive(Message{ID: "srv-1", SenderID: "bob", Body: "hi", Timestamp: at})
	c.OnReceive(Message{SenderID: "bob", Body: "hi", Timestamp: at})
	c.OnReceive(Message{SenderID: "bob", Body: "hi", Timestamp: at.Add(time.Second)})

	assert.Len(t, c.Messages(), 2)
}

func TestCoordinator_SendRejectsBlankBody(t *testing.T) {
	c, history, transport := newTestCoordinator(t)
	require.NoError(t, c.Start(context.Background()))

	_, err := c.SendMessage(context.Background(), " \n\t")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, transport.published)
	assert.Empty(t, history.appended)
	assert.Empty(t, c.Messages())
}

func TestCoordinator_SendRendersOptimistically(t *testing.T) {
	c, history, transport := newTestCoordinator(t)
	require.NoError(t, c.Start(context.Background()))
	history.appendGate = make(chan struct{})

	type result struct {
		msg Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := c.SendMessage(context.Background(), "hello")
		done <- result{msg, err}
	}()

	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	pending := c.Messages()[0]
	assert.Equal(t, Pending, pending.Status)
	assert.Empty(t, pending.ID)
	assert.NotEmpty(t, pending.ClientMsgID)

	close(history.appendGate)
	res := <-done
	require.NoError(t, res.err)

	require.Len(t, transport.published, 1)
	assert.Equal(t, pending.ClientMsgID, transport.published[0].ClientMsgID)
	assert.Equal(t, "bob", transport.published[0].ReceiverID)

	entries := c.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, Sent, entries[0].Status)
	assert.Equal(t, res.msg.ID, entries[0].ID)
	assert.Equal(t, pending.ClientMsgID, entries[0].ClientMsgID)
}

func TestCoordinator_RelayFailureIsNotReturned(t *testing.T) {
	c, history, transport := newTestCoordinator(t)
	require.NoError(t, c.Start(context.Background()))
	transport.publishErr = fmt.Errorf("%w: not connected", ErrTransport)

	_, err := c.SendMessage(context.Background(), "still stored")
	require.NoError(t, err)
	assert.Len(t, history.appended, 1)
	assert.Equal(t, Sent, c.Messages()[0].Status)
}

func TestCoordinator_PersistenceFailureThenRetry(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	require.NoError(t, c.Start(context.Background()))
	history.setAppendErr(errors.New("connection refused"))

	msg, err := c.SendMessage(context.Background(), "important")
	require.ErrorIs(t, err, ErrPersistence)

	entries := c.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, Failed, entries[0].Status)
	assert.Equal(t, "important", entries[0].Body)

	history.setAppendErr(nil)
	stored, err := c.Retry(context.Background(), msg.ClientMsgID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)

	assert.Equal(t, []string{msg.ClientMsgID, msg.ClientMsgID}, history.appended)
	entries = c.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, Sent, entries[0].Status)

	// Retrying a stored message is a no-op.
	_, err = c.Retry(context.Background(), msg.ClientMsgID)
	require.NoError(t, err)
	assert.Len(t, history.appended, 2)

	_, err = c.Retry(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCoordinator_ReconnectRefetchesAndKeepsFailedSends(t *testing.T) {
	c, history, _ := newTestCoordinator(t)
	require.NoError(t, c.Start(context.Background()))

	history.setAppendErr(errors.New("offline"))
	_, err := c.SendMessage(context.Background(), "unsent")
	require.Error(t, err)

	c.Disconnect()
	assert.Equal(t, Disconnected, c.State())

	// Stored while this session was away.
	history.mu.Lock()
	history.msgs = append(history.msgs, Message{ID: "srv-9", ClientMsgID: "c-9", SenderID: "bob", Body: "missed"})
	history.mu.Unlock()
	c.OnReceive(Message{ClientMsgID: "c-9", SenderID: "bob", Body: "missed"})

	require.NoError(t, c.Reconnect(context.Background()))
	assert.Equal(t, Live, c.State())

	entries := c.Messages()
	assert.Equal(t, []string{"missed", "unsent"}, bodies(entries))
	assert.Equal(t, Sent, entries[0].Status)
	assert.Equal(t, Failed, entries[1].Status)
}

func TestCoordinator_LogsThroughOption(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	history := &fakeHistory{log: &callLog{}, appendErr: errors.New("offline")}

	c, err := NewCoordinator("alice", "bob", history, &fakeTransport{log: &callLog{}}, WithLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	_, err = c.SendMessage(context.Background(), "unsent")
	require.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, 1, logs.FilterMessage("session live").Len())
	warned := logs.FilterMessage("message not stored").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "bob", warned[0].ContextMap()["partnerId"])
}

func TestCoordinator_NilLoggerFallsBackToNop(t *testing.T) {
	history := &fakeHistory{log: &callLog{}, appendErr: errors.New("offline")}
	transport := &fakeTransport{log: &callLog{}, publishErr: fmt.Errorf("%w: not connected", ErrTransport)}

	c, err := NewCoordinator("alice", "bob", history, transport, WithLogger(nil))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	_, err = c.SendMessage(context.Background(), "unsent")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, Failed, c.Messages()[0].Status)
}

func TestCoordinator_StartFailures(t *testing.T) {
	c, _, transport := newTestCoordinator(t)
	transport.joinErr = errors.New("dial refused")

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, Disconnected, c.State())

	transport.joinErr = nil
	require.NoError(t, c.Start(context.Background()))

	err = c.Start(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, Live, c.State())
}
