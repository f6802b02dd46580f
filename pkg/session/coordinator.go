package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seeker014/SilentRoom/internal/domain"
	"go.uber.org/zap"
)

// Coordinator drives one chat session between self and partner.
type Coordinator struct {
	self      string
	partner   string
	roomID    string
	history   History
	transport Transport
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time

	mu       sync.Mutex
	state    State
	entries  []Entry
	buffered []Message
}

// NewCoordinator builds a Disconnected session. Pass WithLogger to see its
// diagnostics.
func NewCoordinator(self, partner string, history History, transport Transport, opts ...Option) (*Coordinator, error) {
	if err := domain.ValidatePair(self, partner); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	return &Coordinator{
		self:      self,
		partner:   partner,
		roomID:    domain.RoomID(self, partner),
		history:   history,
		transport: transport,
		logger:    o.logger,
		newID:     uuid.NewString,
		now:       time.Now,
		state:     Disconnected,
	}, nil
}

func (c *Coordinator) RoomID() string {
	return c.roomID
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of the visible history.
func (c *Coordinator) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Start seeds the visible history and then joins the live room. Live
// messages received before the room is joined are merged once the session
// is Live.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: session is %s", ErrValidation, state)
	}
	c.state = FetchingHistory
	c.mu.Unlock()

	msgs, err := c.history.ListMessages(ctx, c.partner)
	if err != nil {
		c.setState(Disconnected)
		return c.persistenceError(err)
	}

	c.mu.Lock()
	c.seedLocked(msgs)
	c.state = JoiningRoom
	c.mu.Unlock()

	if err := c.transport.Join(ctx, c.roomID); err != nil {
		c.setState(Disconnected)
		if !errors.Is(err, ErrTransport) && !errors.Is(err, ErrAuthorization) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return err
	}

	c.mu.Lock()
	for _, msg := range c.buffered {
		c.appendLocked(Entry{Message: msg, Status: Sent})
	}
	c.buffered = nil
	c.state = Live
	c.mu.Unlock()

	c.logger.Debug("session live",
		zap.String("participantId", c.self),
		zap.String("roomId", c.roomID),
	)

	return nil
}

// Reconnect restarts the session from FetchingHistory so messages missed
// while offline are pulled from the history API.
func (c *Coordinator) Reconnect(ctx context.Context) error {
	c.setState(Disconnected)
	return c.Start(ctx)
}

// Disconnect marks the session offline. Live messages received afterwards
// are held until the next Start.
func (c *Coordinator) Disconnect() {
	c.setState(Disconnected)
}

// OnReceive adds a message delivered by the live relay.
func (c *Coordinator) OnReceive(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Live {
		for _, held := range c.buffered {
			if sameMessage(held, msg) {
				return
			}
		}
		c.buffered = append(c.buffered, msg)
		return
	}

	c.appendLocked(Entry{Message: msg, Status: Sent})
}

// SendMessage relays body to the partner, renders it locally and persists
// it. A relay failure is only logged. A persistence failure leaves the entry
// marked Failed so it can be retried with Retry.
func (c *Coordinator) SendMessage(ctx context.Context, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyBody
	}

	msg := Message{
		ClientMsgID: c.newID(),
		SenderID:    c.self,
		ReceiverID:  c.partner,
		Body:        body,
		Timestamp:   c.now().UTC(),
	}

	if err := c.transport.Publish(ctx, c.roomID, msg); err != nil {
		c.logger.Warn("live publish failed",
			zap.String("roomId", c.roomID),
			zap.String("clientMsgId", msg.ClientMsgID),
			zap.Error(err),
		)
	}

	c.mu.Lock()
	c.entries = append(c.entries, Entry{Message: msg, Status: Pending})
	c.mu.Unlock()

	return c.persist(ctx, msg)
}

// Retry persists a failed message again under its original client id, so
// the server stores it at most once.
func (c *Coordinator) Retry(ctx context.Context, clientMsgID string) (Message, error) {
	c.mu.Lock()
	i := c.indexLocked(Message{ClientMsgID: clientMsgID})
	if clientMsgID == "" || i < 0 {
		c.mu.Unlock()
		return Message{}, fmt.Errorf("%w: message %q", ErrNotFound, clientMsgID)
	}
	entry := c.entries[i]
	if entry.Status != Failed {
		c.mu.Unlock()
		return entry.Message, nil
	}
	c.entries[i].Status = Pending
	c.mu.Unlock()

	return c.persist(ctx, entry.Message)
}

func (c *Coordinator) persist(ctx context.Context, msg Message) (Message, error) {
	stored, err := c.history.Append(ctx, c.partner, msg.Body, msg.ClientMsgID)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(msg)
	if err != nil {
		if i >= 0 {
			c.entries[i].Status = Failed
		}
		c.logger.Warn("message not stored",
			zap.String("partnerId", c.partner),
			zap.String("clientMsgId", msg.ClientMsgID),
			zap.Error(err),
		)
		return msg, c.persistenceError(err)
	}

	stored.ReceiverID = c.partner
	if i >= 0 {
		c.entries[i] = Entry{Message: stored, Status: Sent}
	}
	return stored, nil
}

// seedLocked replaces the visible history with msgs. A local entry missing
// from msgs is kept whatever its status: the snapshot may predate a send
// confirmed during the fetch or a live message whose sender has not stored
// it yet.
func (c *Coordinator) seedLocked(msgs []Message) {
	local := c.entries
	c.entries = make([]Entry, 0, len(msgs)+len(local))

	for _, msg := range msgs {
		c.appendLocked(Entry{Message: msg, Status: Sent})
	}
	for _, e := range local {
		c.appendLocked(e)
	}
}

func (c *Coordinator) appendLocked(e Entry) {
	if c.indexLocked(e.Message) >= 0 {
		return
	}
	if e.ReceiverID == "" {
		e.ReceiverID = c.self
		if e.SenderID == c.self {
			e.ReceiverID = c.partner
		}
	}
	c.entries = append(c.entries, e)
}

func (c *Coordinator) indexLocked(msg Message) int {
	for i := range c.entries {
		if sameMessage(c.entries[i].Message, msg) {
			return i
		}
	}
	return -1
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) persistenceError(err error) error {
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrValidation) || errors.Is(err, ErrAuthorization) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
