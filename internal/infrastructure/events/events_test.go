package events

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/messaging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() domain.MessageSent {
	return domain.MessageSent{
		ConversationID: "conv-1",
		Participants:   [2]string{"alice", "bob"},
		MessageID:      "msg-1",
		SenderID:       "alice",
		UpdatedAt:      time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestInboxNotifier_HintsBothParticipants(t *testing.T) {
	logger := logging.NewNopLogger()
	gateway := ws.NewGateway(4, logger, nil)

	alice, err := gateway.Connect("alice")
	require.NoError(t, err)
	bob, err := gateway.Connect("bob")
	require.NoError(t, err)

	publisher := NewLocalPublisher(NewInboxNotifier(gateway, logger).Handle)
	require.NoError(t, publisher.PublishMessageSent(context.Background(), sampleEvent()))

	aliceHint := <-alice.Send()
	assert.Equal(t, ws.ConversationsUpdated, aliceHint.Type)
	assert.Equal(t, "bob", aliceHint.Data.(ws.ConversationsUpdatedPayload).PartnerID)

	bobHint := <-bob.Send()
	assert.Equal(t, "alice", bobHint.Data.(ws.ConversationsUpdatedPayload).PartnerID)
	assert.Equal(t, "conv-1", bobHint.Data.(ws.ConversationsUpdatedPayload).ConversationID)
}

func TestLocalPublisher_JoinsHandlerErrors(t *testing.T) {
	calls := 0
	failing := func(context.Context, domain.MessageSent) error {
		calls++
		return errors.New("boom")
	}

	err := NewLocalPublisher(failing, failing).PublishMessageSent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	assert.NoError(t, NewLocalPublisher().PublishMessageSent(context.Background(), sampleEvent()))
}

func TestRabbitMQ_RoundTrip(t *testing.T) {
	uri := os.Getenv("SILENTROOM_TEST_RABBITMQ_URI")
	if uri == "" {
		t.Skip("SILENTROOM_TEST_RABBITMQ_URI not set")
	}

	rmq, err := messaging.NewRabbitMQ(uri, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(rmq.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	received := make(chan domain.MessageSent, 1)
	consumer := NewInboxConsumer(rmq, func(_ context.Context, event domain.MessageSent) error {
		received <- event
		return nil
	})
	require.NoError(t, consumer.Listen(ctx))

	require.NoError(t, NewMessagePublisher(rmq).PublishMessageSent(ctx, sampleEvent()))

	select {
	case event := <-received:
		assert.Equal(t, sampleEvent(), event)
	case <-time.After(5 * time.Second):
		t.Fatal("event not consumed")
	}
}
