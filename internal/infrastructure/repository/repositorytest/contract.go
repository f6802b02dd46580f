// Package repositorytest holds the behaviour every conversation store must
// share. Backends run it from their own tests.
package repositorytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) domain.ConversationRepository

func RunConversationRepositoryContract(t *testing.T, newRepo Factory) {
	t.Run("FindOrCreateIsOrderIndependent", func(t *testing.T) { testFindOrCreateOrder(t, newRepo(t)) })
	t.Run("ConcurrentFindOrCreateYieldsOneConversation", func(t *testing.T) { testConcurrentFindOrCreate(t, newRepo(t)) })
	t.Run("AppendPreservesOrder", func(t *testing.T) { testAppendOrder(t, newRepo(t)) })
	t.Run("ConcurrentAppendsAreNotLost", func(t *testing.T) { testConcurrentAppends(t, newRepo(t)) })
	t.Run("EmptyBodyIsRejected", func(t *testing.T) { testEmptyBody(t, newRepo(t)) })
	t.Run("SenderMustBeParticipant", func(t *testing.T) { testForeignSender(t, newRepo(t)) })
	t.Run("UnknownConversation", func(t *testing.T) { testUnknownConversation(t, newRepo(t)) })
	t.Run("ListMessagesWithoutConversationIsEmpty", func(t *testing.T) { testEmptyHistory(t, newRepo(t)) })
	t.Run("AppendIsIdempotentPerClientMsgID", func(t *testing.T) { testIdempotentAppend(t, newRepo(t)) })
	t.Run("ListByParticipantNewestFirst", func(t *testing.T) { testListByParticipant(t, newRepo(t)) })
	t.Run("InvalidPairIsRejected", func(t *testing.T) { testInvalidPair(t, newRepo(t)) })
}

func testFindOrCreateOrder(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	c1, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	c2, err := repo.FindOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, [2]string{"alice", "bob"}, c1.Participants)
	assert.Empty(t, c1.Messages)
	assert.False(t, c1.CreatedAt.IsZero())
}

func testConcurrentFindOrCreate(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()
	const callers = 32

	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repo.FindOrCreate(ctx, a, b)
			errs[i] = err
			if err == nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	convs, err := repo.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func testAppendOrder(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	conv, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = repo.Append(ctx, conv.ID, domain.NewMessage("alice", "x", ""))
	require.NoError(t, err)
	updated, err := repo.Append(ctx, conv.ID, domain.NewMessage("bob", "y", ""))
	require.NoError(t, err)

	require.Len(t, updated.Messages, 2)
	assert.True(t, !updated.UpdatedAt.Before(conv.UpdatedAt))

	msgs, err := repo.ListMessages(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "x", msgs[0].Body)
	assert.Equal(t, "alice", msgs[0].SenderID)
	assert.Equal(t, "y", msgs[1].Body)
	assert.Equal(t, "bob", msgs[1].SenderID)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func testConcurrentAppends(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()
	const writers = 40

	conv, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := "alice"
			if i%2 == 1 {
				sender = "bob"
			}
			if _, err := repo.Append(ctx, conv.ID, domain.NewMessage(sender, fmt.Sprintf("msg-%d", i), "")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	msgs, err := repo.ListMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, writers, succeeded)
	assert.Len(t, msgs, succeeded)
}

func testEmptyBody(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	conv, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = repo.Append(ctx, conv.ID, domain.NewMessage("alice", "", ""))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = repo.Append(ctx, conv.ID, domain.NewMessage("alice", "   ", ""))
	require.ErrorIs(t, err, domain.ErrValidation)

	msgs, err := repo.ListMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func testForeignSender(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	conv, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	_, err = repo.Append(ctx, conv.ID, domain.NewMessage("mallory", "hi", ""))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func testUnknownConversation(t *testing.T, repo domain.ConversationRepository) {
	_, err := repo.Append(context.Background(), "does-not-exist", domain.NewMessage("alice", "hi", ""))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testEmptyHistory(t *testing.T, repo domain.ConversationRepository) {
	msgs, err := repo.ListMessages(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func testIdempotentAppend(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	conv, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)

	first := domain.NewMessage("alice", "hello", "client-key-1")
	_, err = repo.Append(ctx, conv.ID, first)
	require.NoError(t, err)

	retry := domain.NewMessage("alice", "hello", "client-key-1")
	updated, err := repo.Append(ctx, conv.ID, retry)
	require.NoError(t, err)

	assert.Len(t, updated.Messages, 1)
	assert.Equal(t, first.ID, retry.ID)

	msgs, err := repo.ListMessages(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "client-key-1", msgs[0].ClientMsgID)
}

func testListByParticipant(t *testing.T, repo domain.ConversationRepository) {
	ctx := context.Background()

	conv1, err := repo.FindOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	conv2, err := repo.FindOrCreate(ctx, "carol", "alice")
	require.NoError(t, err)
	_, err = repo.FindOrCreate(ctx, "bob", "carol")
	require.NoError(t, err)

	_, err = repo.Append(ctx, conv1.ID, domain.NewMessage("alice", "first", ""))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = repo.Append(ctx, conv2.ID, domain.NewMessage("carol", "second", ""))
	require.NoError(t, err)

	convs, err := repo.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, conv2.ID, convs[0].ID)
	assert.Equal(t, conv1.ID, convs[1].ID)
	assert.Equal(t, "second", convs[0].LastMessageText())

	time.Sleep(5 * time.Millisecond)
	_, err = repo.Append(ctx, conv1.ID, domain.NewMessage("bob", "third", ""))
	require.NoError(t, err)

	convs, err = repo.ListByParticipant(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, conv1.ID, convs[0].ID)

	none, err := repo.ListByParticipant(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInvalidPair(t *testing.T, repo domain.ConversationRepository) {
	_, err := repo.FindOrCreate(context.Background(), "alice", "alice")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = repo.FindOrCreate(context.Background(), "ali_ce", "bob")
	require.ErrorIs(t, err, domain.ErrValidation)
}
