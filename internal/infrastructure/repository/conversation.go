package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seeker014/SilentRoom/internal/domain"
)

// conversationEntry guards one conversation. Appends to the same entry are
// serialized by mu while other entries proceed independently.
type conversationEntry struct {
	mu           sync.Mutex
	conversation *domain.Conversation
}

type conversationRepository struct {
	byPair map[string]*conversationEntry // pair key -> entry
	byID   map[string]*conversationEntry // conversation id -> entry
	mu     *sync.RWMutex
	now    func() time.Time
}

// NewConversationRepository returns the in-memory store. It keeps every
// message for the lifetime of the process.
func NewConversationRepository() domain.ConversationRepository {
	return &conversationRepository{
		byPair: make(map[string]*conversationEntry),
		byID:   make(map[string]*conversationEntry),
		mu:     &sync.RWMutex{},
		now:    time.Now,
	}
}

func (r *conversationRepository) FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error) {
	if err := domain.ValidatePair(a, b); err != nil {
		return nil, err
	}
	key := domain.PairKey(a, b)

	r.mu.RLock()
	entry, exists := r.byPair[key]
	r.mu.RUnlock()

	if !exists {
		r.mu.Lock()
		// Double-check after lock
		entry, exists = r.byPair[key]
		if !exists {
			entry = &conversationEntry{
				conversation: domain.NewConversation(uuid.NewString(), a, b, r.now()),
			}
			r.byPair[key] = entry
			r.byID[entry.conversation.ID] = entry
		}
		r.mu.Unlock()
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.conversation.Clone(), nil
}

func (r *conversationRepository) Append(ctx context.Context, conversationID string, message *domain.Message) (*domain.Conversation, error) {
	if err := message.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entry, exists := r.byID[conversationID]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrConversationMissing
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	conv := entry.conversation
	if err := conv.ValidateAppend(message); err != nil {
		return nil, err
	}

	if existing, ok := conv.FindByClientMsgID(message.ClientMsgID); ok {
		*message = *existing
		return conv.Clone(), nil
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	now := r.now()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	conv.Messages = append(conv.Messages, *message)
	conv.UpdatedAt = now

	return conv.Clone(), nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, a, b string) ([]domain.Message, error) {
	r.mu.RLock()
	entry, exists := r.byPair[domain.PairKey(a, b)]
	r.mu.RUnlock()
	if !exists {
		return []domain.Message{}, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Return a copy to prevent external mutation
	cpy := make([]domain.Message, len(entry.conversation.Messages))
	copy(cpy, entry.conversation.Messages)

	return cpy, nil
}

func (r *conversationRepository) ListByParticipant(ctx context.Context, participantID string) ([]domain.Conversation, error) {
	r.mu.RLock()
	entries := make([]*conversationEntry, 0)
	for _, entry := range r.byID {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	out := make([]domain.Conversation, 0)
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.conversation.HasParticipant(participantID) {
			out = append(out, *entry.conversation.Clone())
		}
		entry.mu.Unlock()
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}
