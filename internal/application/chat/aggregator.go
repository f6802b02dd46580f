package chat

import (
	"context"
	"errors"
	"sort"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
)

type ConversationAggregator interface {
	// ListConversations summarizes every conversation of userID, most
	// recently updated first.
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

type conversationAggregator struct {
	repository domain.ConversationRepository
	identity   domain.IdentityResolver
	logger     logging.Logger
}

func NewConversationAggregator(
	repository domain.ConversationRepository,
	identity domain.IdentityResolver,
	logger logging.Logger,
) ConversationAggregator {
	return &conversationAggregator{
		repository: repository,
		identity:   identity,
		logger:     logger,
	}
}

func (a *conversationAggregator) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	if err := domain.ValidateParticipantID(userID); err != nil {
		return nil, err
	}

	convs, err := a.repository.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(convs))
	for i := range convs {
		conv := &convs[i]

		partnerID, ok := conv.PartnerOf(userID)
		if !ok {
			continue
		}

		name, err := a.identity.ResolveDisplayName(ctx, partnerID)
		if errors.Is(err, domain.ErrNotFound) {
			// Partners whose account is gone are left out of the inbox.
			a.logger.Debug(logging.General, logging.Identity, "dropping conversation with unknown partner", map[logging.ExtraKey]any{
				logging.ConversationID: conv.ID,
				logging.PartnerID:      partnerID,
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		out = append(out, domain.ConversationSummary{
			ConversationID:     conv.ID,
			PartnerID:          partnerID,
			PartnerDisplayName: name,
			LastMessageText:    conv.LastMessageText(),
			UpdatedAt:          conv.UpdatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}
