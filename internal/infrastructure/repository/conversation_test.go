package repository

import (
	"testing"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/repository/repositorytest"
)

func TestConversationRepository(t *testing.T) {
	repositorytest.RunConversationRepositoryContract(t, func(t *testing.T) domain.ConversationRepository {
		return NewConversationRepository()
	})
}
