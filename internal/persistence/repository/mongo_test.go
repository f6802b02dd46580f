package repository

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/repository/repositorytest"
	"github.com/seeker014/SilentRoom/internal/persistence/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// newMongoDatabase connects to SILENTROOM_TEST_MONGODB_URI and hands out a
// throwaway database that is dropped when the test ends.
func newMongoDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("SILENTROOM_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("SILENTROOM_TEST_MONGODB_URI not set")
	}

	ctx := context.Background()
	cfg := db.NewMongoConfig(uri, "silentroom_test_"+strings.ReplaceAll(uuid.NewString(), "-", "")[:12])

	client, err := db.NewMongoClient(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)

	database := db.GetDatabase(client, cfg)
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = db.DisconnectMongo(context.Background(), client)
	})

	return database
}

func TestMongoConversationRepository(t *testing.T) {
	repositorytest.RunConversationRepositoryContract(t, func(t *testing.T) domain.ConversationRepository {
		database := newMongoDatabase(t)
		repo := NewMongoConversationRepository(database)
		require.NoError(t, repo.(*mongoConversationRepository).EnsureIndexes(context.Background()))
		return repo
	})
}

func TestMongoIdentityResolver(t *testing.T) {
	database := newMongoDatabase(t)
	ctx := context.Background()

	oid := primitive.NewObjectID()
	_, err := database.Collection(db.UsersCollection).InsertMany(ctx, []any{
		bson.M{"_id": oid, "nickname": "quiet-fox"},
		bson.M{"_id": "plain-id", "nickname": "night-owl"},
	})
	require.NoError(t, err)

	resolver := NewMongoIdentityResolver(database)

	name, err := resolver.ResolveDisplayName(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, "quiet-fox", name)

	name, err = resolver.ResolveDisplayName(ctx, "plain-id")
	require.NoError(t, err)
	assert.Equal(t, "night-owl", name)

	_, err = resolver.ResolveDisplayName(ctx, primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, domain.ErrNotFound)
}
