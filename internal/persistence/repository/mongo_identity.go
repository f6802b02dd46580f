package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	Nickname string `bson:"nickname"`
}

type mongoIdentityResolver struct {
	db *mongo.Database
}

// NewMongoIdentityResolver resolves display names from the users collection.
// Participant ids are matched as ObjectIDs when they parse as one.
func NewMongoIdentityResolver(database *mongo.Database) domain.IdentityResolver {
	return &mongoIdentityResolver{
		db: database,
	}
}

func (r *mongoIdentityResolver) ResolveDisplayName(ctx context.Context, participantID string) (string, error) {
	var key any = participantID
	if oid, err := primitive.ObjectIDFromHex(participantID); err == nil {
		key = oid
	}

	opts := options.FindOne().SetProjection(bson.M{"nickname": 1})

	var user userDocument
	err := r.db.Collection(db.UsersCollection).FindOne(ctx, bson.M{"_id": key}, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("%w %q", domain.ErrParticipantMissing, participantID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: resolve participant: %w", domain.ErrPersistence, err)
	}

	return user.Nickname, nil
}
