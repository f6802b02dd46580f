package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// conversationDocument mirrors the chats collection: one document per pair
// with the messages embedded in append order.
type conversationDocument struct {
	ID             string            `bson:"_id"`
	ParticipantKey string            `bson:"participant_key"`
	Participants   []string          `bson:"participants"`
	Messages       []messageDocument `bson:"messages"`
	CreatedAt      time.Time         `bson:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt"`
}

type messageDocument struct {
	ID          string    `bson:"_id"`
	ClientMsgID string    `bson:"client_msg_id,omitempty"`
	Sender      string    `bson:"sender"`
	Message     string    `bson:"message"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type mongoConversationRepository struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongoConversationRepository(database *mongo.Database) domain.ConversationRepository {
	return &mongoConversationRepository{
		db:  database,
		now: time.Now,
	}
}

func (r *mongoConversationRepository) collection() *mongo.Collection {
	return r.db.Collection(db.ConversationsCollection)
}

func (r *mongoConversationRepository) FindOrCreate(ctx context.Context, a, b string) (*domain.Conversation, error) {
	if err := domain.ValidatePair(a, b); err != nil {
		return nil, err
	}
	pair := domain.SortedPair(a, b)
	key := domain.PairKey(a, b)
	now := r.now().UTC()

	filter := bson.M{"participant_key": key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          uuid.NewString(),
			"participants": pair[:],
			"messages":     bson.A{},
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc conversationDocument
	err := r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert won the unique index; read its document.
		err = r.collection().FindOne(ctx, filter).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find or create conversation: %w", domain.ErrPersistence, err)
	}

	return doc.toDomain(), nil
}

func (r *mongoConversationRepository) Append(ctx context.Context, conversationID string, message *domain.Message) (*domain.Conversation, error) {
	if err := message.Validate(); err != nil {
		return nil, err
	}

	header, err := r.findOne(ctx, bson.M{"_id": conversationID}, options.FindOne().SetProjection(bson.M{"messages": 0}))
	if err != nil {
		return nil, err
	}
	if err := header.ValidateAppend(message); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	filter := bson.M{"_id": conversationID}
	if message.ClientMsgID != "" {
		filter["messages.client_msg_id"] = bson.M{"$ne": message.ClientMsgID}
	}
	update := bson.M{
		"$push": bson.M{"messages": newMessageDocument(message)},
		"$set":  bson.M{"updatedAt": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc conversationDocument
	err = r.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) && message.ClientMsgID != "" {
		// The key is already stored: return the conversation untouched.
		conv, err := r.findOne(ctx, bson.M{"_id": conversationID}, nil)
		if err != nil {
			return nil, err
		}
		if existing, ok := conv.FindByClientMsgID(message.ClientMsgID); ok {
			*message = *existing
		}
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: append message: %w", domain.ErrPersistence, err)
	}

	return doc.toDomain(), nil
}

func (r *mongoConversationRepository) ListMessages(ctx context.Context, a, b string) ([]domain.Message, error) {
	conv, err := r.findOne(ctx, bson.M{"participant_key": domain.PairKey(a, b)}, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

func (r *mongoConversationRepository) ListByParticipant(ctx context.Context, participantID string) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := r.collection().Find(ctx, bson.M{"participants": participantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", domain.ErrPersistence, err)
	}
	defer cursor.Close(ctx)

	var docs []conversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", domain.ErrPersistence, err)
	}

	out := make([]domain.Conversation, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toDomain())
	}
	return out, nil
}

func (r *mongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participant_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "participants", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *mongoConversationRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Conversation, error) {
	var doc conversationDocument

	var err error
	if opts != nil {
		err = r.collection().FindOne(ctx, filter, opts).Decode(&doc)
	} else {
		err = r.collection().FindOne(ctx, filter).Decode(&doc)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation: %w", domain.ErrPersistence, err)
	}

	return doc.toDomain(), nil
}

func newMessageDocument(m *domain.Message) messageDocument {
	return messageDocument{
		ID:          m.ID,
		ClientMsgID: m.ClientMsgID,
		Sender:      m.SenderID,
		Message:     m.Body,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (d *conversationDocument) toDomain() *domain.Conversation {
	conv := &domain.Conversation{
		ID:        d.ID,
		Messages:  make([]domain.Message, 0, len(d.Messages)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	copy(conv.Participants[:], d.Participants)

	for _, m := range d.Messages {
		conv.Messages = append(conv.Messages, domain.Message{
			ID:          m.ID,
			ClientMsgID: m.ClientMsgID,
			SenderID:    m.Sender,
			Body:        m.Message,
			CreatedAt:   m.CreatedAt,
		})
	}
	return conv
}
