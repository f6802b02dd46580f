package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/configs"
	"github.com/seeker014/SilentRoom/internal/infrastructure/events"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/messaging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/repository"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
	"github.com/seeker014/SilentRoom/internal/persistence/db"
	persistence "github.com/seeker014/SilentRoom/internal/persistence/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

type storeSet struct {
	conversations domain.ConversationRepository
	identity      domain.IdentityResolver
	// directory is set for the memory identity backend so authenticated
	// nicknames can be registered.
	directory *repository.IdentityDirectory

	sqlite *sql.DB
	mongo  *mongo.Client
}

func (s *storeSet) Close() {
	if s.sqlite != nil {
		_ = s.sqlite.Close()
	}
	if s.mongo != nil {
		_ = db.DisconnectMongo(context.Background(), s.mongo)
	}
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func openStores(ctx context.Context, cfg *configs.Config, logger logging.Logger) (*storeSet, error) {
	s := &storeSet{}

	var database *mongo.Database
	if cfg.Store.Driver == "mongo" || cfg.Identity.Driver == "mongo" {
		mongoCfg := db.NewMongoConfig(cfg.Store.MongoURI, cfg.Store.MongoDB)
		client, err := db.NewMongoClient(ctx, mongoCfg, logger)
		if err != nil {
			return nil, err
		}
		s.mongo = client
		database = db.GetDatabase(client, mongoCfg)
	}

	switch cfg.Store.Driver {
	case "memory":
		s.conversations = repository.NewConversationRepository()
	case "sqlite":
		conn, err := db.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.sqlite = conn
		s.conversations = persistence.NewSQLiteConversationRepository(conn)
	case "mongo":
		s.conversations = persistence.NewMongoConversationRepository(database)
		if ix, ok := s.conversations.(indexer); ok {
			if err := ix.EnsureIndexes(ctx); err != nil {
				s.Close()
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	switch cfg.Identity.Driver {
	case "memory":
		s.directory = repository.NewIdentityDirectory(cfg.Identity.Seed)
		s.identity = s.directory
	case "mongo":
		s.identity = persistence.NewMongoIdentityResolver(database)
	default:
		s.Close()
		return nil, fmt.Errorf("unsupported identity driver %q", cfg.Identity.Driver)
	}

	logger.Info(logging.General, logging.Startup, "stores ready", map[logging.ExtraKey]any{
		"store":    cfg.Store.Driver,
		"identity": cfg.Identity.Driver,
	})

	return s, nil
}

// newPublisher publishes MessageSent events through RabbitMQ when a broker is
// configured, so every instance can refresh the inboxes it serves. Without a
// broker events are handled in process.
func newPublisher(ctx context.Context, cfg *configs.Config, gateway *ws.Gateway, logger logging.Logger) (domain.EventPublisher, func(), error) {
	notifier := events.NewInboxNotifier(gateway, logger)

	if cfg.Messaging.RabbitMQURI == "" {
		return events.NewLocalPublisher(notifier.Handle), func() {}, nil
	}

	rabbitmq, err := messaging.NewRabbitMQ(cfg.Messaging.RabbitMQURI, logger)
	if err != nil {
		return nil, nil, err
	}

	consumer := events.NewInboxConsumer(rabbitmq, notifier.Handle)
	go func() {
		if err := consumer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(logging.RabbitMQ, logging.Events, "inbox consumer stopped", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
	}()

	return events.NewMessagePublisher(rabbitmq), rabbitmq.Close, nil
}
