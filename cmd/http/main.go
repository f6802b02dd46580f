package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/seeker014/SilentRoom/internal/application/chat"
	"github.com/seeker014/SilentRoom/internal/infrastructure/auth"
	"github.com/seeker014/SilentRoom/internal/infrastructure/configs"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/metrics"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ratelimiter"
	"github.com/seeker014/SilentRoom/internal/infrastructure/tracing"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
	"github.com/seeker014/SilentRoom/internal/presentation/api"
	"github.com/seeker014/SilentRoom/internal/presentation/handler/chats"
	"github.com/seeker014/SilentRoom/internal/presentation/handler/health"
	"github.com/seeker014/SilentRoom/internal/presentation/handler/live"
)

const (
	serviceName = "silentroom-api"
)

func main() {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	configPath := configs.DetermineConfigPath(os.Args[1:])
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatalf("failed to initialize the tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	m := metrics.New()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to open stores", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer stores.Close()

	gateway := ws.NewGateway(cfg.WS.SendBufferSize, logger, m)
	relay := ws.NewRelay(gateway, logger, m)
	sendLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.WS.SendLimit, cfg.WS.SendWindow)
	defer sendLimiter.Close()
	dispatcher := ws.NewDispatcher(gateway, relay, sendLimiter, logger, ws.Options{
		PingInterval:    cfg.WS.PingInterval,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
	})

	publisher, closePublisher, err := newPublisher(ctx, cfg, gateway, logger)
	if err != nil {
		logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to start event publisher", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer closePublisher()

	chatService := chat.NewChatService(stores.conversations, publisher, m, logger)
	aggregator := chat.NewConversationAggregator(stores.conversations, stores.identity, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	healthHandler := health.NewHandler(gateway)
	chatsHandler := chats.NewHandler(chatService, aggregator, stores.identity, logger)
	liveHandler := live.NewHandler(gateway, dispatcher, tokens, cfg.Auth.CookieName, cfg.HTTP.AllowedOrigins, logger)

	rl := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	defer rl.Close()

	app := api.NewApplication(*cfg, chatsHandler, liveHandler, healthHandler, tokens, m, logger, rl)
	if stores.directory != nil {
		app.OnAuthenticated(func(claims *auth.Claims) {
			if claims.Nickname != "" {
				stores.directory.Register(claims.ParticipantID, claims.Nickname)
			}
		})
	}
	app.OnShutdown(func(context.Context) {
		n := gateway.CloseAll()
		logger.Info(logging.WebSocket, logging.Shutdown, "closed live connections", map[logging.ExtraKey]any{
			"connections": n,
		})
		cancel()
		// Give write pumps a moment to flush close frames.
		time.Sleep(100 * time.Millisecond)
	})

	mux := app.Mount()
	if err := app.Run(mux); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}
