package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/seeker014/SilentRoom/internal/infrastructure/auth"
	"github.com/seeker014/SilentRoom/internal/infrastructure/configs"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/metrics"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ratelimiter"
	chatsHandler "github.com/seeker014/SilentRoom/internal/presentation/handler/chats"
	healthHandler "github.com/seeker014/SilentRoom/internal/presentation/handler/health"
	liveHandler "github.com/seeker014/SilentRoom/internal/presentation/handler/live"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const requestTimeout = 60 * time.Second

// AuthenticatedFunc is called with the claims of every authenticated request.
type AuthenticatedFunc func(claims *auth.Claims)

type Application struct {
	config          configs.Config
	chatsHandler    *chatsHandler.Handler
	liveHandler     *liveHandler.Handler
	healthHandler   *healthHandler.Handler
	tokens          *auth.TokenManager
	metrics         *metrics.Metrics
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
	onAuthenticated AuthenticatedFunc
	onShutdown      []func(ctx context.Context)
}

func NewApplication(
	config configs.Config,
	chatsHandler *chatsHandler.Handler,
	liveHandler *liveHandler.Handler,
	healthHandler *healthHandler.Handler,
	tokens *auth.TokenManager,
	metrics *metrics.Metrics,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
) *Application {
	return &Application{
		config:        config,
		chatsHandler:  chatsHandler,
		liveHandler:   liveHandler,
		healthHandler: healthHandler,
		tokens:        tokens,
		metrics:       metrics,
		logger:        logger,
		ratelimiter:   ratelimiter,
	}
}

// OnAuthenticated registers fn to run after a request's token validates.
func (app *Application) OnAuthenticated(fn AuthenticatedFunc) {
	app.onAuthenticated = fn
}

// OnShutdown registers fn to run once the HTTP server stopped accepting
// requests. Hooks run in registration order.
func (app *Application) OnShutdown(fn func(ctx context.Context)) {
	app.onShutdown = append(app.onShutdown, fn)
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)
	r.Use(app.enableCors)

	r.Handle("/metrics", app.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(app.rateLimiterMiddleware)

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)

		// The live handler authenticates itself since browsers cannot set
		// headers on a WebSocket handshake.
		r.Get("/ws", app.liveHandler.ServeWS)

		r.Route("/chats", func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(app.authenticate)

			r.Get("/conversations/{userId}", app.chatsHandler.ListConversationsHandler)
			r.Get("/{partnerId}", app.chatsHandler.GetMessagesHandler)
			r.Post("/{partnerId}", app.chatsHandler.SendMessageHandler)
		})
	})

	return otelhttp.NewHandler(r, "silentroom.http",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/metrics" }),
	)
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})
		app.healthHandler.SetHealthy(false)

		err := srv.Shutdown(ctx)
		for _, fn := range app.onShutdown {
			fn(ctx)
		}
		shutdown <- err
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
