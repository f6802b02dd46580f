package live

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/seeker014/SilentRoom/internal/infrastructure/auth"
	"github.com/seeker014/SilentRoom/internal/infrastructure/json"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
)

// Handler upgrades authenticated requests to the live protocol.
type Handler struct {
	gateway    *ws.Gateway
	dispatcher *ws.Dispatcher
	tokens     *auth.TokenManager
	cookieName string
	upgrader   websocket.Upgrader
	logger     logging.Logger
}

func NewHandler(
	gateway *ws.Gateway,
	dispatcher *ws.Dispatcher,
	tokens *auth.TokenManager,
	cookieName string,
	allowedOrigins []string,
	logger logging.Logger,
) *Handler {
	return &Handler{
		gateway:    gateway,
		dispatcher: dispatcher,
		tokens:     tokens,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger,
	}
}

// ServeWS authenticates before upgrading so a rejected client gets a plain
// 401 instead of a socket that closes immediately.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Validate(auth.FromRequest(r, h.cookieName, true))
	if err != nil {
		json.WriteUnauthorizedError(w)
		return
	}

	client, err := h.gateway.Connect(claims.ParticipantID)
	if err != nil {
		json.WriteValidationError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.gateway.Disconnect(client)
		h.logger.Warn(logging.WebSocket, logging.Connection, "upgrade failed", map[logging.ExtraKey]any{
			logging.ParticipantID: claims.ParticipantID,
			logging.ErrorMessage:  err.Error(),
		})
		return
	}

	h.dispatcher.Serve(conn, client)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		// Same-origin requests are always fine.
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
