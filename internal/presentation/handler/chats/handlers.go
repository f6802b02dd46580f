package chats

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/seeker014/SilentRoom/internal/application/chat"
	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/seeker014/SilentRoom/internal/infrastructure/auth"
	"github.com/seeker014/SilentRoom/internal/infrastructure/json"
	"github.com/seeker014/SilentRoom/internal/infrastructure/logging"
	"github.com/seeker014/SilentRoom/internal/infrastructure/validate"
)

// Handler serves the history boundary. Every route expects the auth
// middleware to have put the caller's claims in the request context.
type Handler struct {
	service    chat.ChatService
	aggregator chat.ConversationAggregator
	identity   domain.IdentityResolver
	logger     logging.Logger
}

func NewHandler(service chat.ChatService, aggregator chat.ConversationAggregator, identity domain.IdentityResolver, logger logging.Logger) *Handler {
	return &Handler{
		service:    service,
		aggregator: aggregator,
		identity:   identity,
		logger:     logger,
	}
}

// GetMessagesHandler returns the conversation with partnerId in append order,
// each message carrying its sender's nickname.
func (h *Handler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	participantID := auth.ParticipantFrom(r.Context())
	if participantID == "" {
		json.WriteUnauthorizedError(w)
		return
	}

	msgs, err := h.service.History(r.Context(), participantID, chi.URLParam(r, "partnerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	nicknames := make(map[string]string, 2)
	out := make([]historyMessage, 0, len(msgs))
	for _, msg := range msgs {
		name, ok := nicknames[msg.SenderID]
		if !ok {
			name = h.nickname(r.Context(), msg.SenderID)
			nicknames[msg.SenderID] = name
		}
		out = append(out, historyMessage{Message: msg, SenderNickname: name})
	}

	json.Write(w, http.StatusOK, out)
}

// nickname resolves a sender's display name. The history is still served
// when the identity backend cannot answer.
func (h *Handler) nickname(ctx context.Context, participantID string) string {
	name, err := h.identity.ResolveDisplayName(ctx, participantID)
	if err == nil {
		return name
	}
	if !errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn(logging.RequestResponse, logging.Identity, "sender nickname unavailable", map[logging.ExtraKey]any{
			logging.ParticipantID: participantID,
			logging.ErrorMessage:  err.Error(),
		})
	}
	return ""
}

// SendMessageHandler durably stores a message for partnerId. Live delivery
// happens over the WebSocket; this route only persists.
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	participantID := auth.ParticipantFrom(r.Context())
	if participantID == "" {
		json.WriteUnauthorizedError(w)
		return
	}

	var req sendMessageRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteBadRequestError(w, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	res, err := h.service.SendMessage(r.Context(), participantID, chi.URLParam(r, "partnerId"), req.Body, req.ClientMsgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, res)
}

// ListConversationsHandler returns the inbox of userId, which must be the
// caller.
func (h *Handler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	participantID := auth.ParticipantFrom(r.Context())
	if participantID == "" {
		json.WriteUnauthorizedError(w)
		return
	}

	userID := chi.URLParam(r, "userId")
	if userID != participantID {
		json.WriteError(w, http.StatusForbidden, domain.ErrAuthorization, "You can only list your own conversations")
		return
	}

	summaries, err := h.aggregator.ListConversations(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, summaries)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if json.WriteDomainError(w, err) {
		h.logger.Error(logging.RequestResponse, logging.Persistence, "request failed", map[logging.ExtraKey]any{
			logging.Path:         r.URL.Path,
			logging.Method:       r.Method,
			logging.ErrorMessage: err.Error(),
		})
	}
}
