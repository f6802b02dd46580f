package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPHistory talks to the REST history boundary of a SilentRoom server.
type HTTPHistory struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPHistory authenticates every request with token as a bearer
// credential. A nil client uses a client with a 10 second timeout.
func NewHTTPHistory(baseURL, token string, client *http.Client) *HTTPHistory {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPHistory{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type storedMessage struct {
	ID          string    `json:"id"`
	ClientMsgID string    `json:"clientMsgId"`
	SenderID    string    `json:"senderId"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

type appendRequest struct {
	Body        string `json:"body"`
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

type appendResponse struct {
	ConversationID string        `json:"conversationId"`
	Message        storedMessage `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *HTTPHistory) ListMessages(ctx context.Context, partnerID string) ([]Message, error) {
	var stored []storedMessage
	if err := h.do(ctx, http.MethodGet, partnerID, nil, http.StatusOK, &stored); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(stored))
	for _, s := range stored {
		msgs = append(msgs, s.toMessage(partnerID))
	}
	return msgs, nil
}

func (h *HTTPHistory) Append(ctx context.Context, partnerID, body, clientMsgID string) (Message, error) {
	var resp appendResponse
	req := appendRequest{Body: body, ClientMsgID: clientMsgID}
	if err := h.do(ctx, http.MethodPost, partnerID, req, http.StatusCreated, &resp); err != nil {
		return Message{}, err
	}

	return resp.Message.toMessage(partnerID), nil
}

func (h *HTTPHistory) do(ctx context.Context, method, partnerID string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %w", ErrValidation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+"/api/chats/"+url.PathEscape(partnerID), body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrPersistence, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var e errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAuthorization, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrPersistence, resp.StatusCode, msg)
	}
}

// toMessage leaves ReceiverID empty for messages from the partner since the
// caller's own id is not known here.
func (s storedMessage) toMessage(partnerID string) Message {
	var receiver string
	if s.SenderID != partnerID {
		receiver = partnerID
	}

	return Message{
		ID:          s.ID,
		ClientMsgID: s.ClientMsgID,
		SenderID:    s.SenderID,
		ReceiverID:  receiver,
		Body:        s.Body,
		Timestamp:   s.CreatedAt,
	}
}
