package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHistoryServer(t *testing.T, handler http.HandlerFunc) *HTTPHistory {
	t.Helper()

	r := chi.NewRouter()
	r.HandleFunc("/api/chats/{partnerId}", handler)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return NewHTTPHistory(srv.URL+"/", "tok", srv.Client())
}

func TestHTTPHistory_ListMessages(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := newHistoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "bob", chi.URLParam(r, "partnerId"))

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "m1", "clientMsgId": "c1", "senderId": "bob", "body": "hi", "createdAt": at},
			{"id": "m2", "senderId": "alice", "body": "hey", "createdAt": at.Add(time.Second)},
		})
	})

	msgs, err := h.ListMessages(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{ID: "m1", ClientMsgID: "c1", SenderID: "bob", Body: "hi", Timestamp: at}, msgs[0])
	assert.Equal(t, "bob", msgs[1].ReceiverID)
}

func TestHTTPHistory_Append(t *testing.T) {
	h := newHistoryServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req appendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Body)
		assert.Equal(t, "c-1", req.ClientMsgID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"conversationId": "conv-1",
			"message":        map[string]any{"id": "m1", "clientMsgId": "c-1", "senderId": "alice", "body": "hello"},
		})
	})

	msg, err := h.Append(context.Background(), "bob", "hello", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c-1", msg.ClientMsgID)
	assert.Equal(t, "bob", msg.ReceiverID)
}

func TestHTTPHistory_MapsStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnauthorized, ErrAuthorization},
		{http.StatusForbidden, ErrAuthorization},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusInternalServerError, ErrPersistence},
		{http.StatusBadGateway, ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			h := newHistoryServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"x","message":"details"}`))
			})

			_, err := h.Append(context.Background(), "bob", "hello", "")
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "details")
		})
	}
}

func TestHTTPHistory_UnreachableServerIsPersistenceError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPHistory(url, "tok", nil).ListMessages(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrPersistence)
}
