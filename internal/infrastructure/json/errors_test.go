package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seeker014/SilentRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		internal bool
	}{
		{domain.ErrEmptyBody, http.StatusBadRequest, false},
		{fmt.Errorf("%w: room", domain.ErrAuthorization), http.StatusForbidden, false},
		{domain.ErrConversationMissing, http.StatusNotFound, false},
		{fmt.Errorf("%w: disk full", domain.ErrPersistence), http.StatusInternalServerError, true},
		{errors.New("boom"), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		internal := WriteDomainError(rec, tt.err)

		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.Equal(t, tt.internal, internal, tt.err.Error())

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusText(tt.status), resp.Error)
	}
}

func TestRead(t *testing.T) {
	var dst struct {
		Body string `json:"body"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":"hi"}`))
	require.NoError(t, Read(r, &dst))
	assert.Equal(t, "hi", dst.Body)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.Error(t, Read(r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	assert.Error(t, Read(r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":"a"}{"body":"b"}`))
	assert.Error(t, Read(r, &dst))
}
