package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcv-backend/internal/shared/config"
)

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestDoReturnsBodyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	body, err := Do(srv.Client(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDoMapsNon2xxToRequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	_, err = Do(srv.Client(), req)

	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusInternalServerError, rf.StatusCode)
	assert.Equal(t, "boom", rf.Body)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestDoMapsTransportFailure(t *testing.T) {
	cause := errors.New("connection refused")
	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	_, err = Do(failingDoer{err: cause}, req)

	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 0, rf.StatusCode)
	assert.ErrorIs(t, err, cause)
}

func TestNewClientAddsClientCredentialsToken(t *testing.T) {
	var tokenCalls atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := NewClient(context.Background(), config.OAuthConfig{
		TokenURL:     tokenSrv.URL,
		ClientID:     "agentcv",
		ClientSecret: "secret",
	})
	req, err := http.NewRequest(http.MethodPost, api.URL, nil)
	require.NoError(t, err)
	_, err = Do(client, req)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestNewClientWithoutOAuthHasNoTimeout(t *testing.T) {
	client := NewClient(context.Background(), config.OAuthConfig{})
	assert.Zero(t, client.Timeout)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", 299) + "é" + "tail"
	got := truncate(body, 300)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 299), got)

	assert.Equal(t, "short", truncate("  short  ", 300))
}
