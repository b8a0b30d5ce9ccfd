package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleai/spindle/pkg/config"
)

func TestHTTPClientRequestShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Why did..."}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "llama-2", "secret", time.Second)
	text, err := c.Complete(context.Background(), "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "Why did...", text)

	assert.Equal(t, "llama-2", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, Temperature, got.Temperature)
	assert.Equal(t, MaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: SystemPrompt}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "tell me a joke"}, got.Messages[1])
}

func TestHTTPClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		noText  bool
		errPart string
	}{
		{name: "malformed json", status: http.StatusOK, body: `{not json`, errPart: "unmarshal"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, noText: true},
		{name: "missing message", status: http.StatusOK, body: `{"choices":[{}]}`, noText: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, errPart: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, "", "", time.Second).Complete(context.Background(), "hi")
			require.Error(t, err)
			if tt.noText {
				assert.ErrorIs(t, err, ErrNoCompletion)
				return
			}
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestHTTPClientUnconfigured(t *testing.T) {
	_, err := NewHTTPClient("", "", "", 0).Complete(context.Background(), "hi")
	require.Error(t, err)
}

type stubCompleter struct {
	text string
	err  error
}

func (s stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

func TestFallbackAnswer(t *testing.T) {
	ctx := context.Background()

	text, err := NewFallback(stubCompleter{text: "Why did..."}, nil).Answer(ctx, "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "Why did...", text)

	text, err = NewFallback(stubCompleter{err: errors.New("connection refused")}, nil).Answer(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, "[Error: connection refused]", text)

	text, err = NewFallback(stubCompleter{err: ErrNoCompletion}, nil).Answer(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, NoResponseMessage, text)

	text, err = NewFallback(nil, nil).Answer(ctx, "x")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(text, "[Error:"))
}

func TestFallbackUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFallback(NewHTTPClient(url, "", "", time.Second), nil)
	text, err := f.Answer(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(text, "[Error:"), text)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(context.Background(), config.LLMConfig{Provider: "openai", URL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, c)

	_, err = New(context.Background(), config.LLMConfig{Provider: "gemini"})
	require.Error(t, err, "gemini needs an api key")

	_, err = New(context.Background(), config.LLMConfig{Provider: "bogus"})
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}
