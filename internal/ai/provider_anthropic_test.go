package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAnthropicProviderSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m",` +
			`"content":[{"type":"text","text":"{\"title\":"},{"type":"text","text":"\"T\"}"}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider("secret", "m", option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	text, err := p.Send(context.Background(), Request{System: "sys", Prompt: "hi", Temperature: 0.5, MaxTokens: 1700})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"T"}`, text)

	assert.Equal(t, "m", got["model"])
	assert.Equal(t, float64(1700), got["max_tokens"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.NotEmpty(t, got["system"])
}

func TestAnthropicProviderRateLimitIsStatusError(t *testing.T) {
	srv, calls := newAnthropicTestServer(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)

	p, err := NewAnthropicProvider("k", "m", option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = p.Send(context.Background(), Request{Prompt: "hi", MaxTokens: 10})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.True(t, isTransient(err))
	// SDK retries are off; Client owns every attempt.
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnthropicProviderRateLimitRetriedByClient(t *testing.T) {
	srv, calls := newAnthropicTestServer(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)

	p, err := NewAnthropicProvider("k", "m", option.WithBaseURL(srv.URL))
	require.NoError(t, err)
	c, slept := newTestClient(t, p)

	_, err = c.Complete(context.Background(), "", "hi", 10)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, be.Transient)
	assert.Equal(t, http.StatusTooManyRequests, be.StatusCode)
	assert.Equal(t, 3, be.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *slept, 2)
}

func TestAnthropicProviderUnauthorizedIsFatal(t *testing.T) {
	srv, calls := newAnthropicTestServer(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)

	p, err := NewAnthropicProvider("k", "m", option.WithBaseURL(srv.URL))
	require.NoError(t, err)
	c, slept := newTestClient(t, p)

	_, err = c.Complete(context.Background(), "", "hi", 10)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.False(t, be.Transient)
	assert.Equal(t, http.StatusUnauthorized, be.StatusCode)
	assert.Equal(t, 1, be.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *slept)
}
