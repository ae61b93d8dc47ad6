package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() CompletionRequest {
	return CompletionRequest{
		Model:       "gpt-3.5-turbo",
		System:      SystemInstruction,
		User:        "Overnight Futures:",
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}

func TestOpenAICompleteSendsChatRequest(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1760000000,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Bullish bias for ES and NQ; watch 4480 support"}}]
		}`))
	}))
	defer srv.Close()

	text, err := NewOpenAI(srv.URL+"/").Complete(context.Background(), "sk-test", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Bullish bias for ES and NQ; watch 4480 support", text)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-3.5-turbo", body["model"])
	assert.EqualValues(t, 220, body["max_tokens"])
	assert.EqualValues(t, 0.4, body["temperature"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, SystemInstruction, messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "Overnight Futures:", messages[1].(map[string]any)["content"])
}

func TestOpenAICompleteDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL+"/").Complete(context.Background(), "sk-test", sampleRequest())
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestAnthropicCompleteSendsMessagesRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Neutral; ES pivot 4495"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	req := sampleRequest()
	req.Model = "claude-haiku-4-5"
	text, err := NewAnthropic(srv.URL+"/").Complete(context.Background(), "sk-ant", req)
	require.NoError(t, err)
	assert.Equal(t, "Neutral; ES pivot 4495", text)

	assert.Equal(t, "claude-haiku-4-5", body["model"])
	assert.EqualValues(t, 220, body["max_tokens"])
	assert.EqualValues(t, 0.4, body["temperature"])
	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, SystemInstruction, system[0].(map[string]any)["text"])
}
