package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	calls int
	last  CompletionRequest
	key   string
	reply string
	err   error
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, apiKey string, req CompletionRequest) (string, error) {
	f.calls++
	f.key = apiKey
	f.last = req
	return f.reply, f.err
}

func TestSummarizeMissingKeyMakesNoCall(t *testing.T) {
	fake := &fakeCompleter{reply: "unused"}
	s := New(fake, Options{KeyName: "OPENAI_API_KEY"}, zerolog.Nop())

	for _, key := range []string{"", "   "} {
		n := s.Summarize(context.Background(), "ctx", "gpt-3.5-turbo", key)
		assert.True(t, n.Failed())
		assert.Equal(t, ReasonMissingKey, n.Reason)
		assert.Contains(t, n.Text, "missing API key")
		assert.Contains(t, n.Text, "OPENAI_API_KEY")
	}
	assert.Zero(t, fake.calls)
}

func TestSummarizeSuccessTrimsText(t *testing.T) {
	fake := &fakeCompleter{reply: "\n  Bullish bias for ES and NQ; watch 4480 support  \n"}
	s := New(fake, Options{MaxTokens: DefaultMaxTokens, Temperature: DefaultTemperature}, zerolog.Nop())

	n := s.Summarize(context.Background(), "Date: today", "gpt-3.5-turbo", "sk-test")
	require.False(t, n.Failed())
	assert.Equal(t, "Bullish bias for ES and NQ; watch 4480 support", n.Text)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "sk-test", fake.key)
	assert.Equal(t, CompletionRequest{
		Model:       "gpt-3.5-turbo",
		System:      SystemInstruction,
		User:        "Date: today",
		MaxTokens:   220,
		Temperature: 0.4,
	}, fake.last)
}

func TestSummarizeProviderErrorIsDiagnostic(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("429 rate limited")}
	s := New(fake, Options{}, zerolog.Nop())

	n := s.Summarize(context.Background(), "ctx", "m", "key")
	assert.Equal(t, ReasonProviderError, n.Reason)
	assert.Equal(t, "Error from fake: 429 rate limited", n.Text)
	assert.Equal(t, 1, fake.calls, "provider errors are not retried")
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(&fakeCompleter{}, Options{Temperature: -1}, zerolog.Nop())
	assert.Equal(t, DefaultMaxTokens, s.opts.MaxTokens)
	assert.Equal(t, DefaultTemperature, s.opts.Temperature)
}

func TestNewCompleter(t *testing.T) {
	for provider, name := range map[string]string{
		"":          "openai",
		"openai":    "openai",
		"anthropic": "anthropic",
		"gemini":    "gemini",
	} {
		c, err := NewCompleter(provider, "")
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	_, err := NewCompleter("mistral", "")
	assert.Error(t, err)

	assert.Equal(t, "OPENAI_API_KEY", KeyEnvVar("openai"))
	assert.Equal(t, "ANTHROPIC_API_KEY", KeyEnvVar("anthropic"))
	assert.Equal(t, "GEMINI_API_KEY", KeyEnvVar("gemini"))
}
