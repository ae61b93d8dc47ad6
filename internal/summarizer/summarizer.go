// Package summarizer turns a composed briefing into a bias narrative by way of
// a single chat completion.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	SystemInstruction = "You are an experienced futures trader. Return a concise pre-market bias for ES and NQ with key levels."

	DefaultMaxTokens   = 220
	DefaultTemperature = 0.4
)

// ErrMissingKey is reported when no LLM credential was resolved.
var ErrMissingKey = errors.New("missing API key")

// Reason classifies how a narrative was produced.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonMissingKey    Reason = "missing_key"
	ReasonProviderError Reason = "provider_error"
)

// Narrative is either the generated bias text or a user-facing diagnostic.
type Narrative struct {
	Text   string `json:"text"`
	Reason Reason `json:"reason,omitempty"`
}

// Failed reports whether Text is a diagnostic rather than model output.
func (n Narrative) Failed() bool {
	return n.Reason != ReasonNone
}

// CompletionRequest is one system+user chat turn.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer issues exactly one completion request per call.
type Completer interface {
	Name() string
	Complete(ctx context.Context, apiKey string, req CompletionRequest) (string, error)
}

// Options tune the summarizer.
type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// KeyName is the credential label shown when the key is missing.
	KeyName string
}

// Summarizer wraps a Completer with the fixed trader prompt.
type Summarizer struct {
	completer Completer
	opts      Options
	logger    zerolog.Logger
}

// New builds a Summarizer around completer.
func New(completer Completer, opts Options, logger zerolog.Logger) *Summarizer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature < 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.KeyName == "" {
		opts.KeyName = "LLM API key"
	}
	return &Summarizer{
		completer: completer,
		opts:      opts,
		logger:    logger.With().Str("component", "summarizer").Str("provider", completer.Name()).Logger(),
	}
}

// Summarize never returns an error; failures come back as a diagnostic
// narrative.
func (s *Summarizer) Summarize(ctx context.Context, briefing, model, apiKey string) Narrative {
	if strings.TrimSpace(apiKey) == "" {
		s.logger.Warn().Msg("llm key missing; skipping completion")
		return Narrative{
			Text:   fmt.Sprintf("%s: %s is not set.", ErrMissingKey, s.opts.KeyName),
			Reason: ReasonMissingKey,
		}
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, apiKey, CompletionRequest{
		Model:       model,
		System:      SystemInstruction,
		User:        briefing,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("model", model).Msg("completion failed")
		return Narrative{
			Text:   fmt.Sprintf("Error from %s: %v", s.completer.Name(), err),
			Reason: ReasonProviderError,
		}
	}

	s.logger.Debug().Str("model", model).Dur("took", time.Since(start)).Int("chars", len(text)).Msg("completion received")
	return Narrative{Text: strings.TrimSpace(text)}
}
