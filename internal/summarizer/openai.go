package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI completes through the chat completions endpoint.
type OpenAI struct {
	baseURL string
}

// NewOpenAI returns the OpenAI completer; an empty baseURL uses the SDK default.
func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: baseURL}
}

func (o *OpenAI) Name() string { return "openai" }

// Complete builds a client per call so the key is never held between runs.
func (o *OpenAI) Complete(ctx context.Context, apiKey string, req CompletionRequest) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	client := openai.NewClient(opts...)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAI)(nil)
