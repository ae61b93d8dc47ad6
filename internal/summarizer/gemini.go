package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini completes through the Gemini API generateContent call.
type Gemini struct {
	baseURL string
}

func NewGemini(baseURL string) *Gemini {
	return &Gemini{baseURL: baseURL}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, apiKey string, req CompletionRequest) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	temperature := float32(req.Temperature)
	result, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.User), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		MaxOutputTokens:   int32(req.MaxTokens),
		Temperature:       &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("no response from gemini")
	}
	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("no response from gemini")
	}
	return text.String(), nil
}

var _ Completer = (*Gemini)(nil)
