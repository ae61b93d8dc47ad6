package summarizer

import "fmt"

// Provider names accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// NewCompleter selects a completer by provider name.
func NewCompleter(provider, baseURL string) (Completer, error) {
	switch provider {
	case "", ProviderOpenAI:
		return NewOpenAI(baseURL), nil
	case ProviderAnthropic:
		return NewAnthropic(baseURL), nil
	case ProviderGemini:
		return NewGemini(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// KeyEnvVar is the environment variable holding the key for provider.
func KeyEnvVar(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
