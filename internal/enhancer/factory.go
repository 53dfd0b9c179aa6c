package enhancer

import "fmt"

// New constructs the configured Enhancer provider. apiKey/model/baseURL
// are interpreted per provider; unused fields for a given provider are
// ignored.
func New(provider, apiKey, model, baseURL string) (Enhancer, error) {
	switch provider {
	case "", "none":
		return None{}, nil
	case "openai":
		return NewOpenAI(apiKey, model), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOllama(baseURL, model), nil
	case "gemini":
		return NewGemini(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown enhancer provider %q", provider)
	}
}
