package enhancer

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI fronts both the openai provider and the OpenAI-compatible ollama
// provider (via BaseURL override), since the go-openai client speaks the
// same wire protocol both backends expose.
type OpenAI struct {
	client   *openai.Client
	model    string
	provider string
}

// NewOpenAI constructs a client for the "openai" provider.
func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{client: openai.NewClient(apiKey), model: model, provider: "openai"}
}

// NewOllama constructs a client against an Ollama instance's
// OpenAI-compatible endpoint.
func NewOllama(baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, provider: "ollama"}
}

func (o *OpenAI) Provider() string { return o.provider }

func (o *OpenAI) Enhance(ctx context.Context, text, profileHint string) (string, error) {
	prompt := fmt.Sprintf(
		"Clean up this %s transcript: fix obvious transcription errors, improve punctuation, "+
			"but preserve the speaker's meaning and wording as closely as possible. "+
			"Return only the cleaned text, nothing else.\n\n%s", profileHint, text)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s enhance request failed: %w", o.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s enhance returned no choices", o.provider)
	}
	return resp.Choices[0].Message.Content, nil
}
