package enhancer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoneIsIdentity(t *testing.T) {
	e, err := New("none", "", "", "")
	require.NoError(t, err)
	out, err := e.Enhance(context.Background(), "hello world", "chat")
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "none", e.Provider())
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	_, err := New("bogus", "", "", "")
	require.Error(t, err)
}

func TestFactoryOllamaDefaultsBaseURL(t *testing.T) {
	e, err := New("ollama", "", "llama3", "")
	require.NoError(t, err)
	assert.Equal(t, "ollama", e.Provider())
}

func TestFactoryOpenAIProvider(t *testing.T) {
	e, err := New("openai", "sk-test", "gpt-4o-mini", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", e.Provider())
}

func TestFactoryGeminiProvider(t *testing.T) {
	e, err := New("gemini", "key", "gemini-1.5-flash", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini", e.Provider())
}
