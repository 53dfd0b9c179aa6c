// Package enhancer fronts the Enhancer capability: an optional LLM-backed
// text cleanup step invoked by the Post-Processor's advanced mode. The
// capability shape mirrors the recognizer package's Transcribe(ctx, ...)
// contract, generalized from audio-in/text-out to text-in/text-out.
package enhancer

import "context"

const MinEnhanceLength = 16

// Enhancer rewrites text given a profile hint (e.g. "coding", "chat").
// Implementations are best-effort: callers treat any error as "use the
// pre-enhancement text" and never propagate it as a fatal error.
type Enhancer interface {
	Enhance(ctx context.Context, text, profileHint string) (string, error)
	Provider() string
}

// None is the identity Enhancer, used when no provider is configured.
type None struct{}

func (None) Enhance(ctx context.Context, text, profileHint string) (string, error) { return text, nil }
func (None) Provider() string                                                      { return "none" }
