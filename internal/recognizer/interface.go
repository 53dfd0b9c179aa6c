// Package recognizer fronts the Recognizer capability: a pluggable backend
// that turns canonical PCM samples into text. The contract mirrors the
// teacher's transcriber.Transcriber capability abstraction, generalized
// from Discord voice clips to arbitrary ASR segments.
package recognizer

import (
	"context"
	"time"
)

// Recognizer is the capability the pipeline orchestrator depends on. It
// knows nothing about sessions, jobs, or HTTP; it maps PCM to text.
type Recognizer interface {
	// Transcribe runs inference over one segment of canonical PCM
	// (16-bit signed, 16kHz, mono, little-endian host order).
	Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error)

	// IsReady reports whether the backend has completed initialization
	// and is able to serve requests.
	IsReady() bool

	// Reentrant reports whether concurrent Transcribe calls are safe.
	// The Adapter serializes calls behind a mutex when false.
	Reentrant() bool

	// Warmup performs first-use initialization ahead of the first real
	// request, so request latency does not pay the init cost.
	Warmup(ctx context.Context) error

	// Close releases any resources (subprocess handles, temp files).
	Close() error
}

// Options carries per-call context for a Transcribe invocation.
type Options struct {
	Language        string // "auto" or an ISO code; see spec §6.2
	PreviousContext string // prior segment's merged text, used as a prompt
}

// WordTiming is optional per-word timing passed through opaquely.
type WordTiming struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float32
}

// Result is the uniform output shape every backend normalizes into.
type Result struct {
	Text     string
	Language string
	Speaker  string
	Words    []WordTiming
	Duration time.Duration
}
