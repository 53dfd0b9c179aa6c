package recognizer

import (
	"context"
	"fmt"
	"time"
)

// Mock returns canned transcripts without shelling out to any model binary,
// the same role the teacher's MockTranscriber plays in tests and local dev.
type Mock struct {
	FixedText string
	Delay     time.Duration
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Warmup(ctx context.Context) error { return nil }
func (m *Mock) IsReady() bool                    { return true }
func (m *Mock) Reentrant() bool                  { return true }
func (m *Mock) Close() error                     { return nil }

func (m *Mock) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	text := m.FixedText
	if text == "" {
		text = fmt.Sprintf("[mock transcript: %d bytes of audio]", len(pcm))
	}
	if opts.PreviousContext != "" {
		text = fmt.Sprintf("%s (continuing: %s)", text, opts.PreviousContext)
	}

	return Result{Text: text, Language: "en", Duration: 0}, nil
}
