package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/recognizer"
	"github.com/voicebridge/asr-server/internal/segmenter"
)

const (
	waitTimeout = time.Second
	waitTick    = time.Millisecond
)

type stubBackend struct {
	fail    map[int]bool
	callIdx int
}

func (s *stubBackend) Warmup(ctx context.Context) error { return nil }
func (s *stubBackend) IsReady() bool                     { return true }
func (s *stubBackend) Reentrant() bool                   { return true }
func (s *stubBackend) Close() error                      { return nil }
func (s *stubBackend) Transcribe(ctx context.Context, pcm []byte, opts recognizer.Options) (recognizer.Result, error) {
	idx := len(pcm) // use payload length to identify which segment called in, deterministic per test
	if s.fail != nil && s.fail[idx] {
		return recognizer.Result{}, errors.New("inference failed")
	}
	return recognizer.Result{Text: "seg"}, nil
}

func segsOfLens(lens ...int) []segmenter.Segment {
	segs := make([]segmenter.Segment, len(lens))
	for i, l := range lens {
		segs[i] = segmenter.Segment{Index: i, PCM: make([]byte, l)}
	}
	return segs
}

func TestOrchestratorSimpleMerge(t *testing.T) {
	backend := &stubBackend{}
	adapter := recognizer.NewAdapter(backend, 2)
	require.Eventually(t, adapter.IsReady, waitTimeout, waitTick)

	o := NewOrchestrator(adapter, 2, MergeSimple)
	segs := segsOfLens(10, 20, 30)

	var progressCalls int
	res, err := o.Run(context.Background(), segs, "", "", func(current, total int, message, partial string) {
		progressCalls++
		assert.LessOrEqual(t, current, total)
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "seg seg seg", res.FinalTranscript)
	assert.Equal(t, 3, progressCalls)
}

func TestOrchestratorIsolatesPerSegmentFailure(t *testing.T) {
	backend := &stubBackend{fail: map[int]bool{20: true}}
	adapter := recognizer.NewAdapter(backend, 2)
	require.Eventually(t, adapter.IsReady, waitTimeout, waitTick)

	o := NewOrchestrator(adapter, 2, MergeSimple)
	segs := segsOfLens(10, 20, 30)

	res, err := o.Run(context.Background(), segs, "", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "seg seg", res.FinalTranscript)
	assert.NotNil(t, res.PerSegment[1].Err)
}

func TestOrchestratorAllSegmentsFailReportsRecognizerFailed(t *testing.T) {
	backend := &stubBackend{fail: map[int]bool{10: true, 20: true}}
	adapter := recognizer.NewAdapter(backend, 1)
	require.Eventually(t, adapter.IsReady, waitTimeout, waitTick)

	o := NewOrchestrator(adapter, 1, MergeSimple)
	segs := segsOfLens(10, 20)

	_, err := o.Run(context.Background(), segs, "", "", nil, nil)
	require.Error(t, err)
}

func TestOrchestratorCancelBetweenSegments(t *testing.T) {
	backend := &stubBackend{}
	adapter := recognizer.NewAdapter(backend, 1)
	require.Eventually(t, adapter.IsReady, waitTimeout, waitTick)

	o := NewOrchestrator(adapter, 1, MergeSimple)
	segs := segsOfLens(10, 20, 30)

	calls := 0
	cancelled := func() bool {
		calls++
		return calls > 1
	}

	_, err := o.Run(context.Background(), segs, "", "", nil, cancelled)
	require.Error(t, err)
}

func TestMergeOverlapTrimsDuplicateWords(t *testing.T) {
	segs := []segmenter.Segment{
		{Index: 0, Overlap: 0},
		{Index: 1, Overlap: 5},
	}
	results := []Transcription{
		{SegmentIndex: 0, Text: "the quick brown fox"},
		{SegmentIndex: 1, Text: "brown fox jumps over"},
	}
	merged, stats := Merge(segs, results, MergeOverlap)
	assert.Equal(t, "the quick brown fox jumps over", merged)
	assert.Equal(t, 1, stats.OverlapsResolved)
}

func TestMergeSimpleTrimsWhitespace(t *testing.T) {
	texts := []string{"  hello ", "", "world  "}
	assert.Equal(t, "hello world", mergeSimple(texts))
}
