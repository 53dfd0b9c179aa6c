// Package pipeline orders segments through a Recognizer and merges their
// transcriptions. It knows nothing about sessions, jobs, or HTTP. Ordering
// discipline, per-segment error isolation and bounded concurrency are
// adapted from the teacher's internal/pipeline.Worker.processSegment and
// TranscriptionQueue dispatch loop.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/errs"
	"github.com/voicebridge/asr-server/internal/recognizer"
	"github.com/voicebridge/asr-server/internal/segmenter"
)

// ProgressSink receives (current, total, message, partial_text) after each
// segment completes, in index order.
type ProgressSink func(current, total int, message, partialText string)

// Transcription is the tuple the Recognizer produces per segment.
type Transcription struct {
	SegmentIndex int
	Text         string
	Language     string
	Speaker      string
	Words        []recognizer.WordTiming
	Err          error
}

// Result is the orchestrator's output for one invocation.
type Result struct {
	FinalTranscript string
	PerSegment      []Transcription
	MergeStats      MergeStats
}

// Orchestrator dispatches segments to a Recognizer in segment_index order,
// merging the resulting transcriptions with the configured strategy.
type Orchestrator struct {
	rec           *recognizer.Adapter
	concurrency   int
	mergeStrategy string
}

func NewOrchestrator(rec *recognizer.Adapter, concurrency int, mergeStrategy string) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{rec: rec, concurrency: concurrency, mergeStrategy: mergeStrategy}
}

// Run transcribes segs with up to o.concurrency segments in flight at
// once, but always emits progress (and builds the merged transcript) in
// segment_index order: out-of-order internal completions are buffered in
// results and released to the sink only once every earlier index is done.
// cancelled is polled between emitted segments; on observation the
// orchestrator stops and discards any buffered out-of-order results.
// mergeStrategy overrides the orchestrator's configured default when
// non-empty, so a caller can honor a per-request merge_strategy param
// (§6.2) without constructing a new Orchestrator per call.
func (o *Orchestrator) Run(ctx context.Context, segs []segmenter.Segment, languageHint, mergeStrategy string, sink ProgressSink, cancelled func() bool) (Result, error) {
	if mergeStrategy == "" {
		mergeStrategy = o.mergeStrategy
	}
	n := len(segs)
	if n == 0 {
		return Result{}, errs.New(errs.InvalidInput, "no segments to transcribe")
	}

	results := make([]Transcription, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	var failures int32

	for _, seg := range segs {
		seg := seg
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				results[seg.Index] = Transcription{SegmentIndex: seg.Index, Err: runCtx.Err()}
				close(done[seg.Index])
				return
			}
			defer func() { <-sem }()

			opts := recognizer.Options{Language: languageHint}
			res, err := o.rec.Transcribe(runCtx, seg.PCM, opts)
			if err != nil {
				atomic.AddInt32(&failures, 1)
				logrus.WithError(err).WithField("segment_index", seg.Index).Warn("segment transcription failed, isolating")
				results[seg.Index] = Transcription{SegmentIndex: seg.Index, Err: err}
			} else {
				results[seg.Index] = Transcription{
					SegmentIndex: seg.Index,
					Text:         res.Text,
					Language:     res.Language,
					Speaker:      res.Speaker,
					Words:        res.Words,
				}
			}
			close(done[seg.Index])
		}()
	}

	var merged []string
	cancelledRun := false
	for i := 0; i < n; i++ {
		if cancelled != nil && cancelled() {
			cancelledRun = true
			cancelRun()
			break
		}
		<-done[i]
		t := results[i]
		if t.Err == nil {
			merged = append(merged, t.Text)
		}
		if sink != nil {
			sink(i+1, n, "segment complete", mergeSimple(merged))
		}
	}
	wg.Wait()

	if cancelledRun {
		return Result{}, errs.New(errs.InvalidState, "pipeline run cancelled")
	}

	if int(atomic.LoadInt32(&failures)) == n {
		return Result{}, errs.New(errs.RecognizerFailed, "all %d segments failed transcription", n)
	}

	final, stats := Merge(segs, results, mergeStrategy)
	return Result{FinalTranscript: final, PerSegment: results, MergeStats: stats}, nil
}
