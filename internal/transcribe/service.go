// Package transcribe wires the Segmenter, Pipeline Orchestrator and
// Post-Processor into the two narrow interfaces the session manager and
// job queue depend on. No teacher file plays quite this role (the
// teacher's bot.go wires a single transcriber straight into its
// pipeline.Worker); this is newly authored glue, built the way the
// teacher's cmd/discord-voice-mcp/main.go composes its components: a
// single struct holding already-constructed collaborators, exposing the
// minimum surface each caller needs.
package transcribe

import (
	"context"
	"time"

	"github.com/voicebridge/asr-server/internal/enhancer"
	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/jobqueue"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/segmenter"
)

// Options carries the per-call overrides a caller (an HTTP handler, a WS
// session) may supply on top of the service's defaults.
type Options struct {
	SegmenterConfig segmenter.Config
	MergeStrategy   string
	PostprocessMode string
	Language        string
	AppHint         string

	// SessionID tags published feedback events, for callers (the
	// WebSocket handler) that need to correlate them back to a
	// connection. HTTP one-shot callers leave it empty.
	SessionID string
}

// Service runs one full transcription: segment, transcribe each segment
// in order, merge, then post-process. It satisfies both session.Pipeline
// and jobqueue.Runner so the session manager and the long-file job queue
// share one code path.
type Service struct {
	orchestrator *pipeline.Orchestrator
	processor    *postprocess.Processor
	dictionary   *postprocess.Dictionary
	events       *feedback.EventBus

	defaultSegmenter segmenter.Config
	defaultMerge     string
	defaultMode      string
}

func New(orch *pipeline.Orchestrator, enh enhancer.Enhancer, dict *postprocess.Dictionary, events *feedback.EventBus) *Service {
	return &Service{
		orchestrator:     orch,
		processor:        postprocess.NewProcessor(enh),
		dictionary:       dict,
		events:           events,
		defaultSegmenter: segmenter.DefaultConfig(),
		defaultMerge:     pipeline.MergeSimple,
		defaultMode:      postprocess.ModeStandard,
	}
}

// WithSegmenterConfig overrides the service's default segmenter tunables,
// for callers that load a non-default max-chunk-duration from config.
func (s *Service) WithSegmenterConfig(cfg segmenter.Config) *Service {
	s.defaultSegmenter = cfg
	return s
}

// Run implements session.Pipeline: it is called synchronously on session
// Stop with the session's fully accumulated audio, bounded by a 300 s
// timeout.
func (s *Service) Run(sessionID string, pcm []byte, appHint string) (string, error) {
	opts := s.optionsFor(appHint)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
	defer cancel()
	result, err := s.transcribe(ctx, sessionID, pcm, opts, func(current, total int, message string) {})
	if err != nil {
		s.publishError(sessionID, err)
		return "", err
	}
	return result, nil
}

// RunJob runs the same path for a long-file upload job; it is exposed
// through JobRunner so Service never needs a second Run method.
func (s *Service) RunJob(ctx context.Context, input jobqueue.Input, progress func(current, total int, message string), cancelled func() bool) (string, error) {
	opts := s.optionsFor(input.AppHint)
	if input.Language != "" {
		opts.Language = input.Language
	}
	return s.transcribeCancellable(ctx, "", input.PCM, opts, progress, cancelled)
}

// JobRunner adapts Service to jobqueue.Runner.
type JobRunner struct{ Service *Service }

func (r JobRunner) Run(ctx context.Context, input jobqueue.Input, progress func(current, total int, message string), cancelled func() bool) (string, error) {
	return r.Service.RunJob(ctx, input, progress, cancelled)
}

// RunWithOptions runs one transcription with explicit overrides, for
// callers (HTTP handlers) that accept strategy/merge_strategy/
// postprocess_mode/language as request parameters.
func (s *Service) RunWithOptions(ctx context.Context, pcm []byte, opts Options) (string, error) {
	return s.transcribeCancellable(ctx, opts.SessionID, pcm, opts, func(current, total int, message string) {}, func() bool { return false })
}

// RunWithOptionsCancellable is RunWithOptions with a cooperative cancel
// flag, for callers (the WebSocket handler) that must abort between
// segments on a client "stop".
func (s *Service) RunWithOptionsCancellable(ctx context.Context, pcm []byte, opts Options, cancelled func() bool) (string, error) {
	return s.transcribeCancellable(ctx, opts.SessionID, pcm, opts, func(current, total int, message string) {}, cancelled)
}

func (s *Service) optionsFor(appHint string) Options {
	return Options{
		SegmenterConfig: s.defaultSegmenter,
		MergeStrategy:   s.defaultMerge,
		PostprocessMode: s.defaultMode,
		Language:        "auto",
		AppHint:         appHint,
	}
}

// Processor exposes the post-processor for callers (the /api/postprocess/text
// handler) that operate on already-transcribed text directly.
func (s *Service) Processor() *postprocess.Processor { return s.processor }

// SegmenterConfigFor returns the service's default segmenter tunables
// with strategy substituted, for callers that accept a per-request
// strategy override.
func (s *Service) SegmenterConfigFor(strategy string) segmenter.Config {
	cfg := s.defaultSegmenter
	cfg.Strategy = strategy
	return cfg
}

func (s *Service) transcribe(ctx context.Context, sessionID string, pcm []byte, opts Options, progress func(current, total int, message string)) (string, error) {
	return s.transcribeCancellable(ctx, sessionID, pcm, opts, progress, func() bool { return false })
}

func (s *Service) transcribeCancellable(ctx context.Context, sessionID string, pcm []byte, opts Options, progress func(current, total int, message string), cancelled func() bool) (string, error) {
	start := time.Now()
	s.publishStarted(sessionID)

	segs, err := segmenter.Run(pcm, opts.SegmenterConfig)
	if err != nil {
		return "", err
	}
	s.publishReady(sessionID, len(segs))

	sink := func(current, total int, message, partial string) {
		progress(current, total, message)
		s.publishProgress(sessionID, current, total, message)
		s.publishSegmentComplete(sessionID, current, total, partial)
	}

	result, err := s.orchestrator.Run(ctx, segs, opts.Language, opts.MergeStrategy, sink, cancelled)
	if err != nil {
		return "", err
	}

	category := postprocess.CategoryFromAppHint(opts.AppHint)
	processed, _ := s.processor.Process(ctx, result.FinalTranscript, postprocess.Options{
		Mode:       opts.PostprocessMode,
		Profile:    postprocess.ProfileFor(category),
		Dictionary: s.dictionary,
	})

	s.publishComplete(sessionID, result.FinalTranscript, processed, len(segs), time.Since(start), opts.SegmenterConfig.Strategy, opts.MergeStrategy)
	return processed, nil
}

func (s *Service) publishStarted(sessionID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventStarted, SessionID: sessionID, Data: feedback.StartedData{SessionID: sessionID, Timestamp: time.Now()}})
}

func (s *Service) publishReady(sessionID string, totalSegments int) {
	if s.events == nil {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventReady, SessionID: sessionID, Data: feedback.ReadyData{SessionID: sessionID, Message: "segmentation complete"}})
	_ = totalSegments
}

func (s *Service) publishProgress(sessionID string, current, total int, message string) {
	if s.events == nil || total == 0 {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventProgress, SessionID: sessionID, Data: feedback.ProgressData{
		SessionID: sessionID, CurrentSegment: current, TotalSegments: total,
		ProgressPercent: float64(current) / float64(total) * 100, Message: message,
	}})
}

func (s *Service) publishSegmentComplete(sessionID string, current, total int, partial string) {
	if s.events == nil {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventSegmentComplete, SessionID: sessionID, Data: feedback.SegmentCompleteData{
		SessionID: sessionID, CurrentSegment: current, TotalSegments: total, TranscriptPart: partial,
	}})
}

func (s *Service) publishComplete(sessionID, final, processed string, totalSegments int, dur time.Duration, strategy, mergeStrategy string) {
	if s.events == nil {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventComplete, SessionID: sessionID, Data: feedback.CompleteData{
		SessionID: sessionID, FinalTranscript: final, ProcessedTranscript: processed,
		TotalSegments: totalSegments, Duration: dur, Strategy: strategy, MergeStrategy: mergeStrategy,
	}})
}

func (s *Service) publishError(sessionID string, err error) {
	if s.events == nil {
		return
	}
	s.events.Publish(feedback.Event{Type: feedback.EventError, SessionID: sessionID, Data: feedback.ErrorData{SessionID: sessionID, Message: err.Error()}})
}
