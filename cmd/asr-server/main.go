package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voicebridge/asr-server/internal/config"
	"github.com/voicebridge/asr-server/internal/enhancer"
	"github.com/voicebridge/asr-server/internal/feedback"
	"github.com/voicebridge/asr-server/internal/httpapi"
	"github.com/voicebridge/asr-server/internal/jobqueue"
	"github.com/voicebridge/asr-server/internal/pipeline"
	"github.com/voicebridge/asr-server/internal/postprocess"
	"github.com/voicebridge/asr-server/internal/ratelimit"
	"github.com/voicebridge/asr-server/internal/recognizer"
	"github.com/voicebridge/asr-server/internal/segmenter"
	"github.com/voicebridge/asr-server/internal/session"
	"github.com/voicebridge/asr-server/internal/transcribe"
)

const (
	exitOK              = 0
	exitConfigError     = 1
	exitBindError       = 2
	exitModelInitFailed = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Error("failed to load configuration")
		return exitConfigError
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	for _, dir := range []string{"models", "tmp", "logs"} {
		if err := os.MkdirAll(filepath.Join(cfg.RuntimeDir, dir), 0o755); err != nil {
			logrus.WithError(err).WithField("dir", dir).Error("failed to create runtime directory")
			return exitConfigError
		}
	}

	backend, err := newRecognizerBackend(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to construct recognizer backend")
		return exitModelInitFailed
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	adapter := recognizer.NewAdapter(backend, recognizerWorkers(cfg))

	enh, err := enhancer.New(cfg.EnhancerProvider, cfg.EnhancerAPIKey, cfg.EnhancerModel, cfg.EnhancerBaseURL)
	if err != nil {
		logrus.WithError(err).Error("failed to construct enhancer")
		return exitConfigError
	}

	orch := pipeline.NewOrchestrator(adapter, cfg.RecognizerWorkers, pipeline.MergeSimple)
	dict := postprocess.NewDictionary()
	events := feedback.NewEventBus(256)

	segCfg := segmenter.DefaultConfig()
	segCfg.MaxChunkDurationS = float64(cfg.SegmenterMaxChunkSec)

	svc := transcribe.New(orch, enh, dict, events).WithSegmenterConfig(segCfg)

	sessions := session.NewManager(svc, session.Config{SessionTTL: cfg.SessionTTL})
	sessions.StartReaper(time.Minute)

	jobs := jobqueue.New(transcribe.JobRunner{Service: svc}, jobqueue.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTTL:            cfg.JobTTL,
	}).WithEvents(events)
	jobs.StartReaper(10 * time.Minute)

	limiter := ratelimit.New(httpapi.DefaultQuotas(), time.Minute)

	srv := httpapi.NewServer(cfg.ListenAddr, httpapi.Deps{
		Sessions:   sessions,
		Jobs:       jobs,
		Dictionary: dict,
		Service:    svc,
		Events:     events,
		Limiter:    limiter,
		APIKey:     cfg.APIKey,
		AdminKey:   cfg.AuthAdmin,
		Version:    version(),
	})

	logrus.WithFields(logrus.Fields{
		"addr":               cfg.ListenAddr,
		"recognizer_backend": cfg.RecognizerBackend,
		"enhancer_provider":  cfg.EnhancerProvider,
	}).Info("asr-server starting")

	if err := srv.Start(ctx); err != nil {
		logrus.WithError(err).Error("http server exited with error")
		sessions.Close()
		jobs.Close()
		events.Stop()
		return exitBindError
	}

	logrus.Info("shutting down")
	sessions.Close()
	jobs.Close()
	events.Stop()
	return exitOK
}

func recognizerWorkers(cfg *config.Config) int {
	if cfg.RecognizerReentrant && cfg.RecognizerWorkers > 0 {
		return cfg.RecognizerWorkers
	}
	return 1
}

func newRecognizerBackend(cfg *config.Config) (recognizer.Recognizer, error) {
	switch cfg.RecognizerBackend {
	case "exec-whisper":
		return recognizer.NewWhisperExec(cfg.WhisperModelPath, filepath.Join(cfg.RuntimeDir, "tmp"), false)
	case "exec-whisper-gpu":
		return recognizer.NewWhisperExec(cfg.WhisperModelPath, filepath.Join(cfg.RuntimeDir, "tmp"), true)
	case "faster-whisper":
		return recognizer.NewFasterWhisper(cfg.WhisperModelPath)
	case "mock":
		return recognizer.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.RecognizerBackend)
	}
}

func version() string {
	if v := os.Getenv("ASR_SERVER_VERSION"); v != "" {
		return v
	}
	return "dev"
}
