// Package config loads server configuration from environment variables and
// flags, the way cmd/asr-server's bootstrap does for every other component.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the fully-populated configuration value passed down from main.
type Config struct {
	ListenAddr string
	LogLevel   string

	APIKey    string // empty disables auth
	AuthAdmin string // separate key for dictionary admin endpoints; falls back to APIKey

	SessionTTL           time.Duration
	MaxSessionAudioSecs  int
	MaxConcurrentJobs    int
	JobTTL               time.Duration
	RecognizerBackend    string // "exec-whisper", "exec-whisper-gpu", "faster-whisper", "mock"
	WhisperModelPath     string
	RecognizerReentrant  bool
	RecognizerWorkers    int
	SegmenterMaxChunkSec int

	EnhancerProvider string // openai | gemini | ollama | none
	EnhancerAPIKey   string
	EnhancerModel    string
	EnhancerBaseURL  string // used by ollama / gemini REST client

	RuntimeDir string
}

// Load reads .env (if present) without overwriting variables already set,
// uses environment variables as the flag defaults, then parses flags: an
// explicit flag wins over the environment, which wins over .env.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	fs := flag.NewFlagSet("asr-server", flag.ContinueOnError)
	cfg := &Config{}

	fs.StringVar(&cfg.ListenAddr, "listen", envOr("ASR_LISTEN_ADDR", ":8090"), "HTTP/WS listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level")
	fs.StringVar(&cfg.APIKey, "api-key", envOr("ASR_API_KEY", ""), "API key required in X-API-Key header; empty disables auth")
	fs.StringVar(&cfg.AuthAdmin, "admin-key", envOr("ASR_ADMIN_KEY", ""), "API key for dictionary admin endpoints; falls back to api-key")

	fs.DurationVar(&cfg.SessionTTL, "session-ttl", envDurationOr("ASR_SESSION_TTL", 10*time.Minute), "session idle TTL before reaping")
	fs.IntVar(&cfg.MaxSessionAudioSecs, "max-session-audio-seconds", envIntOr("ASR_MAX_SESSION_AUDIO_SECONDS", 600), "per-session audio buffer cap in seconds (not enforced by the session manager)")
	fs.IntVar(&cfg.MaxConcurrentJobs, "max-concurrent-jobs", envIntOr("ASR_MAX_CONCURRENT_JOBS", 3), "max simultaneously processing jobs")
	fs.DurationVar(&cfg.JobTTL, "job-ttl", envDurationOr("ASR_JOB_TTL", 24*time.Hour), "completed job retention before reaping")

	fs.StringVar(&cfg.RecognizerBackend, "recognizer-backend", envOr("RECOGNIZER_BACKEND", "mock"), "exec-whisper | exec-whisper-gpu | faster-whisper | mock")
	fs.StringVar(&cfg.WhisperModelPath, "whisper-model", envOr("WHISPER_MODEL_PATH", ""), "path to whisper.cpp ggml model")
	fs.BoolVar(&cfg.RecognizerReentrant, "recognizer-reentrant", envBoolOr("RECOGNIZER_REENTRANT", false), "whether the recognizer backend tolerates concurrent inference calls")
	fs.IntVar(&cfg.RecognizerWorkers, "recognizer-workers", envIntOr("RECOGNIZER_WORKERS", 1), "concurrency width when recognizer is reentrant")
	fs.IntVar(&cfg.SegmenterMaxChunkSec, "segmenter-max-chunk-duration-s", envIntOr("SEGMENTER_MAX_CHUNK_DURATION_S", 20), "hybrid segmenter re-split threshold")

	fs.StringVar(&cfg.EnhancerProvider, "enhancer-provider", envOr("ENHANCER_PROVIDER", "none"), "openai | gemini | ollama | none")
	fs.StringVar(&cfg.EnhancerAPIKey, "enhancer-api-key", envOr("ENHANCER_API_KEY", ""), "API key for the enhancer provider")
	fs.StringVar(&cfg.EnhancerModel, "enhancer-model", envOr("ENHANCER_MODEL", "gpt-4o-mini"), "model name passed to the enhancer provider")
	fs.StringVar(&cfg.EnhancerBaseURL, "enhancer-base-url", envOr("ENHANCER_BASE_URL", ""), "override base URL, used by ollama and gemini")

	fs.StringVar(&cfg.RuntimeDir, "runtime-dir", envOr("ASR_RUNTIME_DIR", "runtime"), "directory for models/tmp/logs artifacts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
