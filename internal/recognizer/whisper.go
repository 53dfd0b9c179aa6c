package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voicebridge/asr-server/internal/audio"
)

// WhisperExec runs whisper.cpp's CLI against a materialized WAV temp file.
// It is the direct descendant of the teacher's WhisperTranscriber, adapted
// to receive already-canonical PCM and to satisfy the Recognizer interface.
type WhisperExec struct {
	modelPath   string
	whisperPath string
	language    string
	threads     string
	beamSize    string
	useGPU      bool
	gpuLayers   int
	tmpDir      string

	ready bool
}

// NewWhisperExec validates the whisper.cpp binary and model, optionally
// enabling GPU flags the way the teacher's GPUWhisperTranscriber detects
// CUDA availability via nvidia-smi.
func NewWhisperExec(modelPath, tmpDir string, useGPU bool) (*WhisperExec, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper model file not accessible: %w", err)
	}

	whisperPath, err := exec.LookPath("whisper")
	if err != nil {
		return nil, fmt.Errorf("whisper executable not found in PATH: %w", err)
	}

	language := envOr("WHISPER_LANGUAGE", "auto")
	threads := envOr("WHISPER_THREADS", strconv.Itoa(runtime.NumCPU()))
	beamSize := envOr("WHISPER_BEAM_SIZE", "1")

	gpuLayers := 0
	if useGPU {
		gpuLayers = gpuLayersFromEnv()
		if !gpuAvailable() {
			logrus.Warn("GPU requested but nvidia-smi reports none available, continuing on CPU")
			useGPU = false
			gpuLayers = 0
		}
	}

	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating recognizer tmp dir: %w", err)
	}

	return &WhisperExec{
		modelPath:   modelPath,
		whisperPath: whisperPath,
		language:    language,
		threads:     threads,
		beamSize:    beamSize,
		useGPU:      useGPU,
		gpuLayers:   gpuLayers,
		tmpDir:      tmpDir,
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func gpuLayersFromEnv() int {
	if v := os.Getenv("WHISPER_GPU_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 32
}

func gpuAvailable() bool {
	return exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run() == nil
}

// Warmup runs a trivial `--help` invocation to confirm the binary is
// functional before the first real request pays that latency.
func (w *WhisperExec) Warmup(ctx context.Context) error {
	// #nosec G204 - whisperPath resolved via exec.LookPath at construction
	cmd := exec.CommandContext(ctx, w.whisperPath, "--help")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("whisper binary found but not working: %w", err)
	}
	w.ready = true
	logrus.WithFields(logrus.Fields{
		"model": w.modelPath,
		"gpu":   w.useGPU,
	}).Info("whisper recognizer warmed up")
	return nil
}

func (w *WhisperExec) IsReady() bool { return w.ready }

// Reentrant is false: whisper.cpp's CLI model load is not safe for
// concurrent invocation against a single model file handle in this adapter.
func (w *WhisperExec) Reentrant() bool { return false }

func (w *WhisperExec) Close() error { return nil }

// Transcribe materializes pcm as a temp WAV file and shells to whisper.cpp,
// mirroring the teacher's ffmpeg-pipe-then-whisper-CLI pipeline but against
// already-canonical PCM instead of 48kHz stereo Discord audio.
func (w *WhisperExec) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	start := time.Now()

	wavPath, cleanup, err := writeTempWAV(w.tmpDir, pcm)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	language := w.language
	if opts.Language != "" && opts.Language != "auto" {
		language = opts.Language
	}

	args := []string{
		"-m", w.modelPath,
		"-l", language,
		"-t", w.threads,
		"-bs", w.beamSize,
		"--no-timestamps",
		"-otxt",
	}
	if w.useGPU && w.gpuLayers > 0 {
		args = append(args, "-ngl", strconv.Itoa(w.gpuLayers))
	}
	if prompt := createContextPrompt(opts.PreviousContext); prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	args = append(args, wavPath)

	// #nosec G204 - whisperPath resolved via exec.LookPath, args are fixed/config-controlled
	cmd := exec.CommandContext(ctx, w.whisperPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "stderr": stderr.String()}).Error("whisper transcription failed")
		return Result{}, fmt.Errorf("whisper transcription failed: %w", err)
	}

	text := strings.TrimSpace(out.String())
	return Result{
		Text:     text,
		Language: language,
		Duration: time.Since(start),
	}, nil
}

// createContextPrompt trims overly long context the way the teacher bounds
// the --prompt argument to avoid destabilizing the decoder.
func createContextPrompt(previous string) string {
	previous = strings.TrimSpace(previous)
	if previous == "" {
		return ""
	}
	words := strings.Fields(previous)
	const maxWords = 64
	if len(words) > maxWords {
		words = words[len(words)-maxWords:]
	}
	return strings.Join(words, " ")
}

func writeTempWAV(dir string, pcm []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp(dir, "segment-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp wav: %w", err)
	}
	if _, err := f.Write(audio.EncodeWAV(pcm)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("writing temp wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("closing temp wav: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
