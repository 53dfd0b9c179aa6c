package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FasterWhisper shells to a Python faster-whisper process, the same
// exec-a-model-binary shape as WhisperExec but targeting the Python
// package the teacher's FasterWhisperTranscriber already wraps.
type FasterWhisper struct {
	modelName   string
	language    string
	device      string
	computeType string
	beamSize    int
	pythonPath  string
	ready       bool
}

type fasterWhisperResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewFasterWhisper resolves a Python interpreter; Warmup is what checks
// that the faster_whisper package is importable.
func NewFasterWhisper(modelName string) (*FasterWhisper, error) {
	if modelName == "" {
		modelName = "base.en"
	}

	pythonPath, err := exec.LookPath("python3")
	if err != nil {
		pythonPath, err = exec.LookPath("python")
		if err != nil {
			return nil, fmt.Errorf("python executable not found in PATH: %w", err)
		}
	}

	return &FasterWhisper{
		modelName:   modelName,
		language:    envOr("FASTER_WHISPER_LANGUAGE", "auto"),
		device:      envOr("FASTER_WHISPER_DEVICE", "auto"),
		computeType: envOr("FASTER_WHISPER_COMPUTE_TYPE", "float16"),
		beamSize:    parseBeamSize(envOr("FASTER_WHISPER_BEAM_SIZE", "1")),
		pythonPath:  pythonPath,
	}, nil
}

func (ft *FasterWhisper) Warmup(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, ft.pythonPath, "-c", "import faster_whisper")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("faster-whisper not installed: %w", err)
	}
	ft.ready = true
	return nil
}

func (ft *FasterWhisper) IsReady() bool  { return ft.ready }
func (ft *FasterWhisper) Reentrant() bool { return false }
func (ft *FasterWhisper) Close() error   { return nil }

// Transcribe pipes canonical 16kHz mono PCM directly to the Python script;
// unlike the teacher's version there is no 48kHz-stereo decimation step
// since the input is already canonical by the time it reaches a Recognizer.
func (ft *FasterWhisper) Transcribe(ctx context.Context, pcm []byte, opts Options) (Result, error) {
	start := time.Now()
	language := ft.language
	if opts.Language != "" {
		language = opts.Language
	}

	script := ft.generateScript(opts.PreviousContext, language)
	// #nosec G204 - pythonPath resolved via exec.LookPath, script is generated, not user input
	cmd := exec.CommandContext(ctx, ft.pythonPath, "-c", script)
	cmd.Stdin = bytes.NewReader(pcm)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{"error": err, "stderr": stderr.String()}).Error("faster-whisper transcription failed")
		return Result{}, fmt.Errorf("faster-whisper transcription failed: %w", err)
	}

	var resp fasterWhisperResponse
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		return Result{Text: strings.TrimSpace(out.String()), Language: language, Duration: time.Since(start)}, nil
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("faster-whisper: %s", resp.Error)
	}

	return Result{Text: resp.Text, Language: language, Duration: time.Since(start)}, nil
}

func (ft *FasterWhisper) generateScript(previousContext, language string) string {
	prompt := createContextPrompt(previousContext)
	promptLiteral := "None"
	if prompt != "" {
		promptLiteral = fmt.Sprintf("%q", prompt)
	}
	langArg := "None"
	if language != "" && language != "auto" {
		langArg = fmt.Sprintf("%q", language)
	}

	return fmt.Sprintf(`
import sys, json, numpy as np
from faster_whisper import WhisperModel
try:
    audio_data = sys.stdin.buffer.read()
    audio_array = np.frombuffer(audio_data, dtype=np.int16)
    audio_float = audio_array.astype(np.float32) / 32768.0
    model = WhisperModel(%q, device=%q, compute_type=%q)
    segments, info = model.transcribe(audio_float, language=%s, beam_size=%d, initial_prompt=%s)
    text = "".join(s.text for s in segments)
    print(json.dumps({"text": text.strip()}))
except Exception as e:
    print(json.dumps({"text": "", "error": str(e)}))
    sys.exit(1)
`, ft.modelName, ft.device, ft.computeType, langArg, ft.beamSize, promptLiteral)
}

func parseBeamSize(s string) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 1
}
