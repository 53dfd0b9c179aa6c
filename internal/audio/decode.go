package audio

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// SupportedUploadExtensions enumerates the file-upload formats §6.4 accepts.
var SupportedUploadExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".aac"}

// IsSupportedUpload reports whether filename carries one of the accepted
// extensions, case-insensitively.
func IsSupportedUpload(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedUploadExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Decode turns an uploaded file's raw bytes into canonical PCM. WAV inputs
// are parsed directly (DecodeWAV); every other supported extension is piped
// through ffmpeg, the same external tool the teacher's recognizer backend
// already shells out to for resampling.
func Decode(filename string, raw []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".wav" && IsWAV(raw) {
		return DecodeWAV(raw)
	}
	return decodeWithFFmpeg(raw)
}

// decodeWithFFmpeg shells out to ffmpeg to transcode an arbitrary container
// (read from stdin, format auto-detected) into canonical PCM on stdout.
func decodeWithFFmpeg(raw []byte) ([]byte, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	// #nosec G204 - ffmpegPath resolved via exec.LookPath, arguments are fixed
	cmd := exec.Command(ffmpegPath,
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", SampleRate),
		"-ac", "1",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(raw)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logrus.WithFields(logrus.Fields{
			"error":  err,
			"stderr": stderr.String(),
		}).Error("ffmpeg decode failed")
		return nil, fmt.Errorf("audio decode failed: %w", err)
	}

	return out.Bytes(), nil
}
