// Package segmenter splits a finished audio buffer into densely-indexed
// Segments for the pipeline orchestrator to transcribe in order. It knows
// nothing about sessions, jobs, or recognizers.
package segmenter

import (
	"fmt"

	"github.com/voicebridge/asr-server/internal/audio"
)

// Strategy names accepted by the Segmenter.
const (
	StrategyFixed  = "fixed"
	StrategyVAD    = "vad"
	StrategyHybrid = "hybrid"
)

// Segment is a contiguous, dense-indexed slice over the accumulated PCM of
// one session or uploaded file.
type Segment struct {
	Index       int
	StartSample int
	EndSample   int // exclusive
	Overlap     int // samples this segment shares with the previous one
	PCM         []byte
}

func (s Segment) Duration() float64 {
	return float64(s.EndSample-s.StartSample) / float64(audio.SampleRate)
}

// Config carries the tunables named in the Segmenter's operations, each
// with the defaults the server falls back to when unset.
type Config struct {
	Strategy           string
	ChunkDurationS     float64 // fixed: default 30
	OverlapS           float64 // fixed/hybrid re-splits: default 2
	SilenceThreshold   float64 // vad: default 0.01
	MinSilenceDuration float64 // vad, seconds: default 0.5
	PadMs              int     // vad: default 100
	MaxChunkDurationS  float64 // hybrid: default 20
	MinSegS            float64 // hybrid band: default 8
	MaxSegS            float64 // hybrid band: default 20
}

// DefaultConfig returns the server's documented defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyHybrid,
		ChunkDurationS:     30,
		OverlapS:           2,
		SilenceThreshold:   0.01,
		MinSilenceDuration: 0.5,
		PadMs:              100,
		MaxChunkDurationS:  20,
		MinSegS:            8,
		MaxSegS:            20,
	}
}

// Run partitions pcm (canonical 16-bit/mono/16kHz) per cfg.Strategy. An
// input shorter than ChunkDurationS always yields exactly one segment
// covering the whole buffer (I3/R1 in the invariants this package upholds).
func Run(pcm []byte, cfg Config) ([]Segment, error) {
	frame, err := audio.NewFrame(pcm)
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}

	short := frame.Len() < int(cfg.ChunkDurationS*audio.SampleRate)
	switch cfg.Strategy {
	case StrategyFixed, "":
		return fixedSegments(frame, cfg), nil
	case StrategyVAD:
		if short {
			return reindex(frame, [][2]int{{0, frame.Len()}}), nil
		}
		return vadSegments(frame, cfg), nil
	case StrategyHybrid:
		if short {
			return reindex(frame, [][2]int{{0, frame.Len()}}), nil
		}
		return hybridSegments(frame, cfg), nil
	default:
		return nil, fmt.Errorf("segmenter: unknown strategy %q", cfg.Strategy)
	}
}

// reindex assigns dense 0-based indices and materializes PCM bytes for each
// segment, satisfying I3 regardless of which strategy produced the bounds.
func reindex(frame audio.Frame, bounds [][2]int) []Segment {
	out := make([]Segment, 0, len(bounds))
	prevEnd := -1
	for i, b := range bounds {
		start, end := b[0], b[1]
		if start < 0 {
			start = 0
		}
		if end > frame.Len() {
			end = frame.Len()
		}
		if start >= end {
			continue
		}
		overlap := 0
		if prevEnd >= 0 && start < prevEnd {
			overlap = prevEnd - start
		}
		out = append(out, Segment{
			Index:       len(out),
			StartSample: start,
			EndSample:   end,
			Overlap:     overlap,
			PCM:         frame.Slice(start, end).Bytes(),
		})
		prevEnd = end
		_ = i
	}
	return out
}
