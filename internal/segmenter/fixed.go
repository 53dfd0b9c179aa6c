package segmenter

import "github.com/voicebridge/asr-server/internal/audio"

// fixedSegments produces deterministic chunk_duration-length windows with a
// fixed overlap. The last segment is whatever remains and may be shorter.
func fixedSegments(frame audio.Frame, cfg Config) []Segment {
	chunkSamples := int(cfg.ChunkDurationS * audio.SampleRate)
	overlapSamples := int(cfg.OverlapS * audio.SampleRate)
	if chunkSamples <= 0 {
		chunkSamples = frame.Len()
	}
	if overlapSamples >= chunkSamples {
		overlapSamples = 0
	}

	if frame.Len() <= chunkSamples {
		return reindex(frame, [][2]int{{0, frame.Len()}})
	}

	var bounds [][2]int
	stride := chunkSamples - overlapSamples
	start := 0
	for start < frame.Len() {
		end := start + chunkSamples
		if end > frame.Len() {
			end = frame.Len()
		}
		bounds = append(bounds, [2]int{start, end})
		if end == frame.Len() {
			break
		}
		start += stride
	}
	return reindex(frame, bounds)
}
