package segmenter

import "github.com/voicebridge/asr-server/internal/audio"

// hybridSegments runs VAD, then re-splits any VAD segment longer than
// MaxChunkDurationS into pieces that overlap by OverlapS like Fixed
// windows, preferring cut points at local energy minima within the
// [MinSegS, MaxSegS] band. Order is preserved across the whole buffer.
func hybridSegments(frame audio.Frame, cfg Config) []Segment {
	vad := vadSegments(frame, cfg)

	var bounds [][2]int
	for _, seg := range vad {
		if seg.Duration() <= cfg.MaxChunkDurationS {
			bounds = append(bounds, [2]int{seg.StartSample, seg.EndSample})
			continue
		}
		bounds = append(bounds, splitAtEnergyMinima(frame, seg.StartSample, seg.EndSample, cfg)...)
	}

	return reindex(frame, bounds)
}

// splitAtEnergyMinima divides [start,end) into windows targeting the
// [MinSegS, MaxSegS] band, searching a short neighbourhood just below each
// MaxSegS target cut for the hop with the lowest local RMS before falling
// back to a hard cut at the target sample. Each window after the first
// starts OverlapS before the previous cut.
func splitAtEnergyMinima(frame audio.Frame, start, end int, cfg Config) [][2]int {
	samples := frame.Samples()
	minSeg := int(cfg.MinSegS * audio.SampleRate)
	maxSeg := int(cfg.MaxSegS * audio.SampleRate)
	if minSeg <= 0 {
		minSeg = int(cfg.MaxChunkDurationS * audio.SampleRate / 2)
	}
	if maxSeg <= minSeg {
		maxSeg = int(cfg.MaxChunkDurationS * audio.SampleRate)
	}
	searchWindow := (maxSeg - minSeg) / 2
	if searchWindow <= 0 {
		searchWindow = audio.SampleRate // 1s
	}
	hop := vadHopMs * audio.SampleRate / 1000
	overlap := int(cfg.OverlapS * audio.SampleRate)
	if overlap < 0 || overlap >= minSeg || overlap >= maxSeg {
		overlap = 0
	}

	var bounds [][2]int
	cur := start
	for end-cur > maxSeg {
		target := cur + maxSeg
		if target-searchWindow < cur+minSeg {
			bounds = append(bounds, [2]int{cur, target})
			cur = target - overlap
			continue
		}

		lo := target - searchWindow
		hi := target

		bestIdx := target
		bestRMS := -1.0
		for i := lo; i+hop <= hi; i += hop {
			r := rmsOf(samples[i : i+hop])
			if bestRMS < 0 || r < bestRMS {
				bestRMS = r
				bestIdx = i
			}
		}
		bounds = append(bounds, [2]int{cur, bestIdx})
		cur = bestIdx - overlap
	}
	if cur < end {
		bounds = append(bounds, [2]int{cur, end})
	}
	return bounds
}
