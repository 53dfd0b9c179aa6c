package segmenter

import "github.com/voicebridge/asr-server/internal/audio"

const (
	vadFrameMs = 25
	vadHopMs   = 10
)

// vadSegments computes a short-time energy envelope over a sliding window
// and emits the speech regions between silences, padded by PadMs. The
// energy calculation and rolling-window shape are adapted from the
// teacher's IntelligentVAD.calculateEnergy / energyHistory tracking,
// retargeted from a live "should I flush now" decision to partitioning a
// finished buffer.
func vadSegments(frame audio.Frame, cfg Config) []Segment {
	frameLen := vadFrameMs * audio.SampleRate / 1000
	hopLen := vadHopMs * audio.SampleRate / 1000
	if frameLen <= 0 || hopLen <= 0 || frame.Len() == 0 {
		return reindex(frame, [][2]int{{0, frame.Len()}})
	}

	samples := frame.Samples()
	minSilenceFrames := int(cfg.MinSilenceDuration*1000) / vadHopMs
	if minSilenceFrames < 1 {
		minSilenceFrames = 1
	}

	type frameState struct {
		start   int
		isSpeech bool
	}
	var states []frameState
	for start := 0; start < len(samples); start += hopLen {
		end := start + frameLen
		if end > len(samples) {
			end = len(samples)
		}
		rms := rmsOf(samples[start:end])
		states = append(states, frameState{start: start, isSpeech: rms >= cfg.SilenceThreshold})
		if end == len(samples) {
			break
		}
	}

	// Collapse short silence gaps (< minSilenceFrames) into speech, per the
	// "contiguous run" requirement in the silence definition.
	run := 0
	for i, s := range states {
		if s.isSpeech {
			run = 0
			continue
		}
		run++
		if run < minSilenceFrames {
			states[i].isSpeech = true
		}
	}

	var bounds [][2]int
	padSamples := cfg.PadMs * audio.SampleRate / 1000
	inSpeech := false
	segStart := 0
	for i, s := range states {
		frameEnd := s.start + hopLen
		if frameEnd > len(samples) {
			frameEnd = len(samples)
		}
		if s.isSpeech && !inSpeech {
			segStart = s.start
			inSpeech = true
		}
		if !s.isSpeech && inSpeech {
			bounds = append(bounds, [2]int{segStart - padSamples, frameEnd + padSamples})
			inSpeech = false
		}
		if i == len(states)-1 && inSpeech {
			bounds = append(bounds, [2]int{segStart - padSamples, frameEnd + padSamples})
		}
	}

	if len(bounds) == 0 {
		// Whole buffer is silence: the recognizer decides what to do with it.
		return reindex(frame, [][2]int{{0, frame.Len()}})
	}

	return reindex(frame, bounds)
}

func rmsOf(samples []int16) float64 {
	return audio.RMSOfSamples(samples)
}
