package segmenter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/asr-server/internal/audio"
)

func sineTone(seconds float64, freqHz float64, amplitude int16) []byte {
	n := int(seconds * audio.SampleRate)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / audio.SampleRate
		samples[i] = int16(float64(amplitude) * sin(2*math.Pi*freqHz*t))
	}
	out := make([]byte, n*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

func sin(x float64) float64 { return math.Sin(x) }

func silence(seconds float64) []byte {
	n := int(seconds * audio.SampleRate * 2)
	return make([]byte, n)
}

func concatBytes(chunks ...[]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func assertDenseIndices(t *testing.T, segs []Segment) {
	t.Helper()
	for i, s := range segs {
		assert.Equal(t, i, s.Index)
		if i > 0 {
			assert.LessOrEqual(t, segs[i-1].StartSample, s.StartSample)
		}
	}
}

func TestFixedShortInputYieldsOneSegment(t *testing.T) {
	pcm := sineTone(5, 440, 10000)
	cfg := DefaultConfig()
	cfg.Strategy = StrategyFixed

	segs, err := Run(pcm, cfg)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assertDenseIndices(t, segs)
}

func TestFixedNoOverlapRoundTrips(t *testing.T) {
	pcm := sineTone(65, 440, 10000)
	cfg := DefaultConfig()
	cfg.Strategy = StrategyFixed
	cfg.OverlapS = 0

	segs, err := Run(pcm, cfg)
	require.NoError(t, err)
	assertDenseIndices(t, segs)

	var rebuilt []byte
	for _, s := range segs {
		rebuilt = append(rebuilt, s.PCM...)
	}
	assert.Equal(t, pcm, rebuilt)
}

func TestVADProducesOneSegmentForAllSilence(t *testing.T) {
	pcm := silence(3)
	cfg := DefaultConfig()
	cfg.Strategy = StrategyVAD

	segs, err := Run(pcm, cfg)
	require.NoError(t, err)
	require.Len(t, segs, 1)
}

func TestHybridSegmentsLongSpeechRun(t *testing.T) {
	// two speech bursts separated by silences, the second long enough to
	// require a hybrid re-split under max_chunk_duration.
	pcm := concatBytes(
		sineTone(10, 300, 12000),
		silence(1.5),
		sineTone(58, 300, 12000),
	)
	cfg := DefaultConfig()
	cfg.Strategy = StrategyHybrid

	segs, err := Run(pcm, cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(segs), 3)
	assertDenseIndices(t, segs)

	for _, s := range segs {
		assert.LessOrEqual(t, s.Duration(), cfg.MaxChunkDurationS+0.5)
	}
}

func TestSegmenterUnknownStrategy(t *testing.T) {
	_, err := Run(silence(1), Config{Strategy: "bogus"})
	require.Error(t, err)
}
