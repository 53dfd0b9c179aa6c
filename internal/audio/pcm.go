// Package audio holds the canonical PCM representation and the container
// decoding / WAV framing helpers shared by the session, segmenter and
// recognizer packages.
package audio

import (
	"fmt"
	"math"
)

// BytesPerSample is fixed by the canonical wire format: 16-bit signed PCM.
const BytesPerSample = 2

// SampleRate is the canonical sample rate in Hz.
const SampleRate = 16000

// Frame is an immutable block of canonical PCM: 16-bit signed, mono,
// 16kHz, host byte order. It is never mutated after construction;
// concatenation always allocates a new Frame.
type Frame struct {
	samples []int16
}

// NewFrame validates that b has an even length and wraps it as a Frame.
func NewFrame(b []byte) (Frame, error) {
	if len(b)%BytesPerSample != 0 {
		return Frame{}, fmt.Errorf("pcm byte length %d is not a multiple of %d", len(b), BytesPerSample)
	}
	samples := make([]int16, len(b)/BytesPerSample)
	for i := range samples {
		lo := b[2*i]
		hi := b[2*i+1]
		samples[i] = int16(uint16(lo) | uint16(hi)<<8)
	}
	return Frame{samples: samples}, nil
}

// Len returns the number of samples in the frame.
func (f Frame) Len() int { return len(f.samples) }

// Duration returns the playback duration of the frame.
func (f Frame) Duration() float64 { return float64(len(f.samples)) / float64(SampleRate) }

// Samples returns the underlying sample slice. Callers must not mutate it.
func (f Frame) Samples() []int16 { return f.samples }

// Bytes re-encodes the frame to little-endian byte form.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.samples)*BytesPerSample)
	for i, s := range f.samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// Concat produces a new Frame containing the samples of frames one after
// another, preserving order. It never mutates its inputs.
func Concat(frames ...Frame) Frame {
	total := 0
	for _, fr := range frames {
		total += len(fr.samples)
	}
	out := make([]int16, 0, total)
	for _, fr := range frames {
		out = append(out, fr.samples...)
	}
	return Frame{samples: out}
}

// Slice returns the sample range [start, end) as a new Frame.
func (f Frame) Slice(start, end int) Frame {
	if start < 0 {
		start = 0
	}
	if end > len(f.samples) {
		end = len(f.samples)
	}
	if start >= end {
		return Frame{}
	}
	out := make([]int16, end-start)
	copy(out, f.samples[start:end])
	return Frame{samples: out}
}

// RMS computes the root-mean-square energy of the frame, scaled to [0,1]
// against the full 16-bit range.
func (f Frame) RMS() float64 { return RMSOfSamples(f.samples) }

// RMSOfSamples computes the root-mean-square energy of a raw sample slice,
// scaled to [0,1] against the full 16-bit range. Exported so the segmenter
// can compute energy over sliding windows without allocating a Frame per
// window.
func RMSOfSamples(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sumSq += v * v
	}
	mean := sumSq / float64(len(samples))
	return math.Sqrt(mean)
}
