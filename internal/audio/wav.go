package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// IsWAV sniffs the RIFF magic the way §6.4's body-sniffing rule requires.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE"))
}

// EncodeWAV wraps canonical PCM (16-bit, mono, 16kHz) in a minimal WAV
// container, used when materializing a temp file for recognizer backends
// that require file input (§4.7c).
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(pcm))
	riffLen := 36 + dataLen

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, riffLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM format tag
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // mono
	binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	byteRate := uint32(SampleRate * BytesPerSample)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(BytesPerSample)) // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))             // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload from a WAV container. A payload that
// is already 16-bit/mono/16kHz is returned as is; any other format is
// converted to canonical form by resamplePCM.
func DecodeWAV(b []byte) ([]byte, error) {
	if !IsWAV(b) {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}
	pos := 12
	var (
		numChannels   uint16
		sampleRate    uint32
		bitsPerSample uint16
		data          []byte
		sawFmt        bool
	)
	for pos+8 <= len(b) {
		chunkID := string(b[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(b[pos+4 : pos+8])
		chunkStart := pos + 8
		chunkEnd := chunkStart + int(chunkSize)
		if chunkEnd > len(b) {
			chunkEnd = len(b)
		}
		switch chunkID {
		case "fmt ":
			if chunkEnd-chunkStart < 16 {
				return nil, fmt.Errorf("malformed fmt chunk")
			}
			numChannels = binary.LittleEndian.Uint16(b[chunkStart+2 : chunkStart+4])
			sampleRate = binary.LittleEndian.Uint32(b[chunkStart+4 : chunkStart+8])
			bitsPerSample = binary.LittleEndian.Uint16(b[chunkStart+14 : chunkStart+16])
			sawFmt = true
		case "data":
			data = b[chunkStart:chunkEnd]
		}
		pos = chunkEnd
		if pos%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	if !sawFmt || data == nil {
		return nil, fmt.Errorf("wav container missing fmt or data chunk")
	}
	if numChannels == 1 && sampleRate == SampleRate && bitsPerSample == 16 {
		return data, nil
	}
	return resamplePCM(data, int(numChannels), int(sampleRate), int(bitsPerSample))
}

// resamplePCM converts arbitrary PCM to canonical 16-bit/mono/16kHz using
// simple channel downmixing and nearest-neighbour rate conversion. It is
// intentionally basic: production-grade resampling is delegated to ffmpeg
// in Decode for compressed containers; this path only covers WAV inputs
// whose header declares a non-canonical rate or channel count.
func resamplePCM(data []byte, channels, sampleRate, bitsPerSample int) ([]byte, error) {
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", bitsPerSample)
	}
	if channels <= 0 {
		channels = 1
	}
	frameBytes := 2 * channels
	numFrames := len(data) / frameBytes
	mono := make([]int16, numFrames)
	for i := 0; i < numFrames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			off := i*frameBytes + c*2
			sum += int32(int16(binary.LittleEndian.Uint16(data[off : off+2])))
		}
		mono[i] = int16(sum / int32(channels))
	}

	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	if sampleRate == SampleRate {
		out := make([]byte, len(mono)*2)
		for i, s := range mono {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
		}
		return out, nil
	}

	ratio := float64(SampleRate) / float64(sampleRate)
	outLen := int(float64(len(mono)) * ratio)
	out := make([]byte, outLen*2)
	for i := 0; i < outLen; i++ {
		srcIdx := int(float64(i) / ratio)
		if srcIdx >= len(mono) {
			srcIdx = len(mono) - 1
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(mono[srcIdx]))
	}
	return out, nil
}
