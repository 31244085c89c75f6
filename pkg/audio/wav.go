package audio

import (
	"bytes"
	"encoding/binary"
)

// HeaderBytes is the size of the canonical WAV header NewWavBuffer writes.
const HeaderBytes = 44

const (
	bitsPerSample = 16
	channels      = 1
)

// NewWavBuffer wraps pcm — already SampleRate, mono, 16-bit PCM, the only
// format captured anywhere in this core — in a canonical RIFF/WAVE header
// and returns the complete file contents.
func NewWavBuffer(pcm []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(HeaderBytes + len(pcm))

	byteRate := SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
