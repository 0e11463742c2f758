package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

// Format describes interleaved little endian PCM.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// PCM16Mono24k is the format every TTS segment is requested in.
var PCM16Mono24k = Format{SampleRate: 24000, Channels: 1, BytesPerSample: 2}

const wavHeaderSize = 44

var ErrNotWAV = errors.New("not a pcm wav stream")

func (f Format) frameSize() int {
	return f.Channels * f.BytesPerSample
}

func (f Format) byteRate() int {
	return f.SampleRate * f.frameSize()
}

// SilenceLen is the number of bytes of silence lasting d, rounded down to
// whole frames.
func (f Format) SilenceLen(d time.Duration) int {
	frames := int(int64(f.SampleRate) * int64(d) / int64(time.Second))
	return frames * f.frameSize()
}

// Duration of n bytes of PCM.
func (f Format) Duration(n int) time.Duration {
	frames := n / f.frameSize()
	return time.Duration(int64(frames) * int64(time.Second) / int64(f.SampleRate))
}

// Concat joins segments in order with gap of silence between consecutive
// segments. Trailing partial frames of a segment are dropped.
func Concat(f Format, segments [][]byte, gap time.Duration) []byte {
	silence := make([]byte, f.SilenceLen(gap))
	var buf bytes.Buffer
	for i, seg := range segments {
		if i > 0 {
			buf.Write(silence)
		}
		buf.Write(seg[:len(seg)-len(seg)%f.frameSize()])
	}
	return buf.Bytes()
}

// EncodeWAV wraps raw PCM in a canonical 44 byte RIFF header.
func EncodeWAV(f Format, pcm []byte) []byte {
	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	out.WriteString("RIFF")
	_ = binary.Write(out, binary.LittleEndian, uint32(36+len(pcm)))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(out, binary.LittleEndian, uint32(16))
	_ = binary.Write(out, binary.LittleEndian, uint16(1))
	_ = binary.Write(out, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(out, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(out, binary.LittleEndian, uint32(f.byteRate()))
	_ = binary.Write(out, binary.LittleEndian, uint16(f.frameSize()))
	_ = binary.Write(out, binary.LittleEndian, uint16(f.BytesPerSample*8))
	out.WriteString("data")
	_ = binary.Write(out, binary.LittleEndian, uint32(len(pcm)))
	out.Write(pcm)
	return out.Bytes()
}

// WAVDuration reads the playing time of a wav produced by EncodeWAV.
func WAVDuration(wav []byte) (time.Duration, error) {
	if len(wav) < wavHeaderSize || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		return 0, ErrNotWAV
	}
	byteRate := binary.LittleEndian.Uint32(wav[28:32])
	dataLen := binary.LittleEndian.Uint32(wav[40:44])
	if byteRate == 0 {
		return 0, ErrNotWAV
	}
	return time.Duration(int64(dataLen) * int64(time.Second) / int64(byteRate)), nil
}

// AssembleWAV is Concat followed by EncodeWAV.
func AssembleWAV(f Format, segments [][]byte, gap time.Duration) []byte {
	return EncodeWAV(f, Concat(f, segments, gap))
}
