package encoder

import "encoding/binary"

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate uint32
	Channels   uint32
}

func (f Format) blockAlign() uint32 { return f.Channels * BitsPerSample / 8 }

// Samples decodes S16LE bytes. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
