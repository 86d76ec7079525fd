package encoder

import "encoding/binary"

const WAVHeaderSize = 44

// WAVHeader returns a canonical 44-byte RIFF/WAVE header for dataSize bytes
// of PCM.
func WAVHeader(f Format, dataSize int) []byte {
	buf := make([]byte, WAVHeaderSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(WAVHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], f.SampleRate*f.blockAlign())
	binary.LittleEndian.PutUint16(buf[32:34], uint16(f.blockAlign()))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

// WAV wraps pcm in a WAV container.
func WAV(f Format, pcm []byte) []byte {
	out := make([]byte, 0, WAVHeaderSize+len(pcm))
	out = append(out, WAVHeader(f, len(pcm))...)
	return append(out, pcm...)
}
