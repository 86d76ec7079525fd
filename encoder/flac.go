package encoder

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type FlacEncoder struct {
	buf         bytes.Buffer
	enc         *flac.Encoder
	format      Format
	totalFrames uint64
	mu          sync.Mutex
}

func NewFlac(f Format) (*FlacEncoder, error) {
	if f.Channels != 1 && f.Channels != 2 {
		return nil, fmt.Errorf("flac: unsupported channel count %d", f.Channels)
	}
	e := &FlacEncoder{format: f}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    f.SampleRate,
		NChannels:     uint8(f.Channels),
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	e.enc = enc
	return e, nil
}

// EncodeBlock writes one frame of interleaved samples. The block must hold
// at most BlockSize frames.
func (e *FlacEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	nch := int(e.format.Channels)
	n := len(block) / nch
	if n == 0 {
		return nil
	}

	subframes := make([]*frame.Subframe, nch)
	for ch := range subframes {
		samples := make([]int32, n)
		for i := 0; i < n; i++ {
			samples[i] = int32(block[i*nch+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}
	}

	channels := frame.ChannelsMono
	if nch == 2 {
		channels = frame.ChannelsLR
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    e.format.SampleRate,
			Channels:      channels,
			BitsPerSample: BitsPerSample,
		},
		Subframes: subframes,
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(n)
	return nil
}

func (e *FlacEncoder) Close() error {
	return e.enc.Close()
}

func (e *FlacEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

// FLAC encodes a whole S16LE buffer.
func FLAC(f Format, pcm []byte) ([]byte, error) {
	enc, err := NewFlac(f)
	if err != nil {
		return nil, err
	}
	samples := Samples(pcm)
	step := BlockSize * int(f.Channels)
	for i := 0; i < len(samples); i += step {
		end := min(i+step, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
