//go:build linux

package playback

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"micrec/encoder"
)

// Play blocks until the clip has drained or ctx ends.
func Play(ctx context.Context, pcm []byte, f encoder.Format) error {
	if len(pcm) < 2 {
		return ErrEmpty
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("micrec"))
	if err != nil {
		return fmt.Errorf("pulse: %w", err)
	}
	defer c.Close()

	cur := newCursor(pcm)
	var raw []byte
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil {
			return 0, pulse.EndOfData
		}
		if cap(raw) < len(buf)*2 {
			raw = make([]byte, len(buf)*2)
		}
		n := cur.fill(raw[:len(buf)*2]) / 2
		if n == 0 {
			return 0, pulse.EndOfData
		}
		copy(buf, encoder.Samples(raw[:n*2]))
		return n, nil
	})

	channels := pulse.PlaybackMono
	volumes := proto.ChannelVolumes{uint32(proto.VolumeNorm)}
	if f.Channels == 2 {
		channels = pulse.PlaybackStereo
		volumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
	}
	stream, err := c.NewPlayback(reader,
		channels,
		pulse.PlaybackSampleRate(int(f.SampleRate)),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = volumes
		}),
	)
	if err != nil {
		return fmt.Errorf("pulse playback: %w", err)
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
	return ctx.Err()
}
