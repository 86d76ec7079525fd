//go:build !linux

package playback

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"

	"micrec/encoder"
)

// Play blocks until the clip has drained or ctx ends.
func Play(ctx context.Context, pcm []byte, f encoder.Format) error {
	if len(pcm) < 2 {
		return ErrEmpty
	}
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo: %w", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = f.Channels
	config.SampleRate = f.SampleRate

	cur := newCursor(pcm)
	device, err := malgo.InitDevice(mctx.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			cur.fill(out)
		},
	})
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("malgo playback start: %w", err)
	}
	select {
	case <-cur.done:
	case <-ctx.Done():
	}
	device.Stop()
	return ctx.Err()
}
