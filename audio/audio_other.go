//go:build !linux

package audio

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	var result []DeviceInfo
	for _, dt := range []struct {
		typ  malgo.DeviceType
		kind Kind
	}{
		{malgo.Capture, KindAudioInput},
		{malgo.Playback, KindAudioOutput},
	} {
		devices, err := m.ctx.Devices(dt.typ)
		if err != nil {
			return nil, fmt.Errorf("malgo devices: %w", err)
		}
		for _, d := range devices {
			result = append(result, DeviceInfo{
				ID:   hex.EncodeToString(d.ID[:]),
				Name: d.Name(),
				Kind: dt.kind,
			})
		}
	}
	return result, nil
}

func (m *malgoContext) Open(ctx context.Context, c Constraints, config CaptureConfig) (CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkProcessing(c, false); err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	name := "system default"
	if !c.isDefault() {
		idBytes, err := hex.DecodeString(c.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, c.DeviceID)
		}
		var devID malgo.DeviceID
		copy(devID[:], idBytes)
		deviceConfig.Capture.DeviceID = devID.Pointer()
		name = c.DeviceID
		if devices, err := m.Devices(); err == nil {
			if d, ok := FindDevice(devices, c.DeviceID); ok {
				name = d.Name
			}
		}
	}

	capture := &malgoCapture{name: name}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			if cb := capture.callback.Load(); cb != nil {
				(*cb)(data, frameCount)
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	capture.device = dev
	return capture, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string {
	return c.name
}
