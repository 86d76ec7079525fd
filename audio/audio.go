package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2 // S16LE
	WAVHeaderSize  = 44
)

// DefaultDeviceID asks the host for its default input.
const DefaultDeviceID = "default"

var (
	ErrPermissionDenied      = errors.New("audio: permission denied")
	ErrDeviceNotFound        = errors.New("audio: device not found")
	ErrUnsupportedConstraint = errors.New("audio: unsupported constraint")
)

type Kind string

const (
	KindAudioInput   Kind = "audioinput"
	KindAudioOutput  Kind = "audiooutput"
	KindAudioMonitor Kind = "audiomonitor"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

// Constraints describe the stream a caller wants. Processing toggles that a
// backend cannot honour make Open fail with ErrUnsupportedConstraint.
type Constraints struct {
	DeviceID         string
	AutoGainControl  bool
	EchoCancellation bool
	NoiseSuppression bool
}

func (c Constraints) isDefault() bool {
	return c.DeviceID == "" || c.DeviceID == DefaultDeviceID
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
	Kind Kind
}

// Context is the host: device enumeration plus stream acquisition.
type Context interface {
	Devices() ([]DeviceInfo, error)
	Open(ctx context.Context, c Constraints, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// InputDevices keeps only KindAudioInput entries, in order.
func InputDevices(devices []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.Kind == KindAudioInput {
			out = append(out, d)
		}
	}
	return out
}

func FindDevice(devices []DeviceInfo, id string) (DeviceInfo, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

func checkProcessing(c Constraints, hasGain bool) error {
	switch {
	case c.EchoCancellation:
		return fmt.Errorf("%w: echo cancellation", ErrUnsupportedConstraint)
	case c.NoiseSuppression:
		return fmt.Errorf("%w: noise suppression", ErrUnsupportedConstraint)
	case c.AutoGainControl && !hasGain:
		return fmt.Errorf("%w: automatic gain control", ErrUnsupportedConstraint)
	}
	return nil
}

// pcm16 encodes samples as S16LE, scaled by gain and clipped to int16.
func pcm16(samples []int16, gain int32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		v := min(max(int32(s)*gain, -32768), 32767)
		binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(int16(v)))
	}
	return data
}
