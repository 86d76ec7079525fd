package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

const fakeFrameSize = 1024

// FakeContext is an in-memory host. Devices and failures are scripted; the
// captures it hands out either replay a PCM buffer or wait for Emit.
type FakeContext struct {
	mu         sync.Mutex
	devices    []DeviceInfo
	DevicesErr error
	OpenErr    error

	pcm      []byte
	realtime bool

	opened   []Constraints
	captures []*FakeCapture
}

func NewFakeContext(devices ...DeviceInfo) *FakeContext {
	return &FakeContext{devices: devices}
}

// NewFakeContextFromWAV replays the PCM payload of wavPath into every
// capture. With realtime set the chunks are paced at SampleRate.
func NewFakeContextFromWAV(wavPath string, realtime bool, devices ...DeviceInfo) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	if len(devices) == 0 {
		devices = []DeviceInfo{{ID: "fake", Name: "Fake WAV input", Kind: KindAudioInput}}
	}
	return &FakeContext{devices: devices, pcm: data, realtime: realtime}, nil
}

func (f *FakeContext) SetDevices(devices ...DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DevicesErr != nil {
		return nil, f.DevicesErr
	}
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Open(ctx context.Context, c Constraints, _ CaptureConfig) (CaptureDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, c)
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	if err := checkProcessing(c, true); err != nil {
		return nil, err
	}
	name := "system default"
	if !c.isDefault() {
		d, ok := FindDevice(f.devices, c.DeviceID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, c.DeviceID)
		}
		name = d.Name
	}
	capture := &FakeCapture{name: name, pcm: f.pcm, realtime: f.realtime}
	f.captures = append(f.captures, capture)
	return capture, nil
}

func (f *FakeContext) Close() {}

// Opened returns the constraints of every Open call so far.
func (f *FakeContext) Opened() []Constraints {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Constraints(nil), f.opened...)
}

// LastCapture returns the most recently opened capture, or nil.
func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

type FakeCapture struct {
	name     string
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	cb       DataCallback
	started  bool
	stopped  bool
	closed   bool
	StartErr error
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

// Emit delivers one chunk to the registered callback, as a backend thread
// would. It returns false if nothing was listening.
func (f *FakeCapture) Emit(data []byte) bool {
	f.mu.Lock()
	cb := f.cb
	live := f.started && !f.stopped
	f.mu.Unlock()
	if cb == nil || !live {
		return false
	}
	cb(data, uint32(len(data)/BytesPerSample))
	return true
}

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.StartErr != nil {
		f.mu.Unlock()
		return f.StartErr
	}
	f.started = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	f.mu.Unlock()

	if len(f.pcm) == 0 {
		close(f.feedDone)
		return nil
	}

	chunkBytes := fakeFrameSize * BytesPerSample
	interval := time.Duration(0)
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(SampleRate)
	}
	go func() {
		defer close(f.feedDone)
		for pos := 0; pos < len(f.pcm); {
			select {
			case <-f.stopCh:
				return
			default:
			}
			end := min(pos+chunkBytes, len(f.pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, f.pcm[pos:end])
			f.Emit(chunk)
			pos = end
			if interval > 0 {
				select {
				case <-f.stopCh:
					return
				case <-time.After(interval):
				}
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.started || f.stopped {
		f.mu.Unlock()
		return
	}
	f.stopped = true
	close(f.stopCh)
	done := f.feedDone
	f.mu.Unlock()
	<-done
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
