// Package recorder owns the recording state machine: which input devices
// exist, which one is selected, whether a capture session is live, and the
// handle of the last finished clip.
//
// A session moves IDLE -> ACQUIRING -> ACTIVE -> FINALIZING -> IDLE. The
// recording flag is raised only once the host has granted a stream and the
// capture has started, and is lowered only when the host confirms the stop.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"micrec/audio"
	"micrec/encoder"
)

var (
	ErrAlreadyRecording = errors.New("recorder: already recording")
	ErrClosed           = errors.New("recorder: closed")
)

// Allocator turns an ordered list of fragments into a playable handle.
type Allocator interface {
	Create(fragments [][]byte, format encoder.Format) string
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseActive
	PhaseFinalizing
)

func (p Phase) String() string {
	switch p {
	case PhaseAcquiring:
		return "acquiring"
	case PhaseActive:
		return "active"
	case PhaseFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// State is a consistent copy of the controller's observable fields.
type State struct {
	Recording bool
	Phase     Phase
	Devices   []audio.DeviceInfo
	Selected  *audio.DeviceInfo
	AudioURL  string
	Version   uint64
}

// Clip describes a finished session.
type Clip struct {
	URL       string
	Device    string
	Fragments int
	Bytes     int
	Duration  time.Duration
}

type session struct {
	capture   audio.CaptureDevice
	fragments [][]byte
	bytes     int
	closed    bool
	done      chan struct{}
}

type Controller struct {
	host   audio.Context
	alloc  Allocator
	config audio.CaptureConfig

	life     context.Context
	stopLife context.CancelFunc
	starts   sync.WaitGroup

	notifyMu sync.Mutex
	notified uint64

	mu        sync.Mutex
	closed    bool
	phase     Phase
	devices   []audio.DeviceInfo
	selected  *audio.DeviceInfo
	audioURL  string
	sess      *session
	version   uint64
	nextObs   int
	observers map[int]func(State)
	clipHooks []func(Clip)
}

func New(host audio.Context, alloc Allocator) *Controller {
	life, stop := context.WithCancel(context.Background())
	return &Controller{
		host:      host,
		alloc:     alloc,
		config:    audio.DefaultCaptureConfig(),
		life:      life,
		stopLife:  stop,
		observers: make(map[int]func(State)),
	}
}

// OnChange registers fn to run after every state change. Observers run on
// the goroutine that made the change, outside the controller lock, one
// snapshot at a time and in increasing Version order. A snapshot that is
// already superseded when its turn comes is skipped. fn must not call back
// into the controller.
func (c *Controller) OnChange(fn func(State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// OnClip registers fn to run after each session completes.
func (c *Controller) OnClip(fn func(Clip)) {
	c.mu.Lock()
	c.clipHooks = append(c.clipHooks, fn)
	c.mu.Unlock()
}

func (c *Controller) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordingLocked()
}

func (c *Controller) Devices() []audio.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.DeviceInfo(nil), c.devices...)
}

func (c *Controller) SelectedDevice() *audio.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	d := *c.selected
	return &d
}

// AudioURL is empty until the first session completes.
func (c *Controller) AudioURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioURL
}

func (c *Controller) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadDevices replaces the device list with the host's audio inputs, in host
// order. A selection the host no longer reports is cleared. On failure the
// previous list is kept.
func (c *Controller) LoadDevices(ctx context.Context) error {
	all, err := await(ctx, c.host.Devices, nil)
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	inputs := audio.InputDevices(all)

	c.mu.Lock()
	c.devices = inputs
	if c.selected != nil {
		if d, ok := audio.FindDevice(inputs, c.selected.ID); ok {
			c.selected = &d
		} else {
			c.selected = nil
		}
	}
	st := c.bumpLocked()
	obs := c.observersLocked()
	c.mu.Unlock()

	c.notify(obs, st)
	return nil
}

// SelectDevice selects the device with the given id, or clears the
// selection when no device matches. A live session keeps its device.
func (c *Controller) SelectDevice(id string) {
	c.mu.Lock()
	c.selected = nil
	if d, ok := audio.FindDevice(c.devices, id); ok {
		c.selected = &d
	}
	st := c.bumpLocked()
	obs := c.observersLocked()
	c.mu.Unlock()

	c.notify(obs, st)
}

// Start acquires a stream from the selected device (or the host default)
// with all processing disabled and begins capturing. It returns
// ErrAlreadyRecording unless the controller is idle, and ErrClosed after
// Close.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.phase = PhaseAcquiring
	c.starts.Add(1)
	defer c.starts.Done()
	constraints := audio.Constraints{
		DeviceID:         audio.DefaultDeviceID,
		AutoGainControl:  false,
		EchoCancellation: false,
		NoiseSuppression: false,
	}
	if c.selected != nil {
		constraints.DeviceID = c.selected.ID
	}
	st := c.bumpLocked()
	obs := c.observersLocked()
	c.mu.Unlock()
	c.notify(obs, st)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(c.life, cancel)()

	capture, err := await(ctx, func() (audio.CaptureDevice, error) {
		return c.host.Open(ctx, constraints, c.config)
	}, func(late audio.CaptureDevice) { late.Close() })
	if err != nil {
		c.resetToIdle()
		return fmt.Errorf("acquire stream: %w", err)
	}

	sess := &session{capture: capture, done: make(chan struct{})}
	capture.SetCallback(func(data []byte, _ uint32) {
		c.appendFragment(sess, data)
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		c.resetToIdle()
		return fmt.Errorf("start capture: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.phase = PhaseActive
	st = c.bumpLocked()
	obs = c.observersLocked()
	c.mu.Unlock()

	c.notify(obs, st)
	return nil
}

// Stop asks the host to finish the live session and returns at once. The
// flag drops and the new handle appears when the host confirms. Without a
// live session Stop does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseFinalizing
	sess := c.sess
	st := c.bumpLocked()
	obs := c.observersLocked()
	c.mu.Unlock()

	c.notify(obs, st)
	go c.finalize(sess)
}

// Close abandons a Start that is still waiting for the host, stops a live
// session and waits for it to finish. Later Starts fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stopLife()
	c.starts.Wait()

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return
	}
	c.Stop()
	<-sess.done
}

func (c *Controller) appendFragment(sess *session, data []byte) {
	if len(data) == 0 {
		return
	}
	frag := make([]byte, len(data))
	copy(frag, data)

	c.mu.Lock()
	if !sess.closed {
		sess.fragments = append(sess.fragments, frag)
		sess.bytes += len(frag)
	}
	c.mu.Unlock()
}

func (c *Controller) finalize(sess *session) {
	sess.capture.Stop()
	sess.capture.ClearCallback()
	device := sess.capture.DeviceName()
	sess.capture.Close()

	c.mu.Lock()
	sess.closed = true
	fragments := sess.fragments
	size := sess.bytes
	sess.fragments = nil
	c.mu.Unlock()

	format := encoder.Format{SampleRate: c.config.SampleRate, Channels: c.config.Channels}
	url := c.alloc.Create(fragments, format)

	c.mu.Lock()
	c.audioURL = url
	c.sess = nil
	c.phase = PhaseIdle
	st := c.bumpLocked()
	obs := c.observersLocked()
	hooks := slices.Clone(c.clipHooks)
	c.mu.Unlock()

	c.notify(obs, st)
	clip := Clip{
		URL:       url,
		Device:    device,
		Fragments: len(fragments),
		Bytes:     size,
		Duration:  pcmDuration(size, c.config),
	}
	for _, fn := range hooks {
		fn(clip)
	}
	close(sess.done)
}

func (c *Controller) resetToIdle() {
	c.mu.Lock()
	c.phase = PhaseIdle
	st := c.bumpLocked()
	obs := c.observersLocked()
	c.mu.Unlock()
	c.notify(obs, st)
}

func (c *Controller) recordingLocked() bool {
	return c.phase == PhaseActive || c.phase == PhaseFinalizing
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Recording: c.recordingLocked(),
		Phase:     c.phase,
		Devices:   append([]audio.DeviceInfo(nil), c.devices...),
		AudioURL:  c.audioURL,
		Version:   c.version,
	}
	if c.selected != nil {
		d := *c.selected
		st.Selected = &d
	}
	return st
}

func (c *Controller) bumpLocked() State {
	c.version++
	return c.snapshotLocked()
}

func (c *Controller) observersLocked() []func(State) {
	obs := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	return obs
}

func (c *Controller) notify(obs []func(State), st State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if st.Version <= c.notified {
		return
	}
	c.notified = st.Version
	for _, fn := range obs {
		fn(st)
	}
}

func pcmDuration(size int, cfg audio.CaptureConfig) time.Duration {
	perSecond := int(cfg.SampleRate) * int(cfg.Channels) * audio.BytesPerSample
	if perSecond == 0 {
		return 0
	}
	return time.Duration(float64(size) / float64(perSecond) * float64(time.Second))
}

// await runs fn on its own goroutine so a blocking host call can be
// abandoned when ctx ends. A result that arrives after that is handed to
// cleanup.
func await[T any](ctx context.Context, fn func() (T, error), cleanup func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil && cleanup != nil {
				cleanup(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}
