//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// evdev constants from linux/input-event-codes.h
const (
	evKey = 1

	valueRelease = 0
	valuePress   = 1

	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLShift = 42
	keyRShift = 54
)

var evdevCodes = map[Key]uint16{
	KeySpace: 57,
	KeyR:     19,
	KeyF8:    66,
	KeyF9:    67,
}

// struct input_event on 64-bit: timeval(16) type(2) code(2) value(4)
const inputEventSize = 24

type inputEvent struct {
	typ   uint16
	code  uint16
	value int32
}

func decodeEvents(buf []byte) []inputEvent {
	events := make([]inputEvent, 0, len(buf)/inputEventSize)
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		events = append(events, inputEvent{
			typ:   binary.LittleEndian.Uint16(buf[i+16:]),
			code:  binary.LittleEndian.Uint16(buf[i+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
		})
	}
	return events
}

type transition int

const (
	none transition = iota
	down
	up
)

// chord tracks modifiers and the trigger key across every keyboard, so a
// modifier held on one device combines with the key on another.
type chord struct {
	mu    sync.Mutex
	combo Combo
	code  uint16
	ctrl  int
	shift int
	held  bool
}

func newChord(combo Combo) *chord {
	return &chord{combo: combo, code: evdevCodes[combo.Key]}
}

// feed applies one key event. Autorepeat (value 2) is ignored.
func (c *chord) feed(ev inputEvent) transition {
	if ev.typ != evKey || (ev.value != valuePress && ev.value != valueRelease) {
		return none
	}
	delta := 1
	if ev.value == valueRelease {
		delta = -1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch ev.code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = max(c.ctrl+delta, 0)
	case keyLShift, keyRShift:
		c.shift = max(c.shift+delta, 0)
	case c.code:
		mods := (!c.combo.Ctrl || c.ctrl > 0) && (!c.combo.Shift || c.shift > 0)
		if delta > 0 && !c.held && mods {
			c.held = true
			return down
		}
		// Release ends the hold even if a modifier went up first.
		if delta < 0 && c.held {
			c.held = false
			return up
		}
	}
	return none
}

type linuxHotkey struct {
	chord   *chord
	keydown chan struct{}
	keyup   chan struct{}
	files   []*os.File
	once    sync.Once
}

func New(combo Combo) Hotkey {
	return &linuxHotkey{
		chord:   newChord(combo),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

var errNoKeyboards = errors.New("no keyboard devices found (is user in 'input' group?)")

func (h *linuxHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errNoKeyboards
	}
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("could not open any of %d keyboard devices (run: sudo usermod -aG input $USER, then re-login)", len(keyboards))
	}
	return nil
}

// readEvents runs until Unregister closes f.
func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range decodeEvents(buf[:n]) {
			switch h.chord.feed(ev) {
			case down:
				signal(h.keydown)
			case up:
				signal(h.keyup)
			}
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *linuxHotkey) Keyup() <-chan struct{}   { return h.keyup }

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "event") && isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard treats any device advertising a wide key bitmap as a keyboard;
// mice and power buttons report only a few bits.
func isKeyboard(eventName string) bool {
	data, err := os.ReadFile(filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key"))
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose reports whether the hotkey could read any keyboard.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", errNoKeyboards
	}
	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
