//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var xKeys = map[Key]hotkey.Key{
	KeySpace: hotkey.KeySpace,
	KeyR:     hotkey.KeyR,
	KeyF8:    hotkey.KeyF8,
	KeyF9:    hotkey.KeyF9,
}

type xHotkey struct {
	combo   Combo
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func New(combo Combo) Hotkey {
	var mods []hotkey.Modifier
	if combo.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if combo.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	return &xHotkey{
		combo:   combo,
		hk:      hotkey.New(mods, xKeys[combo.Key]),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Register must run after mainthread.Init has started.
func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", h.combo, err)
	}
	// One forwarder keeps down and up in OS order.
	go func() {
		for {
			var out chan struct{}
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				out = h.keydown
			case <-h.hk.Keyup():
				out = h.keyup
			}
			select {
			case out <- struct{}{}:
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *xHotkey) Keyup() <-chan struct{}   { return h.keyup }

func Diagnose() (string, error) {
	return "global hotkey support available", nil
}
