// Package hotkey delivers global press/release events for one key combo.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Key string

const (
	KeySpace Key = "space"
	KeyR     Key = "r"
	KeyF8    Key = "f8"
	KeyF9    Key = "f9"
)

var knownKeys = []Key{KeySpace, KeyR, KeyF8, KeyF9}

type Combo struct {
	Ctrl  bool
	Shift bool
	Key   Key
}

var DefaultCombo = Combo{Ctrl: true, Shift: true, Key: KeySpace}

// ParseCombo reads forms like "ctrl+shift+space" or "f9".
func ParseCombo(s string) (Combo, error) {
	var c Combo
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		switch part = strings.TrimSpace(part); part {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		default:
			if c.Key != "" {
				return Combo{}, fmt.Errorf("hotkey %q: more than one key", s)
			}
			for _, k := range knownKeys {
				if Key(part) == k {
					c.Key = k
				}
			}
			if c.Key == "" {
				return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q", s, part)
			}
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	return strings.Join(append(parts, string(c.Key)), "+")
}
