//go:build linux

package hotkey

import (
	"encoding/binary"
	"testing"
)

func key(code uint16, value int32) inputEvent {
	return inputEvent{typ: evKey, code: code, value: value}
}

func TestDecodeEvents(t *testing.T) {
	buf := make([]byte, inputEventSize*2+5)
	binary.LittleEndian.PutUint16(buf[16:], evKey)
	binary.LittleEndian.PutUint16(buf[18:], 57)
	binary.LittleEndian.PutUint32(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[inputEventSize+16:], 4)

	events := decodeEvents(buf)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (partial tail dropped)", len(events))
	}
	if events[0] != (inputEvent{typ: evKey, code: 57, value: 1}) {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].typ != 4 {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestChordNeedsModifiers(t *testing.T) {
	c := newChord(DefaultCombo)
	space := evdevCodes[KeySpace]

	if got := c.feed(key(space, valuePress)); got != none {
		t.Fatalf("bare space = %v, want none", got)
	}
	c.feed(key(space, valueRelease))

	c.feed(key(keyLCtrl, valuePress))
	c.feed(key(keyRShift, valuePress))
	if got := c.feed(key(space, valuePress)); got != down {
		t.Fatalf("ctrl+shift+space = %v, want down", got)
	}
	if got := c.feed(key(space, 2)); got != none {
		t.Fatalf("autorepeat = %v, want none", got)
	}
	// modifier released first still ends the hold
	c.feed(key(keyLCtrl, valueRelease))
	if got := c.feed(key(space, valueRelease)); got != up {
		t.Fatalf("release = %v, want up", got)
	}
}

func TestChordBareKey(t *testing.T) {
	c := newChord(Combo{Key: KeyF9})
	f9 := evdevCodes[KeyF9]
	if got := c.feed(key(f9, valuePress)); got != down {
		t.Fatalf("press = %v", got)
	}
	if got := c.feed(key(f9, valuePress)); got != none {
		t.Fatalf("second press while held = %v", got)
	}
	if got := c.feed(key(f9, valueRelease)); got != up {
		t.Fatalf("release = %v", got)
	}
	if got := c.feed(inputEvent{typ: 2, code: f9, value: 1}); got != none {
		t.Fatalf("non-key event = %v", got)
	}
}

func TestChordModifierCountsAcrossKeyboards(t *testing.T) {
	c := newChord(Combo{Ctrl: true, Key: KeyR})
	r := evdevCodes[KeyR]
	c.feed(key(keyLCtrl, valuePress))
	c.feed(key(keyRCtrl, valuePress))
	c.feed(key(keyLCtrl, valueRelease))
	if got := c.feed(key(r, valuePress)); got != down {
		t.Fatalf("ctrl still held on one side: %v", got)
	}
}
