// Package playback renders a finished clip on the default output device.
package playback

import (
	"errors"
	"sync"
)

var ErrEmpty = errors.New("playback: empty clip")

// cursor hands out successive slices of a PCM buffer to a device callback.
type cursor struct {
	mu   sync.Mutex
	data []byte
	pos  int
	done chan struct{}
	once sync.Once
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data, done: make(chan struct{})}
}

// fill copies the next chunk into out, zero-fills the rest and reports how
// many bytes of audio were written. The done channel closes once the buffer
// is exhausted.
func (c *cursor) fill(out []byte) int {
	c.mu.Lock()
	n := copy(out, c.data[c.pos:])
	c.pos += n
	exhausted := c.pos >= len(c.data)
	c.mu.Unlock()

	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	if exhausted {
		c.once.Do(func() { close(c.done) })
	}
	return n
}
