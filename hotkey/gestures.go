package hotkey

import (
	"context"

	"micrec/gesture"
)

// Gestures turns keydown/keyup into Press/Release until ctx ends.
func Gestures(ctx context.Context, hk Hotkey) <-chan gesture.Gesture {
	out := make(chan gesture.Gesture, 4)
	go func() {
		defer close(out)
		for {
			var g gesture.Gesture
			select {
			case <-ctx.Done():
				return
			case <-hk.Keydown():
				g = gesture.Press
			case <-hk.Keyup():
				g = gesture.Release
			}
			select {
			case out <- g:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
