// Package clipboard puts clip handles on the system clipboard.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("clipboard: no clipboard utility found")

func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}
