// Package gesture maps user input onto recorder actions.
//
// Outside lock mode a click toggles recording and press/release are
// ignored. In lock mode press starts, release stops, and clicks are ignored.
package gesture

import (
	"context"

	"micrec/log"
)

type Gesture int

const (
	Click Gesture = iota
	Press
	Release
)

func (g Gesture) String() string {
	switch g {
	case Press:
		return "press"
	case Release:
		return "release"
	default:
		return "click"
	}
}

type Action int

const (
	Noop Action = iota
	Start
	Stop
)

func (a Action) String() string {
	switch a {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "noop"
	}
}

func Translate(g Gesture, lockMode, recording bool) Action {
	switch g {
	case Click:
		if lockMode {
			return Noop
		}
		if recording {
			return Stop
		}
		return Start
	case Press:
		if lockMode && !recording {
			return Start
		}
	case Release:
		if lockMode && recording {
			return Stop
		}
	}
	return Noop
}

// Recorder is the part of recorder.Controller a Dispatcher drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	IsRecording() bool
}

// Dispatcher applies gestures to a Recorder under the current lock mode.
type Dispatcher struct {
	rec  Recorder
	lock func() bool
}

func NewDispatcher(rec Recorder, lockMode func() bool) *Dispatcher {
	return &Dispatcher{rec: rec, lock: lockMode}
}

// Handle translates g and performs the action. Start blocks until the host
// grants or denies the stream.
func (d *Dispatcher) Handle(ctx context.Context, g Gesture) (Action, error) {
	action := Translate(g, d.lock(), d.rec.IsRecording())
	switch action {
	case Start:
		if err := d.rec.Start(ctx); err != nil {
			log.Warnf("gesture %s: start failed: %v", g, err)
			return action, err
		}
	case Stop:
		d.rec.Stop()
	}
	return action, nil
}
