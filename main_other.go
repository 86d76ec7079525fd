//go:build !linux

package main

import (
	"os"
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The hotkey backend needs the OS main thread; run() moves to a goroutine.
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
