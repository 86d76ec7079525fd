package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"micrec/gesture"
)

var headlessGestures = map[string]gesture.Gesture{
	"CLICK":   gesture.Click,
	"PRESS":   gesture.Press,
	"RELEASE": gesture.Release,
}

// runHeadless drives the app from line commands on r, one per line:
//
//	CLICK | PRESS | RELEASE   deliver a gesture
//	LOCK on|off               toggle lock mode
//	DEVICES                   print "id<TAB>name" per input device
//	SELECT <id>               select a device (empty id clears)
//	RELOAD                    re-enumerate devices
//	WAIT                      block until the next clip is finished
//	SLEEP <ms>
//	URL                       print the last clip handle
//	STATE                     print the /state document
//	QUIT
//
// It returns on QUIT, EOF or when ctx ends.
func runHeadless(ctx context.Context, a *app, r io.Reader, w io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return
		case line, ok = <-lines:
			if !ok {
				return
			}
		}
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(cmd) {
		case "CLICK", "PRESS", "RELEASE":
			if err := a.gesture(ctx, headlessGestures[strings.ToUpper(cmd)]); err != nil {
				fmt.Fprintf(w, "ERR %v\n", err)
			}
		case "LOCK":
			switch strings.ToLower(arg) {
			case "on", "true", "1":
				a.setLock(true)
			case "off", "false", "0":
				a.setLock(false)
			default:
				fmt.Fprintf(w, "ERR lock: want on or off, got %q\n", arg)
			}
		case "DEVICES":
			for _, d := range a.ctrl.Devices() {
				fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Name)
			}
		case "SELECT":
			a.selectDevice(strings.TrimSpace(arg))
		case "RELOAD":
			if err := a.reloadDevices(ctx); err != nil {
				fmt.Fprintf(w, "ERR reload: %v\n", err)
			}
		case "WAIT":
			select {
			case <-a.clipCh:
			case <-ctx.Done():
				return
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
		case "URL":
			fmt.Fprintln(w, a.ctrl.AudioURL())
		case "STATE":
			data, _ := json.Marshal(a.stateDoc())
			fmt.Fprintln(w, string(data))
		case "QUIT":
			return
		default:
			fmt.Fprintf(w, "ERR unknown command %q\n", cmd)
		}
	}
}
