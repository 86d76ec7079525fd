package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"micrec/audio"
	"micrec/log"
)

const (
	eventsPingPeriod = 30 * time.Second
	eventsWriteWait  = 5 * time.Second
)

var eventsUpgrader = websocket.Upgrader{
	// The server binds to loopback by default; any local page may watch.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type deviceDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type stateDoc struct {
	Recording bool        `json:"recording"`
	Phase     string      `json:"phase"`
	LockMode  bool        `json:"lock_mode"`
	Devices   []deviceDoc `json:"devices"`
	Selected  *deviceDoc  `json:"selected,omitempty"`
	AudioURL  string      `json:"audio_url,omitempty"`
	Version   uint64      `json:"version"`
}

func toDeviceDoc(d audio.DeviceInfo) deviceDoc {
	return deviceDoc{ID: d.ID, Name: d.Name}
}

func (a *app) stateDoc() stateDoc {
	st := a.ctrl.Snapshot()
	doc := stateDoc{
		Recording: st.Recording,
		Phase:     st.Phase.String(),
		LockMode:  a.lock.Load(),
		Devices:   make([]deviceDoc, 0, len(st.Devices)),
		AudioURL:  st.AudioURL,
		Version:   st.Version,
	}
	for _, d := range st.Devices {
		doc.Devices = append(doc.Devices, toDeviceDoc(d))
	}
	if st.Selected != nil {
		sel := toDeviceDoc(*st.Selected)
		doc.Selected = &sel
	}
	return doc
}

// newServer routes clip downloads, the read-only state document, its
// websocket feed and the metrics scrape.
func newServer(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/blob/", a.store.Handler())
	mux.HandleFunc("/state", a.serveState)
	mux.HandleFunc("/events", a.serveEvents)
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

func (a *app) serveState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(a.stateDoc()); err != nil {
		log.Warnf("state encode: %v", err)
	}
}

// serveEvents upgrades to a websocket and writes the state document once on
// connect and again after every change. Bursts of changes coalesce into one
// write of the latest state.
func (a *app) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("events upgrade: %v", err)
		return
	}
	defer conn.Close()

	nudge := make(chan struct{}, 1)
	nudge <- struct{}{}
	cancel := a.watch(func() {
		select {
		case nudge <- struct{}{}:
		default:
		}
	})
	defer cancel()

	// read loop is required to notice the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-nudge:
			conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(a.stateDoc()); err != nil {
				return
			}
		}
	}
}
