package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"micrec/audio"
	"micrec/blob"
	"micrec/config"
	"micrec/encoder"
	"micrec/gesture"
	"micrec/hotkey"
	"micrec/log"
	"micrec/metrics"
	"micrec/playback"
	"micrec/recorder"
	"micrec/shutdown"
)

var version = "dev"

var errNoClip = errors.New("no recording yet")

// app wires the controller to its collaborators and holds the presentation
// state that outlives a single view (lock mode, preferences).
type app struct {
	ctx      context.Context
	ctrl     *recorder.Controller
	store    *blob.Store
	disp     *gesture.Dispatcher
	lock     atomic.Bool
	autoplay atomic.Bool
	play     func(ctx context.Context, pcm []byte, f encoder.Format) error
	combo    string
	cfg      config.Config
	cfgPath  string
	clips    atomic.Int64
	clipCh   chan recorder.Clip
	metrics  *metrics.Metrics

	watchMu   sync.Mutex
	nextWatch int
	watchers  map[int]func()
}

// newApp builds the app. ctx bounds gestures and playback started from the
// views.
func newApp(ctx context.Context, host audio.Context, baseURL string, cfg config.Config, cfgPath string) *app {
	store := blob.NewStore(baseURL)
	a := &app{
		ctx:      ctx,
		ctrl:     recorder.New(host, store),
		play:     playback.Play,
		store:    store,
		cfg:      cfg,
		cfgPath:  cfgPath,
		combo:    cfg.Hotkey,
		clipCh:   make(chan recorder.Clip, 1),
		watchers: make(map[int]func()),
	}
	a.lock.Store(cfg.LockMode)
	a.autoplay.Store(cfg.Autoplay)
	a.disp = gesture.NewDispatcher(a.ctrl, a.lock.Load)
	a.metrics = metrics.New(a.ctrl.IsRecording, func() int { return len(a.ctrl.Devices()) })
	a.ctrl.OnClip(func(c recorder.Clip) {
		a.clips.Add(1)
		a.metrics.ObserveClip(c.Bytes, c.Duration)
		log.RecordingDone(log.ClipMetrics{
			URL:       c.URL,
			Fragments: c.Fragments,
			Bytes:     c.Bytes,
			AudioS:    c.Duration.Seconds(),
		})
		if a.autoplay.Load() {
			go a.autoplayClip(c.URL)
		}
		select {
		case a.clipCh <- c:
		default:
		}
	})
	return a
}

// preselect picks the device whose id or name equals want.
func (a *app) preselect(want string) bool {
	if want == "" {
		return false
	}
	for _, d := range a.ctrl.Devices() {
		if d.ID == want || d.Name == want {
			a.selectDevice(d.ID)
			return true
		}
	}
	return false
}

func (a *app) selectDevice(id string) {
	a.ctrl.SelectDevice(id)
	if sel := a.ctrl.SelectedDevice(); sel != nil {
		log.DeviceSelected(sel.ID, sel.Name)
	} else {
		log.DeviceSelected(id, "")
	}
}

func (a *app) setLock(on bool) {
	a.lock.Store(on)
	log.Infof("lock_mode: %v", on)
	a.watchMu.Lock()
	fns := make([]func(), 0, len(a.watchers))
	for _, fn := range a.watchers {
		fns = append(fns, fn)
	}
	a.watchMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// watch calls fn after any controller change or lock mode toggle. fn must
// not block.
func (a *app) watch(fn func()) (cancel func()) {
	stopCtrl := a.ctrl.OnChange(func(recorder.State) { fn() })
	a.watchMu.Lock()
	id := a.nextWatch
	a.nextWatch++
	a.watchers[id] = fn
	a.watchMu.Unlock()
	return func() {
		stopCtrl()
		a.watchMu.Lock()
		delete(a.watchers, id)
		a.watchMu.Unlock()
	}
}

func (a *app) gesture(ctx context.Context, g gesture.Gesture) error {
	action, err := a.disp.Handle(ctx, g)
	if err != nil {
		if action == gesture.Start {
			a.metrics.StartFailed(err)
		}
		return err
	}
	if action == gesture.Start {
		device := audio.DefaultDeviceID
		if sel := a.ctrl.SelectedDevice(); sel != nil {
			device = sel.Name
		}
		log.RecordingStart(device, a.lock.Load())
	}
	if action == gesture.Stop {
		log.Info("recording_stop")
	}
	return nil
}

func (a *app) reloadDevices(ctx context.Context) error {
	if err := a.ctrl.LoadDevices(ctx); err != nil {
		log.Errorf("device enumeration: %v", err)
		return err
	}
	log.Infof("devices_loaded: %d", len(a.ctrl.Devices()))
	return nil
}

func (a *app) playLast(ctx context.Context) error {
	url := a.ctrl.AudioURL()
	if url == "" {
		return errNoClip
	}
	b, ok := a.store.Get(url)
	if !ok {
		return fmt.Errorf("clip %s is gone", url)
	}
	log.Info("playback_start")
	return a.play(ctx, b.Data, b.Format)
}

func (a *app) autoplayClip(url string) {
	b, ok := a.store.Get(url)
	if !ok {
		log.Warn("autoplay_skipped: clip gone")
		return
	}
	log.Info("autoplay_start")
	if err := a.play(a.ctx, b.Data, b.Format); err != nil {
		log.Warnf("autoplay: %v", err)
	}
}

func (a *app) savePrefs() error {
	cfg := a.cfg
	cfg.LockMode = a.lock.Load()
	cfg.Device = ""
	if sel := a.ctrl.SelectedDevice(); sel != nil {
		cfg.Device = sel.ID
	}
	if err := config.Save(a.cfgPath, cfg); err != nil {
		return fmt.Errorf("saving %s: %w", a.cfgPath, err)
	}
	log.Info("preferences_saved: " + a.cfgPath)
	return nil
}

// listenHotkey feeds global press/release gestures into the app until ctx
// ends.
func (a *app) listenHotkey(ctx context.Context, hk hotkey.Hotkey, onErr func(error)) {
	for g := range hotkey.Gestures(ctx, hk) {
		if err := a.gesture(ctx, g); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

func run() int {
	deviceFlag := flag.String("device", "", "Preselect input device by id or name")
	listenFlag := flag.String("listen", "", "Address for the clip server (default "+config.DefaultListen+")")
	lockFlag := flag.Bool("lock", false, "Start in lock mode (hold the hotkey to record)")
	hotkeyFlag := flag.String("hotkey", "", "Global press/release hotkey, e.g. ctrl+shift+space")
	configFlag := flag.String("config", "", "Config file path (default: $XDG_CONFIG_HOME/micrec/config.yaml)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	autoplayFlag := flag.Bool("autoplay", true, "Play each finished clip back (off by default with -headless)")
	listFlag := flag.Bool("list", false, "List input devices and exit")
	fakeFlag := flag.String("fake", "", "Replay a WAV file instead of using a real input device")
	headlessFlag := flag.Bool("headless", false, "Read commands from stdin instead of running the terminal UI")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("micrec %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	cfgPath, err := config.ResolvePath(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	autoplaySet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *deviceFlag
		case "listen":
			cfg.Listen = *listenFlag
		case "lock":
			cfg.LockMode = *lockFlag
		case "hotkey":
			cfg.Hotkey = *hotkeyFlag
		case "autoplay":
			cfg.Autoplay = *autoplayFlag
			autoplaySet = true
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	var host audio.Context
	backend := "native"
	if *fakeFlag != "" {
		backend = "fake"
		host, err = audio.NewFakeContextFromWAV(*fakeFlag, true)
	} else {
		host, err = audio.NewContext()
	}
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer host.Close()
	log.SessionStart(version, backend)

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: listen %s: %v\n", cfg.Listen, err)
		return 1
	}
	a := newApp(ctx, host, "http://"+ln.Addr().String(), cfg, cfgPath)
	srv := &http.Server{Handler: newServer(a), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("clip server: %v", err)
		}
	}()
	log.Info("clip_server: " + ln.Addr().String())

	if err := a.reloadDevices(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not list devices: %v\n", err)
	}

	if *listFlag {
		for _, d := range a.ctrl.Devices() {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
		return 0
	}

	if cfg.Device != "" && !a.preselect(cfg.Device) {
		log.Warnf("device not found: %s", cfg.Device)
		fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", cfg.Device)
	}

	headless := *headlessFlag || !term.IsTerminal(int(os.Stdin.Fd()))
	if headless && !autoplaySet {
		a.autoplay.Store(false)
	}

	var tui *tuiRunner
	if !headless {
		tui = newTUIRunner(a)
	}

	if cfg.Hotkey != "" {
		combo, _ := hotkey.ParseCombo(cfg.Hotkey)
		hk := hotkey.New(combo)
		if err := hk.Register(); err != nil {
			log.Errorf("hotkey register error: %v", err)
			if diag, derr := hotkey.Diagnose(); derr != nil {
				log.Warnf("hotkey diagnose: %v", derr)
			} else {
				log.Info(diag)
			}
			fmt.Fprintf(os.Stderr, "Warning: hotkey unavailable: %v\n", err)
		} else {
			defer hk.Unregister()
			var onErr func(error)
			if tui != nil {
				onErr = tui.reportError
			}
			go a.listenHotkey(ctx, hk, onErr)
		}
	}

	if tui != nil {
		go func() {
			<-ctx.Done()
			tui.quit()
		}()
	}

	if headless {
		runHeadless(ctx, a, os.Stdin, os.Stdout)
	} else if err := tui.run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	cancel()
	a.ctrl.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	log.SessionEnd(int(a.clips.Load()))
	return 0
}
