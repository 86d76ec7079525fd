package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	clipFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: MICREC_LOG_PATH environment variable
	envPath := os.Getenv("MICREC_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return defaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	clipPath := filepath.Join(dir, "clips_log.txt")
	clipFile, err = os.OpenFile(clipPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if clipFile != nil {
		clipFile.Close()
		clipFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(version, backend string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("version", version).
		Str("backend", backend).
		Msg("session_start")
}

func SessionEnd(clips int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("clips", clips).
		Msg("session_end")
}

func DeviceSelected(id, name string) {
	if !logReady {
		return
	}
	ev := diagLog.Info().Str("id", id)
	if name != "" {
		ev = ev.Str("name", name)
	}
	ev.Msg("device_selected")
}

func RecordingStart(device string, lockMode bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Bool("lock_mode", lockMode).
		Msg("recording_start")
}

type ClipMetrics struct {
	URL       string
	Fragments int
	Bytes     int
	AudioS    float64
}

func RecordingDone(m ClipMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("url", m.URL).
		Int("fragments", m.Fragments).
		Float64("kb", float64(m.Bytes)/1024).
		Float64("audio_s", m.AudioS).
		Msg("recording_done")

	logMu.Lock()
	defer logMu.Unlock()
	if clipFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%.1fs\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, m.AudioS, m.URL)
	clipFile.WriteString(line)
}
