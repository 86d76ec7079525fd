//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MICREC_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MICREC_TEST_BIN not set; build micrec and point MICREC_TEST_BIN at it")
		os.Exit(1)
	}

	tonePath := filepath.Join("data", "tone.wav")
	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	if err := generateToneWAV(tonePath, 16000, 1.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.Remove(tonePath)
	os.Exit(code)
}

func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runMicrec(t *testing.T, stdin string, args ...string) (logDir, stdout string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{
		"-logpath", logDir,
		"-config", filepath.Join(logDir, "config.yaml"),
		"-listen", "127.0.0.1:0",
		"-headless",
		"-fake", filepath.Join("data", "tone.wav"),
	}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("micrec exited with error: %v\noutput: %s", err, out)
	}
	return logDir, string(out)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestListDevices(t *testing.T) {
	_, out := runMicrec(t, "", "-list")
	if !strings.Contains(out, "fake\tFake WAV input") {
		t.Fatalf("-list output = %q", out)
	}
}

func TestClickRecording(t *testing.T) {
	logDir, out := runMicrec(t, cmds("CLICK", "SLEEP 300", "CLICK", "WAIT", "URL", "QUIT"))
	if !strings.Contains(out, "/blob/") {
		t.Fatalf("no clip url in output %q", out)
	}
	clips := readLog(t, logDir, "clips_log.txt")
	if strings.Count(clips, "/blob/") != 1 {
		t.Fatalf("clips_log.txt = %q", clips)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "recording_start") {
		t.Error("expected recording_start in diagnostics")
	}
}

func TestLockModeHold(t *testing.T) {
	logDir, out := runMicrec(t, cmds("CLICK", "PRESS", "SLEEP 200", "RELEASE", "WAIT", "URL", "QUIT"), "-lock")
	if !strings.Contains(out, "/blob/") {
		t.Fatalf("no clip url in output %q", out)
	}
	if n := strings.Count(readLog(t, logDir, "clips_log.txt"), "/blob/"); n != 1 {
		t.Fatalf("got %d clips, want 1", n)
	}
}

func TestTwoRecordingsDistinctURLs(t *testing.T) {
	_, out := runMicrec(t, cmds(
		"CLICK", "SLEEP 100", "CLICK", "WAIT", "URL",
		"CLICK", "SLEEP 100", "CLICK", "WAIT", "URL",
		"QUIT"))
	lines := strings.Fields(out)
	if len(lines) != 2 || lines[0] == lines[1] {
		t.Fatalf("urls = %q", lines)
	}
}

// The clip server lives only as long as the process, so fetch while a
// SLEEP holds it open.
func TestServeClipWAV(t *testing.T) {
	logDir := t.TempDir()
	cmd := exec.Command(testBinary,
		"-logpath", logDir,
		"-config", filepath.Join(logDir, "config.yaml"),
		"-listen", "127.0.0.1:0",
		"-headless",
		"-fake", filepath.Join("data", "tone.wav"))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	defer cmd.Wait()
	defer stdin.Close()

	io.WriteString(stdin, cmds("CLICK", "SLEEP 200", "CLICK", "WAIT", "URL"))
	var url string
	if _, err := fmt.Fscanln(stdout, &url); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(url + "?format=wav")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body[:4]) != "RIFF" {
		t.Fatalf("status %d, body prefix %q", resp.StatusCode, body[:min(4, len(body))])
	}
	io.WriteString(stdin, "QUIT\n")
}
