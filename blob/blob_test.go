package blob

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"micrec/encoder"
)

var mono = encoder.Format{SampleRate: 16000, Channels: 1}

func TestCreateConcatenates(t *testing.T) {
	s := NewStore("http://127.0.0.1:7077/")
	url := s.Create([][]byte{{1, 2}, {3}, {4, 5, 6}}, mono)

	if !strings.HasPrefix(url, "http://127.0.0.1:7077/blob/") {
		t.Fatalf("url = %q", url)
	}
	b, ok := s.Get(url)
	if !ok {
		t.Fatal("Get by url failed")
	}
	if !bytes.Equal(b.Data, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("data = %v", b.Data)
	}
	if _, ok := s.Get(b.ID); !ok {
		t.Fatal("Get by id failed")
	}
}

func TestHandlesAreDistinct(t *testing.T) {
	s := NewStore("http://x")
	a := s.Create([][]byte{{1}}, mono)
	b := s.Create([][]byte{{1}}, mono)
	if a == b {
		t.Fatal("identical handles for two blobs")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestRevoke(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create(nil, mono)
	s.Revoke(url)
	if _, ok := s.Get(url); ok {
		t.Fatal("blob still present after Revoke")
	}
}

func get(t *testing.T, h http.Handler, target string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec.Result()
}

func TestHandlerRaw(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create([][]byte{{1, 0}, {2, 0}}, mono)
	path := strings.TrimPrefix(url, "http://x")

	resp := get(t, s.Handler(), path)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/L16;rate=16000;channels=1" {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, []byte{1, 0, 2, 0}) {
		t.Errorf("body = %v", body)
	}
}

func TestHandlerWAV(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create([][]byte{{1, 0, 2, 0}}, mono)

	resp := get(t, s.Handler(), strings.TrimPrefix(url, "http://x")+"?format=wav")
	body, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "audio/wav" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if len(body) != encoder.WAVHeaderSize+4 || string(body[:4]) != "RIFF" {
		t.Fatalf("body = %q", body)
	}
}

func TestHandlerFLAC(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create([][]byte{make([]byte, 8000)}, mono)

	resp := get(t, s.Handler(), strings.TrimPrefix(url, "http://x")+"?format=flac")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body[:4]) != "fLaC" {
		t.Fatalf("status %d body prefix %q", resp.StatusCode, body[:min(4, len(body))])
	}
}

func TestHandlerRange(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create([][]byte{{1, 2, 3, 4, 5, 6}}, mono)

	req := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(url, "http://x"), nil)
	req.Header.Set("Range", "bytes=2-3")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{3, 4}) {
		t.Fatalf("body = %v", rec.Body.Bytes())
	}
}

func TestHandlerErrors(t *testing.T) {
	s := NewStore("http://x")
	url := s.Create([][]byte{{1}}, mono)
	path := strings.TrimPrefix(url, "http://x")

	if resp := get(t, s.Handler(), "/blob/missing"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing: status = %d", resp.StatusCode)
	}
	if resp := get(t, s.Handler(), path+"?format=ogg"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format: status = %d", resp.StatusCode)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d", rec.Code)
	}
}
