package blob

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"micrec/encoder"
	"micrec/log"
)

// Handler serves GET /blob/{id}. The optional format query selects raw
// (default), wav or flac.
func (s *Store) Handler() http.Handler {
	return http.HandlerFunc(s.serveBlob)
}

func (s *Store) serveBlob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, pathPrefix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	b, ok := s.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var (
		body        []byte
		contentType string
		ext         string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "raw":
		body = b.Data
		contentType = fmt.Sprintf("audio/L16;rate=%d;channels=%d", b.Format.SampleRate, b.Format.Channels)
		ext = ".pcm"
	case "wav":
		body = encoder.WAV(b.Format, b.Data)
		contentType = "audio/wav"
		ext = ".wav"
	case "flac":
		out, err := encoder.FLAC(b.Format, b.Data)
		if err != nil {
			log.Errorf("flac encode %s: %v", b.ID, err)
			http.Error(w, "encoding failed", http.StatusInternalServerError)
			return
		}
		body = out
		contentType = "audio/flac"
		ext = ".flac"
	default:
		http.Error(w, "unknown format "+format, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, b.ID+ext, b.Created, bytes.NewReader(body))
}
