// Package blob keeps finished recordings in memory and hands out URL
// handles that can be dereferenced over HTTP.
package blob

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"micrec/encoder"
)

const pathPrefix = "/blob/"

type Blob struct {
	ID      string
	Data    []byte
	Format  encoder.Format
	Created time.Time
}

// Store allocates handles of the form <base>/blob/<uuid>. Handles stay valid
// until revoked.
type Store struct {
	base string

	mu    sync.RWMutex
	blobs map[string]*Blob
}

func NewStore(base string) *Store {
	return &Store{
		base:  strings.TrimSuffix(base, "/"),
		blobs: make(map[string]*Blob),
	}
}

// Create concatenates fragments in order and returns the new handle.
func (s *Store) Create(fragments [][]byte, format encoder.Format) string {
	data := bytes.Join(fragments, nil)
	if data == nil {
		data = []byte{}
	}
	b := &Blob{
		ID:      uuid.NewString(),
		Data:    data,
		Format:  format,
		Created: time.Now(),
	}
	s.mu.Lock()
	s.blobs[b.ID] = b
	s.mu.Unlock()
	return s.base + pathPrefix + b.ID
}

// Get accepts either a full handle or a bare id.
func (s *Store) Get(handle string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[idOf(handle)]
	return b, ok
}

func (s *Store) Revoke(handle string) {
	s.mu.Lock()
	delete(s.blobs, idOf(handle))
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func idOf(handle string) string {
	if i := strings.LastIndex(handle, pathPrefix); i >= 0 {
		return handle[i+len(pathPrefix):]
	}
	return handle
}
