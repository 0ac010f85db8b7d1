// Package cache implements store.Cache in memory and on SQLite.
package cache

import (
	"sync"

	"github.com/odvcencio/consonant/pkg/store"
)

// Memory is an in-process cache. Objects are kept encoded, so every read
// returns a fresh object graph.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	raw     map[string][]byte
}

var _ store.Cache = (*Memory)(nil)

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		raw:     make(map[string][]byte),
	}
}

func objectKey(uuid, digest string) string { return uuid + "\x00" + digest }

// ReadObject returns the cached object for uuid at digest.
func (m *Memory) ReadObject(uuid, digest string) (*store.Object, bool, error) {
	m.mu.RLock()
	data, ok := m.objects[objectKey(uuid, digest)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	obj, err := store.UnmarshalObject(data)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// WriteObject caches obj for uuid at digest.
func (m *Memory) WriteObject(uuid, digest string, obj *store.Object) error {
	data, err := store.MarshalObject(obj)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[objectKey(uuid, digest)] = data
	m.mu.Unlock()
	return nil
}

// ReadRawPropertyData returns a copy of the cached blob content.
func (m *Memory) ReadRawPropertyData(digest string) ([]byte, bool, error) {
	m.mu.RLock()
	data, ok := m.raw[digest]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// WriteRawPropertyData caches blob content by blob id.
func (m *Memory) WriteRawPropertyData(digest string, data []byte) error {
	m.mu.Lock()
	m.raw[digest] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached objects and raw blobs.
func (m *Memory) Len() (objects, raw int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects), len(m.raw)
}
