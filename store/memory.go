package store

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Memory is a simple in-memory store, intended mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte
}

var _ Store = &Memory{}

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// List returns a channel giving the key of every item in the store.
func (ms *Memory) List() <-chan string {
	ms.m.RLock()
	keys := make([]string, 0, len(ms.store))
	for k := range ms.store {
		keys = append(keys, k)
	}
	ms.m.RUnlock()
	c := make(chan string)
	go func() {
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// ListPrefix returns all the keys which begin with the given prefix.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.store {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Open returns a ReadAtCloser and the size of the given item.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("No item %s", key)
	}
	return nopCloser{bytes.NewReader(v)}, int64(len(v)), nil
}

// Create makes a new item in the store, and returns a writer to save data
// into it. The item is not visible to readers until the writer is closed.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.RLock()
	_, exists := ms.store[key]
	ms.m.RUnlock()
	if exists {
		return nil, ErrKeyExists
	}
	return &memWriter{ms: ms, key: key}, nil
}

// Delete the given key from the store. It is not an error if the item
// does not exist in the store.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.store, key)
	ms.m.Unlock()
	return nil
}

// Dump writes a listing of the contents of the store to the given writer.
// This is intended for testing and debugging.
func (ms *Memory) Dump(w io.Writer) {
	ms.m.RLock()
	for k, v := range ms.store {
		if len(v) > 300 {
			v = v[:50]
		}
		fmt.Fprintf(w, "%s: %s\n", k, string(v))
	}
	ms.m.RUnlock()
}

type memWriter struct {
	ms  *Memory
	key string
	buf bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.ms.m.Lock()
	w.ms.store[w.key] = w.buf.Bytes()
	w.ms.m.Unlock()
	return nil
}
