package store

import (
	"io"
	"strings"
)

// NewWithPrefix wraps s so every key is read and written under the given
// prefix. The entry cache uses this to carve one shared store into
// per-collection namespaces.
func NewWithPrefix(s Store, prefix string) Store {
	return withPrefix{base: s, prefix: prefix}
}

type withPrefix struct {
	base   Store
	prefix string
}

func (w withPrefix) List() <-chan string {
	out := make(chan string)
	go func() {
		for key := range w.base.List() {
			if strings.HasPrefix(key, w.prefix) {
				out <- strings.TrimPrefix(key, w.prefix)
			}
		}
		close(out)
	}()
	return out
}

func (w withPrefix) ListPrefix(prefix string) ([]string, error) {
	keys, err := w.base.ListPrefix(w.prefix + prefix)
	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, w.prefix) {
			result = append(result, strings.TrimPrefix(key, w.prefix))
		}
	}
	return result, err
}

func (w withPrefix) Open(key string) (ReadAtCloser, int64, error) {
	return w.base.Open(w.prefix + key)
}

func (w withPrefix) Create(key string) (io.WriteCloser, error) {
	return w.base.Create(w.prefix + key)
}

func (w withPrefix) Delete(key string) error {
	return w.base.Delete(w.prefix + key)
}
