package server

import (
	"io/ioutil"
	"log"
	"strings"
	"sync"

	"github.com/golang/groupcache/singleflight"

	"github.com/ndlib/fedsword/store"
)

// An EntryCache keeps the entry document for every deposited object,
// keyed by (collection, object id). Each collection gets its own store,
// opened lazily; concurrent reads of the same document are collapsed into
// one store access.
type EntryCache struct {
	open  func(collection string) (store.Store, error)
	table singleflight.Group // keyed by collection + "/" + id

	mu     sync.Mutex
	stores map[string]store.Store
}

// NewEntryCache returns a cache that calls open for each collection's
// backing store the first time the collection is touched.
func NewEntryCache(open func(collection string) (store.Store, error)) *EntryCache {
	return &EntryCache{open: open, stores: make(map[string]store.Store)}
}

// NewEntryCacheMemory returns a cache backed by one in-memory store, with
// collections separated by key prefixes.
func NewEntryCacheMemory() *EntryCache {
	mem := store.NewMemory()
	return NewEntryCache(func(collection string) (store.Store, error) {
		return store.NewWithPrefix(mem, collection+"/"), nil
	})
}

// cacheKey turns an object identifier into a storable key. Identifiers
// contain colons, which the stores cannot use.
func cacheKey(id string) string {
	return strings.Replace(id, ":", "_", -1)
}

func (c *EntryCache) collection(name string) (store.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[name]; ok {
		return s, nil
	}
	s, err := c.open(name)
	if err != nil {
		return nil, err
	}
	c.stores[name] = s
	return s, nil
}

// Get returns the cached entry document for the object, or an error if
// none is cached.
func (c *EntryCache) Get(collection, id string) ([]byte, error) {
	result, err := c.table.Do(collection+"/"+cacheKey(id), func() (interface{}, error) {
		s, err := c.collection(collection)
		if err != nil {
			return nil, err
		}
		r, _, err := s.Open(cacheKey(id))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return ioutil.ReadAll(store.NewReader(r))
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Put stores the entry document for the object, replacing any previous
// one.
func (c *EntryCache) Put(collection, id string, body []byte) error {
	s, err := c.collection(collection)
	if err != nil {
		return err
	}
	key := cacheKey(id)
	s.Delete(key) // items are immutable, so replace means delete first
	w, err := s.Create(key)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

// Invalidate drops the cached entry for one object. Only that object's
// document is touched; nothing else in the collection is. Missing entries
// are ignored; failures are logged and not fatal.
func (c *EntryCache) Invalidate(collection, id string) {
	s, err := c.collection(collection)
	if err == nil {
		err = s.Delete(cacheKey(id))
	}
	if err != nil {
		log.Println("invalidate entry:", collection, id, err)
	}
}
