// Package store provides a goroutine safe key-value interface for cached
// entry documents. Values are streams rather than byte slices, which keeps
// the interface uniform between the file system and S3 backed versions.
//
// The FileSystem store is the usual choice. Memory is for testing, and S3
// is for deployments with no persistent local disk.
package store

import (
	"io"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store is a stream based key-value store. Items are immutable once
// stored, but they may be deleted and then replaced with a new value.
//
// The FileSystem store uses keys as file names, so keys must not contain
// forbidden file system characters such as '/'.
type Store interface {
	// List returns a channel emitting every key in the store.
	List() <-chan string

	// ListPrefix returns the keys beginning with the given prefix.
	ListPrefix(prefix string) ([]string, error)

	// Open returns a reader for the given key along with the item's size.
	Open(key string) (ReadAtCloser, int64, error)

	// Create returns a writer for a new item. It is an error if the key
	// already exists.
	Create(key string) (io.WriteCloser, error)

	// Delete removes an item. Deleting a missing key is not an error.
	Delete(key string) error
}

// NewReader converts a ReaderAt into an io.Reader. It is a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}
