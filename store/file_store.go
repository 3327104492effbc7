package store

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	raven "github.com/getsentry/raven-go"
)

// FileSystem keeps each item as a file directly under its root directory,
// using the key as the file name. The stores hold at most one cached
// entry per deposited object, so there is no need for any directory
// fan-out.
type FileSystem struct {
	root string
}

// the subdir files are written to before being moved into place
const scratchdir = "scratch"

var (
	_ Store = &FileSystem{}

	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("Key already exists")

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control Characters")
)

// NewFileSystem creates a FileSystem store rooted at the given path. The
// directory is created if it does not exist yet.
func NewFileSystem(root string) (*FileSystem, error) {
	err := os.MkdirAll(root, 0775)
	if err != nil {
		return nil, err
	}
	return &FileSystem{root: root}, nil
}

// List returns a channel listing all the keys in this store.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go func() {
		defer close(c)
		f, err := os.Open(s.root)
		if err != nil {
			log.Println(err)
			raven.CaptureError(err, nil)
			return
		}
		defer f.Close()
		for {
			entries, err := f.Readdir(1000)
			if err == io.EOF {
				return
			} else if err != nil {
				// we have no other way of passing this error back
				log.Println(err)
				raven.CaptureError(err, nil)
				return
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				c <- e.Name()
			}
		}
	}()
	return c
}

// ListPrefix returns a list of all the keys beginning with the given prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	result, err := filepath.Glob(filepath.Join(s.root, prefix+"*"))
	if err == nil {
		for i := range result {
			result[i] = filepath.Base(result[i])
		}
	}
	return result, err
}

// Open returns a reader for the given item along with its size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if strings.Contains(key, "/") {
		return nil, 0, ErrKeyContainsSlash
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Create returns a writer saving a new item under the given key. Content
// is first written into a scratch directory and only moved into place
// when the writer is closed, so readers never see partial items.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := isKeyValid(key); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	_, err := os.Stat(target)
	if !os.IsNotExist(err) {
		return nil, ErrKeyExists
	}
	scratch := filepath.Join(s.root, scratchdir)
	if err := os.MkdirAll(scratch, 0775); err != nil {
		return nil, err
	}
	// pass the O_EXCL flag explicitly to prevent overwriting
	// already existing files
	temp := filepath.Join(scratch, key)
	w, err := os.OpenFile(temp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return nil, err
	}
	return &moveCloser{WriteCloser: w, source: temp, target: target}, nil
}

// track the file so when it is closed, we can move it into the correct place
type moveCloser struct {
	io.WriteCloser
	source string
	target string
}

func (w *moveCloser) Close() error {
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	_, err = os.Stat(w.target)
	if !os.IsNotExist(err) {
		return ErrKeyExists
	}
	return os.Rename(w.source, w.target)
}

// Delete the given key from the store. It is not an error if the key
// doesn't exist.
func (s *FileSystem) Delete(key string) error {
	if strings.Contains(key, "/") {
		return ErrKeyContainsSlash
	}
	err := os.Remove(filepath.Join(s.root, key))
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	return err
}

func isKeyValid(key string) error {
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}
	if strings.Contains(key, "/") {
		return ErrKeyContainsSlash
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return ErrKeyContainsWhiteSpace
		}
		if unicode.IsControl(r) {
			return ErrKeyContainsControlChar
		}
	}
	return nil
}
