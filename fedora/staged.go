package fedora

import (
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// An Uploader moves local content into the repository's staging area and
// returns an externally addressable URL for it. The repository client
// implements it.
type Uploader interface {
	Upload(path string) (string, error)
}

// A StagedFile is a one-shot handle on local content waiting to be
// uploaded. The first Upload call consumes it: the content is sent to the
// repository and, unless Keep was set, the local file is removed. Later
// Upload calls return the URL from the first call without touching the
// backend. Attempting to upload a handle whose file is already gone fails
// loudly rather than silently skipping.
type StagedFile struct {
	Path string
	Keep bool // do not delete the local file after upload

	mu  sync.Mutex
	url string
}

// NewStagedFile returns a handle on the file at path.
func NewStagedFile(path string, keep bool) *StagedFile {
	return &StagedFile{Path: path, Keep: keep}
}

// Upload sends the staged content to the repository exactly once.
func (f *StagedFile) Upload(up Uploader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.url != "" {
		return f.url, nil
	}
	if _, err := os.Stat(f.Path); err != nil {
		return "", errors.Wrapf(err, "staged content %s is gone (already consumed?)", f.Path)
	}
	url, err := up.Upload(f.Path)
	if err != nil {
		return "", err
	}
	f.url = url
	if !f.Keep {
		if rmerr := os.Remove(f.Path); rmerr != nil {
			// the upload succeeded, so don't fail the deposit over this
			log.Println("staged upload cleanup:", rmerr)
		}
	}
	return url, nil
}

// UploadedURL returns the URL assigned at upload time, or "" if the
// content has not been uploaded yet.
func (f *StagedFile) UploadedURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}
