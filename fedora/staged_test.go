package fedora

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

type countingUploader struct {
	calls int
}

func (u *countingUploader) Upload(path string) (string, error) {
	u.calls++
	return "http://repo.example.org/staged/" + filepath.Base(path), nil
}

func TestStagedUploadOnce(t *testing.T) {
	dir, err := ioutil.TempDir("", "staged-")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "content")
	if err := ioutil.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("Received %s", err.Error())
	}

	up := &countingUploader{}
	f := NewStagedFile(path, false)
	url, err := f.Upload(up)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if url == "" || f.UploadedURL() != url {
		t.Errorf("got url %q, handle reports %q", url, f.UploadedURL())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("staged file was not removed after upload")
	}

	// a second upload is answered from the handle, not the backend
	again, err := f.Upload(up)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if again != url {
		t.Errorf("got %q on reupload, expected %q", again, url)
	}
	if up.calls != 1 {
		t.Errorf("uploader was called %d times", up.calls)
	}
}

func TestStagedKeep(t *testing.T) {
	dir, err := ioutil.TempDir("", "staged-")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "content")
	if err := ioutil.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("Received %s", err.Error())
	}

	f := NewStagedFile(path, true)
	if _, err := f.Upload(&countingUploader{}); err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("kept file is gone: %s", err.Error())
	}
}

func TestStagedMissing(t *testing.T) {
	f := NewStagedFile("/no/such/file", false)
	if _, err := f.Upload(&countingUploader{}); err == nil {
		t.Errorf("uploaded a file that does not exist")
	}
}
