package handler

import (
	"archive/zip"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/sword"
)

// Zip stores an archive deposit as the archive itself plus one datastream
// per archive member. Members keep their base names; directory structure
// inside the archive is flattened.
type Zip struct {
	Steps
	scratch string // extraction directory, removed when the request finishes
}

// NewZip returns a handler for unpackaged zip deposits.
func NewZip() Handler {
	h := &Zip{}
	h.Steps = Steps{Datastreams: h.datastreams}
	return h
}

func (h *Zip) Accepts(contentType, packaging string) bool {
	return packaging == "" && mediaType(contentType) == "application/zip"
}

func (h *Zip) Ingest(cx *Context) (*sword.Entry, error) {
	defer h.cleanup()
	return h.Steps.Ingest(cx)
}

func (h *Zip) Update(cx *Context, pid string) (*sword.Entry, error) {
	defer h.cleanup()
	return h.Steps.Update(cx, pid)
}

func (h *Zip) cleanup() {
	if h.scratch != "" {
		os.RemoveAll(h.scratch)
	}
}

func (h *Zip) datastreams(cx *Context) ([]fedora.Datastream, error) {
	archive, err := saveContent(cx)
	if err != nil {
		return nil, err
	}
	dir, entries, err := expandArchive(archive, cx.TempDir)
	h.scratch = dir
	if err != nil {
		return nil, errors.Wrap(sword.ErrContentNotAccepted, err.Error())
	}
	out := []fedora.Datastream{
		fedora.NewLocal(uploadName(cx), "application/zip", archive, false),
	}
	for _, en := range entries {
		ds := fedora.NewLocal(en.name, en.mime, en.path, false)
		ds.Label = en.name
		out = append(out, ds)
	}
	return out, nil
}

// An archiveEntry is one extracted archive member.
type archiveEntry struct {
	name string // base name inside the archive
	path string // where the extracted content sits on disk
	mime string
}

// expandArchive extracts every regular file in the archive into a fresh
// directory under tempdir. The directory is returned even on error so the
// caller can clean up whatever was extracted before the failure.
func expandArchive(archive, tempdir string) (string, []archiveEntry, error) {
	dir, err := ioutil.TempDir(tempdir, "expand-")
	if err != nil {
		return "", nil, err
	}
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return dir, nil, err
	}
	defer zr.Close()
	var entries []archiveEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(f.Name)
		// prefix with a counter so two members with the same base name
		// don't clobber each other on disk
		target := filepath.Join(dir, fmt.Sprintf("%d-%s", len(entries), name))
		if err := extractMember(f, target); err != nil {
			return dir, nil, errors.Wrapf(err, "extract %s", f.Name)
		}
		mimetype := mime.TypeByExtension(path.Ext(name))
		if mimetype == "" {
			mimetype = "application/octet-stream"
		}
		entries = append(entries, archiveEntry{name: name, path: target, mime: mimetype})
	}
	return dir, entries, nil
}

func extractMember(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	w, err := os.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
