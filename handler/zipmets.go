package handler

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/mets"
	"github.com/ndlib/fedsword/sword"
)

// ZipMETS handles an archive deposit carrying its own manifest: the
// archive must contain a mets.xml at any depth, which supplies metadata
// and relationships the way a bare manifest deposit does. The archive,
// the manifest, and the remaining members all become datastreams.
type ZipMETS struct {
	Steps
	doc     *mets.Document
	archive string
	entries []archiveEntry
	scratch string
}

// NewZipMETS returns a handler for manifest-packaged zip deposits.
func NewZipMETS() Handler {
	h := &ZipMETS{}
	h.Steps = Steps{
		Metadata:      h.metadata,
		Relationships: h.relationships,
		Datastreams:   h.datastreams,
		LinkName:      func(*Context) string { return "METS" },
	}
	return h
}

func (h *ZipMETS) Accepts(contentType, packaging string) bool {
	return packaging == PackagingMETS && mediaType(contentType) == "application/zip"
}

func (h *ZipMETS) Ingest(cx *Context) (*sword.Entry, error) {
	defer h.cleanup()
	if err := h.prepare(cx); err != nil {
		return nil, err
	}
	return h.Steps.Ingest(cx)
}

func (h *ZipMETS) Update(cx *Context, pid string) (*sword.Entry, error) {
	defer h.cleanup()
	if err := h.prepare(cx); err != nil {
		return nil, err
	}
	return h.Steps.Update(cx, pid)
}

func (h *ZipMETS) cleanup() {
	if h.scratch != "" {
		os.RemoveAll(h.scratch)
	}
}

// prepare extracts the archive and parses its manifest before the step
// pipeline runs, since the metadata steps need the parsed manifest.
func (h *ZipMETS) prepare(cx *Context) error {
	archive, err := saveContent(cx)
	if err != nil {
		return err
	}
	h.archive = archive
	dir, entries, err := expandArchive(archive, cx.TempDir)
	h.scratch = dir
	if err != nil {
		return errors.Wrap(sword.ErrContentNotAccepted, err.Error())
	}
	var manifest string
	for _, en := range entries {
		if manifest == "" && strings.EqualFold(en.name, "mets.xml") {
			manifest = en.path
			continue
		}
		h.entries = append(h.entries, en)
	}
	if manifest == "" {
		return errors.Wrap(sword.ErrContentNotAccepted, "package has no mets.xml manifest")
	}
	f, err := os.Open(manifest)
	if err != nil {
		return errors.Wrap(err, "open manifest")
	}
	doc, err := mets.Parse(f)
	f.Close()
	if err != nil {
		return errors.Wrap(sword.ErrContentNotAccepted, err.Error())
	}
	h.doc = doc
	return nil
}

func (h *ZipMETS) metadata(cx *Context) *fedora.DublinCore {
	if h.doc.DC != nil {
		return h.doc.DC
	}
	return DefaultMetadata(cx)
}

func (h *ZipMETS) relationships(cx *Context) *fedora.Relationship {
	if h.doc.Rels != nil {
		return h.doc.Rels
	}
	return DefaultRelationships(cx)
}

func (h *ZipMETS) datastreams(cx *Context) ([]fedora.Datastream, error) {
	out := []fedora.Datastream{
		fedora.NewLocal(uploadName(cx), "application/zip", h.archive, false),
		fedora.NewInline("METS", "text/xml", "METS manifest", h.doc.Fragment()),
	}
	for _, en := range h.entries {
		ds := fedora.NewLocal(en.name, en.mime, en.path, false)
		ds.Label = en.name
		out = append(out, ds)
	}
	return out, nil
}
