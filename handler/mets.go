package handler

import (
	"io"
	"path"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/mets"
	"github.com/ndlib/fedsword/sword"
)

// METS handles a bare manifest deposit: the manifest is parsed for
// descriptive metadata and relationships, kept as its own datastream, and
// each file it names becomes an externally-stored datastream.
type METS struct {
	Steps
	doc *mets.Document
}

// NewMETS returns a handler for manifest deposits that are not archives.
func NewMETS() Handler {
	h := &METS{}
	h.Steps = Steps{
		Metadata:      h.metadata,
		Relationships: h.relationships,
		Datastreams:   h.datastreams,
		LinkName:      func(*Context) string { return "METS" },
	}
	return h
}

func (h *METS) Accepts(contentType, packaging string) bool {
	if packaging != PackagingMETS {
		return false
	}
	ct := mediaType(contentType)
	return ct == "text/xml" || ct == "application/xml"
}

func (h *METS) Ingest(cx *Context) (*sword.Entry, error) {
	if err := h.parse(cx.Deposit.Content); err != nil {
		return nil, err
	}
	return h.Steps.Ingest(cx)
}

func (h *METS) Update(cx *Context, pid string) (*sword.Entry, error) {
	if err := h.parse(cx.Deposit.Content); err != nil {
		return nil, err
	}
	return h.Steps.Update(cx, pid)
}

func (h *METS) parse(r io.Reader) error {
	doc, err := mets.Parse(r)
	if err != nil {
		return errors.Wrap(sword.ErrContentNotAccepted, err.Error())
	}
	h.doc = doc
	return nil
}

func (h *METS) metadata(cx *Context) *fedora.DublinCore {
	if h.doc.DC != nil {
		return h.doc.DC
	}
	return DefaultMetadata(cx)
}

func (h *METS) relationships(cx *Context) *fedora.Relationship {
	if h.doc.Rels != nil {
		return h.doc.Rels
	}
	return DefaultRelationships(cx)
}

func (h *METS) datastreams(cx *Context) ([]fedora.Datastream, error) {
	out := []fedora.Datastream{
		fedora.NewInline("METS", "text/xml", "METS manifest", h.doc.Fragment()),
	}
	for _, f := range h.doc.Files {
		if f.Href == "" {
			continue
		}
		id := f.ID
		if id == "" {
			id = path.Base(f.Href)
		}
		mimetype := f.MimeType
		if mimetype == "" {
			mimetype = "application/octet-stream"
		}
		out = append(out, fedora.NewReference(id, mimetype, path.Base(f.Href), f.Href))
	}
	return out, nil
}
