package handler

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
)

// imageVariants are the derived-resolution datastream slots of a standard
// image object, from smallest to largest.
var imageVariants = []string{
	"THUMBRES_IMG",
	"MEDRES_IMG",
	"HIGHRES_IMG",
	"VERYHIGHRES_IMG",
}

// The standard-image content model and the behavior pair its DISS1
// disseminator points at on legacy repositories.
const (
	imageModel     = "demo:UVA_STD_IMAGE"
	imageBDef      = "demo:1"
	imageMechanism = "demo:2"
)

// Image maps an image deposit onto a standard image object: the original,
// one datastream per derived-resolution slot, and a disseminator binding
// the derived slots. The derived slots are seeded with copies of the
// original; the repository's image services replace them with real
// derivatives out of band.
type Image struct {
	Steps
}

// NewImage returns a handler for image deposits with no packaging.
func NewImage() Handler {
	h := &Image{}
	h.Steps = Steps{
		Relationships: h.relationships,
		Datastreams:   h.datastreams,
		Disseminators: h.disseminators,
		LinkName:      h.linkName,
	}
	return h
}

func (h *Image) Accepts(contentType, packaging string) bool {
	return packaging == "" && strings.HasPrefix(mediaType(contentType), "image/")
}

func (h *Image) relationships(cx *Context) *fedora.Relationship {
	r := DefaultRelationships(cx)
	r.AddModel(imageModel)
	return r
}

func (h *Image) datastreams(cx *Context) ([]fedora.Datastream, error) {
	path, err := saveContent(cx)
	if err != nil {
		return nil, err
	}
	ct := mediaType(cx.Deposit.ContentType)
	original := fedora.NewLocal(uploadName(cx), ct, path, false)
	if cx.Deposit.Filename != "" {
		original.Label = cx.Deposit.Filename
	}
	out := []fedora.Datastream{original}
	// Each variant gets its own staged copy since an upload consumes its
	// file.
	for _, variant := range imageVariants {
		copyPath := path + "-" + variant
		if err := copyFile(copyPath, path); err != nil {
			return nil, errors.Wrap(err, "stage image variant")
		}
		ds := fedora.NewLocal(variant, ct, copyPath, false)
		ds.Label = variant
		out = append(out, ds)
	}
	return out, nil
}

func (h *Image) disseminators(cx *Context, dss []fedora.Datastream) []fedora.Disseminator {
	diss := fedora.Disseminator{
		ID:        "DISS1",
		BDef:      imageBDef,
		Mechanism: imageMechanism,
	}
	for _, ds := range dss {
		id := ds.Info().ID
		for _, variant := range imageVariants {
			if id == variant {
				diss.Bindings = append(diss.Bindings, fedora.Binding{Key: variant, Datastream: id})
			}
		}
	}
	return []fedora.Disseminator{diss}
}

func (h *Image) linkName(cx *Context) string {
	return ValidName(uploadName(cx))
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
