// Package handler turns deposited content into repository objects. Each
// content type the service understands has a Handler; a Registry picks the
// first handler that accepts a request's content type and packaging.
//
// Handlers are built fresh for every request. Some of them keep parsed
// state (an expanded archive, a parsed manifest) between their steps, so a
// handler instance must never be shared across requests.
package handler

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/sword"
)

// PackagingMETS is the packaging identifier clients send when the deposit
// is (or contains) a structured-package manifest.
const PackagingMETS = "http://www.loc.gov/METS/"

// A Context carries everything a handler needs for one request. TempDir is
// a request-scoped scratch directory; the caller removes it, and its
// contents, when the request finishes.
type Context struct {
	Deposit    *sword.Deposit
	Collection string
	Repo       fedora.Repository

	// TempDir is where staged content and expanded archives go.
	TempDir string

	// Treatment is the human-readable statement of what the service did
	// with the deposit, echoed into the response entry.
	Treatment string

	// EditBase, when set, is the service URL prefix for the deposited
	// object's edit link, e.g. ".../sword/edit/mycollection". The object
	// identifier is appended to it.
	EditBase string

	// ServiceURI identifies this service in the entry's generator element.
	ServiceURI string
}

// A Handler maps one kind of deposited content onto a repository object.
// Accepts is consulted before any content is read; Ingest and Update each
// consume the deposit's content exactly once.
type Handler interface {
	Accepts(contentType, packaging string) bool
	Ingest(cx *Context) (*sword.Entry, error)
	Update(cx *Context, pid string) (*sword.Entry, error)
}

// A Factory builds a fresh handler instance for one request.
type Factory func() Handler

// A Registry is an ordered list of handler factories. Selection is first
// match wins, so register more specific handlers before catch-alls.
type Registry struct {
	factories []Factory
}

// NewRegistry returns a registry holding the given factories in order.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// Register appends a factory to the selection order.
func (r *Registry) Register(f Factory) {
	r.factories = append(r.factories, f)
}

// Select builds a fresh handler for the given content type and packaging.
// The error is sword.ErrNoHandler when nothing accepts the combination.
func (r *Registry) Select(contentType, packaging string) (Handler, error) {
	for _, f := range r.factories {
		h := f()
		if h.Accepts(contentType, packaging) {
			return h, nil
		}
	}
	return nil, errors.Wrapf(sword.ErrNoHandler,
		"no handler for content type %q with packaging %q", contentType, packaging)
}

// DefaultRegistry returns the stock handler lineup.
func DefaultRegistry() *Registry {
	return NewRegistry(NewZipMETS, NewMETS, NewZip, NewImage, NewDefault)
}

// mediaType strips parameters and normalizes case, so "Image/JPEG;
// q=0.8" compares equal to "image/jpeg".
func mediaType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
